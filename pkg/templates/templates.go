// Package templates provides pre-built SPARQL queries for exploring enriched
// workflow graphs.
package templates

import (
	"fmt"
	"sort"
	"strings"
)

// Parameter describes a named parameter a template accepts.
type Parameter struct {
	Name         string // parameter name (e.g., "class")
	Description  string // human-readable description
	DefaultValue string // default if not provided
	Required     bool   // whether the parameter must be supplied
	IRI          bool   // the value is substituted inside <...>
}

// Template holds a pre-built exploration query.
type Template struct {
	Name        string      // unique slug (e.g., "tool-applications")
	Description string      // one-line description
	Category    string      // grouping label (e.g., "workflow", "schema")
	Query       string      // SPARQL query, may contain {{name}} placeholders
	Parameters  []Parameter // parameters for substitution
}

const prologue = `PREFIX wf: <http://geographicknowledge.de/vocab/Workflow.rdf#>
PREFIX gis: <http://geographicknowledge.de/vocab/GISConcepts.rdf#>
PREFIX ana: <http://geographicknowledge.de/vocab/AnalysisData.rdf#>
`

var registry = map[string]Template{
	"class-counts": {
		Name:        "class-counts",
		Description: "Instances per class, largest first",
		Category:    "overview",
		Query: prologue + `SELECT ?class (COUNT(DISTINCT ?s) AS ?instances) WHERE {
  ?s a ?class .
  FILTER(STRSTARTS(STR(?class), "{{namespace}}"))
} GROUP BY ?class ORDER BY DESC(?instances) ?class`,
		Parameters: []Parameter{
			{Name: "namespace", Description: "only classes in this namespace", DefaultValue: ""},
		},
	},
	"predicate-usage": {
		Name:        "predicate-usage",
		Description: "Triples per predicate, largest first",
		Category:    "overview",
		Query: prologue + `SELECT ?predicate (COUNT(*) AS ?triples) WHERE {
  ?s ?predicate ?o .
} GROUP BY ?predicate ORDER BY DESC(?triples) ?predicate`,
	},
	"tool-applications": {
		Name:        "tool-applications",
		Description: "Workflow steps and the tools they apply",
		Category:    "workflow",
		Query: prologue + `SELECT ?workflow ?step ?tool WHERE {
  ?workflow wf:edge ?step .
  ?step wf:applicationOf ?tool .
} ORDER BY ?workflow ?step`,
	},
	"step-io": {
		Name:        "step-io",
		Description: "Inputs and outputs of every workflow step",
		Category:    "workflow",
		Query: prologue + `SELECT ?step ?input ?output WHERE {
  ?step wf:output ?output .
  OPTIONAL {
    { ?step wf:input1 ?input } UNION { ?step wf:input2 ?input } UNION { ?step wf:input3 ?input }
  }
} ORDER BY ?step ?input`,
	},
	"data-types": {
		Name:        "data-types",
		Description: "Types assigned to data produced by workflow steps",
		Category:    "enrichment",
		Query: prologue + `SELECT ?data ?type WHERE {
  ?step wf:output ?data .
  ?data a ?type .
  FILTER(STRSTARTS(STR(?type), "{{namespace}}"))
} ORDER BY ?data ?type`,
		Parameters: []Parameter{
			{Name: "namespace", Description: "only types in this namespace", DefaultValue: "http://geographicknowledge.de/vocab/"},
		},
	},
	"untyped-outputs": {
		Name:        "untyped-outputs",
		Description: "Step outputs that no enrichment gave a GIS type",
		Category:    "enrichment",
		Query: prologue + `SELECT DISTINCT ?step ?data WHERE {
  ?step wf:output ?data .
  FILTER NOT EXISTS {
    ?data a ?type .
    FILTER(STRSTARTS(STR(?type), "http://geographicknowledge.de/vocab/GISConcepts.rdf#"))
  }
} ORDER BY ?step`,
	},
	"subclasses": {
		Name:        "subclasses",
		Description: "All subclasses of a class in the closure",
		Category:    "schema",
		Query: prologue + `SELECT ?subclass ?label WHERE {
  ?subclass rdfs:subClassOf <{{class}}> .
  OPTIONAL { ?subclass rdfs:label ?label }
  FILTER(?subclass != <{{class}}>)
} ORDER BY ?subclass`,
		Parameters: []Parameter{
			{Name: "class", Description: "IRI of the superclass", Required: true, IRI: true},
		},
	},
	"describe": {
		Name:        "describe",
		Description: "Every statement about one resource",
		Category:    "schema",
		Query: prologue + `SELECT ?predicate ?object WHERE {
  <{{resource}}> ?predicate ?object .
} ORDER BY ?predicate ?object`,
		Parameters: []Parameter{
			{Name: "resource", Description: "IRI of the resource", Required: true, IRI: true},
		},
	},
}

// Registry returns all templates keyed by name.
func Registry() map[string]Template {
	return registry
}

// Names returns template names in sorted order for consistent listing.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a template by name, or false if not found.
func Get(name string) (Template, bool) {
	template, exists := registry[name]
	return template, exists
}

// Render substitutes parameters into the template query. Missing optional
// parameters take their default; missing required parameters and unknown
// parameter names are errors.
func Render(template Template, values map[string]string) (string, error) {
	known := make(map[string]bool, len(template.Parameters))
	for _, parameter := range template.Parameters {
		known[parameter.Name] = true
	}
	for name := range values {
		if !known[name] {
			return "", fmt.Errorf("template %s has no parameter %q", template.Name, name)
		}
	}

	rendered := template.Query
	for _, parameter := range template.Parameters {
		value, exists := values[parameter.Name]
		if !exists || value == "" {
			if parameter.Required {
				return "", fmt.Errorf("required parameter %s not provided: %s", parameter.Name, parameter.Description)
			}
			value = parameter.DefaultValue
		}
		if err := checkValue(parameter, value); err != nil {
			return "", err
		}
		rendered = strings.ReplaceAll(rendered, "{{"+parameter.Name+"}}", value)
	}
	return rendered, nil
}

// checkValue rejects values that would break out of their position in the
// query.
func checkValue(parameter Parameter, value string) error {
	forbidden := `"\`
	if parameter.IRI {
		forbidden = "<>\"{}|^`\\ \t\n"
	}
	if strings.ContainsAny(value, forbidden) {
		return fmt.Errorf("invalid value for parameter %s: %q", parameter.Name, value)
	}
	return nil
}

// ParseParams turns name=value pairs into a parameter map.
func ParseParams(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q is not name=value", pair)
		}
		values[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return values, nil
}

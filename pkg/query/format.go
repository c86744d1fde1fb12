package query

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/semgeo/semgeo/pkg/store"
)

// Output format types.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
)

// Format formats the query result in the specified format.
func (r *QueryResult) Format(format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return r.FormatJSON()
	case FormatCSV:
		return r.FormatCSV()
	case FormatTable:
		return r.FormatTable(), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// displayTerm renders a term for people: IRIs bare, literals by lexical form
// with a language tag when present.
func displayTerm(term string) string {
	lexical, lang, _, ok := store.SplitLiteral(term)
	if !ok {
		return term
	}
	if lang != "" {
		return lexical + "@" + lang
	}
	return lexical
}

// FormatTable formats the result as an ASCII table.
func (r *QueryResult) FormatTable() string {
	if r.Boolean != nil {
		return fmt.Sprintf("%t\n", *r.Boolean)
	}
	if r.Triples != nil {
		var sb strings.Builder
		for _, triple := range r.Triples {
			sb.WriteString(triple.NTriples())
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%d triples\n", r.Count))
		return sb.String()
	}
	if len(r.Variables) == 0 || len(r.Bindings) == 0 {
		return fmt.Sprintf("No results (%d rows)\n", r.Count)
	}

	var sb strings.Builder

	// Calculate column widths
	widths := make([]int, len(r.Variables))
	for i, v := range r.Variables {
		widths[i] = len(v)
	}
	for _, binding := range r.Bindings {
		for i, v := range r.Variables {
			if width := len(displayTerm(binding[v])); width > widths[i] {
				widths[i] = width
			}
		}
	}

	var sep strings.Builder
	sep.WriteString("+")
	for _, w := range widths {
		sep.WriteString(strings.Repeat("-", w+2))
		sep.WriteString("+")
	}
	sep.WriteString("\n")

	sb.WriteString(sep.String())

	sb.WriteString("|")
	for i, v := range r.Variables {
		sb.WriteString(fmt.Sprintf(" %-*s |", widths[i], v))
	}
	sb.WriteString("\n")
	sb.WriteString(sep.String())

	for _, binding := range r.Bindings {
		sb.WriteString("|")
		for i, v := range r.Variables {
			sb.WriteString(fmt.Sprintf(" %-*s |", widths[i], displayTerm(binding[v])))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(sep.String())

	sb.WriteString(fmt.Sprintf("%d rows\n", r.Count))
	return sb.String()
}

// FormatJSON formats the result as JSON. Terms keep their N-Triples form so
// IRIs, blank nodes and typed literals stay distinguishable.
func (r *QueryResult) FormatJSON() (string, error) {
	type jsonResult struct {
		Variables []string            `json:"variables,omitempty"`
		Bindings  []map[string]string `json:"bindings,omitempty"`
		Boolean   *bool               `json:"boolean,omitempty"`
		Triples   []string            `json:"triples,omitempty"`
		Count     int                 `json:"count"`
	}

	result := jsonResult{
		Variables: r.Variables,
		Boolean:   r.Boolean,
		Count:     r.Count,
	}
	for _, binding := range r.Bindings {
		row := make(map[string]string, len(binding))
		for k, v := range binding {
			row[k] = store.FormatTerm(v)
		}
		result.Bindings = append(result.Bindings, row)
	}
	for _, triple := range r.Triples {
		result.Triples = append(result.Triples, triple.NTriples())
	}

	var sb strings.Builder
	encoder := json.NewEncoder(&sb)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return "", err
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

// FormatCSV formats the result as CSV.
func (r *QueryResult) FormatCSV() (string, error) {
	var sb strings.Builder
	writer := csv.NewWriter(&sb)

	switch {
	case r.Boolean != nil:
		if err := writer.Write([]string{"boolean"}); err != nil {
			return "", err
		}
		if err := writer.Write([]string{fmt.Sprintf("%t", *r.Boolean)}); err != nil {
			return "", err
		}
	case r.Triples != nil:
		if err := writer.Write([]string{"subject", "predicate", "object"}); err != nil {
			return "", err
		}
		for _, triple := range r.Triples {
			if err := writer.Write([]string{triple.Subject, triple.Predicate, displayTerm(triple.Object)}); err != nil {
				return "", err
			}
		}
	default:
		if err := writer.Write(r.Variables); err != nil {
			return "", err
		}
		for _, binding := range r.Bindings {
			row := make([]string, len(r.Variables))
			for i, v := range r.Variables {
				row[i] = displayTerm(binding[v])
			}
			if err := writer.Write(row); err != nil {
				return "", err
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	return sb.String(), nil
}

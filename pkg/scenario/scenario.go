// Package scenario holds the catalog of workflow scenarios the pipeline can
// run.
package scenario

import (
	"fmt"
	"strings"
)

// Scenario is one workflow instance plus the ordered tools and propagations
// to enrich it with.
type Scenario struct {
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Instance     string   `yaml:"instance" json:"instance"`
	Tools        []string `yaml:"tools,omitempty" json:"tools,omitempty"`
	Propagations []string `yaml:"propagations,omitempty" json:"propagations,omitempty"`
}

// Validate checks that the scenario can run.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("scenario name is required")
	}
	if strings.TrimSpace(s.Instance) == "" {
		return fmt.Errorf("scenario %s: instance is required", s.Name)
	}
	for _, tool := range s.Tools {
		if strings.TrimSpace(tool) == "" {
			return fmt.Errorf("scenario %s: empty tool name", s.Name)
		}
	}
	for _, propagation := range s.Propagations {
		if strings.TrimSpace(propagation) == "" {
			return fmt.Errorf("scenario %s: empty propagation name", s.Name)
		}
	}
	return nil
}

// Catalog is an ordered, read-only list of scenarios.
type Catalog struct {
	scenarios []Scenario
	index     map[string]int
}

// NewCatalog builds a catalog. Names must be unique.
func NewCatalog(scenarios ...Scenario) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(scenarios))}
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, exists := c.index[s.Name]; exists {
			return nil, fmt.Errorf("duplicate scenario %q", s.Name)
		}
		c.index[s.Name] = len(c.scenarios)
		c.scenarios = append(c.scenarios, s)
	}
	return c, nil
}

// Builtin returns the lights and lcpath workflows.
func Builtin() []Scenario {
	return []Scenario{
		{
			Name:        "lights",
			Description: "street lights workflow, instance only",
			Instance:    "workflows/workflow_lights/workflow_lights.ttl",
		},
		{
			Name:        "lcpath",
			Description: "least cost path workflow",
			Instance:    "workflows/workflow_lcpath/workflow_lcpath.ttl",
			Tools: []string{
				"euclideandistance",
				"polygontoraster",
				"localmapalgebra",
				"pointtoraster",
				"costdistance",
				"costpath",
				"toline",
			},
			Propagations: []string{"qquality", "path"},
		},
	}
}

// Get returns the scenario with the given name.
func (c *Catalog) Get(name string) (Scenario, bool) {
	i, ok := c.index[name]
	if !ok {
		return Scenario{}, false
	}
	return c.scenarios[i], true
}

// All returns every scenario in catalog order.
func (c *Catalog) All() []Scenario {
	return append([]Scenario(nil), c.scenarios...)
}

// Names returns the scenario names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.scenarios))
	for i, s := range c.scenarios {
		names[i] = s.Name
	}
	return names
}

// Entities returns every tool and propagation name declared by the
// catalog's scenarios, each once, in first-use order.
func (c *Catalog) Entities() (tools, propagations []string) {
	seenTools := make(map[string]bool)
	seenPropagations := make(map[string]bool)
	for _, s := range c.scenarios {
		for _, tool := range s.Tools {
			if !seenTools[tool] {
				seenTools[tool] = true
				tools = append(tools, tool)
			}
		}
		for _, propagation := range s.Propagations {
			if !seenPropagations[propagation] {
				seenPropagations[propagation] = true
				propagations = append(propagations, propagation)
			}
		}
	}
	return tools, propagations
}

// Select returns the scenarios named in selectors, in catalog order, and
// the selectors that matched nothing. Repeated selectors count once.
func (c *Catalog) Select(selectors []string) (selected []Scenario, unknown []string) {
	wanted := make(map[string]bool, len(selectors))
	for _, name := range selectors {
		if _, ok := c.index[name]; !ok {
			if !wanted[name] {
				unknown = append(unknown, name)
			}
			wanted[name] = true
			continue
		}
		wanted[name] = true
	}
	for _, s := range c.scenarios {
		if wanted[s.Name] {
			selected = append(selected, s)
		}
	}
	return selected, unknown
}

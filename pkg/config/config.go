// Package config provides configuration loading and management for semgeo.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/semgeo/semgeo/pkg/inference"
	"github.com/semgeo/semgeo/pkg/rules"
	"github.com/semgeo/semgeo/pkg/scenario"
	"github.com/semgeo/semgeo/pkg/store"
)

// Config represents the complete semgeo configuration
type Config struct {
	// BaseDir is the directory every relative path is resolved against
	BaseDir string `yaml:"base_dir"`
	// Ontologies are loaded in order before any scenario
	Ontologies []string            `yaml:"ontologies"`
	Rules      RulesConfig         `yaml:"rules"`
	Closure    ClosureConfig       `yaml:"closure"`
	Output     OutputConfig        `yaml:"output"`
	Scenarios  []scenario.Scenario `yaml:"scenarios"`
	History    HistoryConfig       `yaml:"history"`
	Metrics    MetricsConfig       `yaml:"metrics"`
	Watch      WatchConfig         `yaml:"watch"`
}

// RulesConfig configures rule discovery
type RulesConfig struct {
	// Dir holds the enrichment rule files
	Dir string `yaml:"dir"`
	// Prefixes is the file whose PREFIX declarations precede every rule
	Prefixes string `yaml:"prefixes"`
	// Extensions of rule files (default: .ru)
	Extensions []string `yaml:"extensions"`
	// Recursive also scans subdirectories of Dir
	Recursive bool `yaml:"recursive"`
	// Missing is the policy for entities without rules: ignore, warn or error
	Missing string `yaml:"missing"`
}

// ClosureConfig selects the RDFS closure variant
type ClosureConfig struct {
	Axioms         *bool `yaml:"axioms"`
	ResourceTyping *bool `yaml:"resource_typing"`
}

// OutputConfig configures the result file
type OutputConfig struct {
	Path string `yaml:"path"`
	// Format is turtle, rdfxml or ntriples (empty = from the path extension)
	Format string `yaml:"format"`
}

// HistoryConfig configures the run history database
type HistoryConfig struct {
	// Path of the SQLite database (empty = no history)
	Path string `yaml:"path"`
}

// MetricsConfig configures batch metrics output
type MetricsConfig struct {
	// Textfile is written in the Prometheus text format after each run
	Textfile string `yaml:"textfile"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	// Debounce is the quiet period before a rerun
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns a Config matching the standard project layout
func DefaultConfig() *Config {
	return &Config{
		BaseDir: ".",
		Ontologies: []string{
			"ontologies/Workflow.rdf",
			"ontologies/GISConcepts.rdf",
			"ontologies/AnalysisData.rdf",
		},
		Rules: RulesConfig{
			Dir:        "enrichments",
			Prefixes:   "rdf_prefixes.txt",
			Extensions: []string{".ru"},
			Missing:    string(rules.MissingWarn),
		},
		Closure: ClosureConfig{
			Axioms:         boolPtr(true),
			ResourceTyping: boolPtr(true),
		},
		Output: OutputConfig{
			Path:   "output/workflows_output.ttl",
			Format: "",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Rules.Dir == "" {
		return fmt.Errorf("rules.dir is required")
	}
	if _, err := rules.ParseMissingPolicy(c.Rules.Missing); err != nil {
		return fmt.Errorf("rules.missing: %w", err)
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	if _, err := c.OutputFormat(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	for i, path := range c.Ontologies {
		if path == "" {
			return fmt.Errorf("ontologies[%d] is empty", i)
		}
	}
	if _, err := c.Catalog(); err != nil {
		return fmt.Errorf("scenarios: %w", err)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.BaseDir != "" {
		c.BaseDir = other.BaseDir
	}
	if len(other.Ontologies) > 0 {
		c.Ontologies = other.Ontologies
	}

	// Rules
	if other.Rules.Dir != "" {
		c.Rules.Dir = other.Rules.Dir
	}
	if other.Rules.Prefixes != "" {
		c.Rules.Prefixes = other.Rules.Prefixes
	}
	if len(other.Rules.Extensions) > 0 {
		c.Rules.Extensions = other.Rules.Extensions
	}
	if other.Rules.Recursive {
		c.Rules.Recursive = true
	}
	if other.Rules.Missing != "" {
		c.Rules.Missing = other.Rules.Missing
	}

	// Closure
	if other.Closure.Axioms != nil {
		c.Closure.Axioms = boolPtr(*other.Closure.Axioms)
	}
	if other.Closure.ResourceTyping != nil {
		c.Closure.ResourceTyping = boolPtr(*other.Closure.ResourceTyping)
	}

	// Output
	if other.Output.Path != "" {
		c.Output.Path = other.Output.Path
	}
	if other.Output.Format != "" {
		c.Output.Format = other.Output.Format
	}

	if len(other.Scenarios) > 0 {
		c.Scenarios = other.Scenarios
	}
	if other.History.Path != "" {
		c.History.Path = other.History.Path
	}
	if other.Metrics.Textfile != "" {
		c.Metrics.Textfile = other.Metrics.Textfile
	}
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
}

// Resolve makes a configured path absolute relative to BaseDir.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

// OntologyPaths returns the resolved ontology list in load order.
func (c *Config) OntologyPaths() []string {
	paths := make([]string, len(c.Ontologies))
	for i, path := range c.Ontologies {
		paths[i] = c.Resolve(path)
	}
	return paths
}

// OutputFormat returns the configured serialization, falling back to the
// output path extension and then to Turtle.
func (c *Config) OutputFormat() (store.Format, error) {
	if c.Output.Format != "" {
		return store.ParseFormat(c.Output.Format)
	}
	if format, err := store.FormatForPath(c.Output.Path); err == nil {
		return format, nil
	}
	return store.FormatTurtle, nil
}

// MissingPolicy returns the parsed missing-rules policy.
func (c *Config) MissingPolicy() rules.MissingPolicy {
	policy, err := rules.ParseMissingPolicy(c.Rules.Missing)
	if err != nil {
		return rules.MissingWarn
	}
	return policy
}

// ClosureOptions returns the inference options. Unset flags default to on.
func (c *Config) ClosureOptions() inference.Options {
	opts := inference.DefaultOptions()
	if c.Closure.Axioms != nil {
		opts.Axioms = *c.Closure.Axioms
	}
	if c.Closure.ResourceTyping != nil {
		opts.ResourceTyping = *c.Closure.ResourceTyping
	}
	return opts
}

// ScanOptions returns the rule discovery options.
func (c *Config) ScanOptions() rules.ScanOptions {
	prefixFile := c.Rules.Prefixes
	if prefixFile != "" {
		prefixFile = c.Resolve(prefixFile)
		if abs, err := filepath.Abs(prefixFile); err == nil {
			prefixFile = abs
		}
	}
	opts := rules.ScanOptions{
		Extensions: c.Rules.Extensions,
		PrefixFile: prefixFile,
		Recursive:  c.Rules.Recursive,
	}
	// An invalid catalog is reported by Validate; the convention still applies.
	if catalog, err := c.Catalog(); err == nil {
		opts.Entities.Tools, opts.Entities.Propagations = catalog.Entities()
	}
	return opts
}

// Catalog returns the built-in scenarios with the configured ones applied:
// a configured scenario replaces a built-in of the same name, others are
// appended in configuration order.
func (c *Config) Catalog() (*scenario.Catalog, error) {
	scenarios := scenario.Builtin()
	for _, configured := range c.Scenarios {
		replaced := false
		for i := range scenarios {
			if scenarios[i].Name == configured.Name {
				scenarios[i] = configured
				replaced = true
				break
			}
		}
		if !replaced {
			scenarios = append(scenarios, configured)
		}
	}
	return scenario.NewCatalog(scenarios...)
}

// Package rules discovers enrichment rule files and resolves them by entity
// and category.
//
// Rule files follow a naming convention:
//
//	enrich_<tool>_in<variant>.ru     tool-input update
//	enrich_<tool>_out<variant>.ru    tool-output update
//	enrich_<tool>_test<variant>.ru   tool test query
//	propagate_<name>.ru              propagation update
//	propagate_<name>_test.ru         propagation test query
//
// The registry is built once by Scan and is read-only afterwards.
package rules

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Category classifies a rule by what it applies to and how it runs.
type Category string

const (
	ToolInput        Category = "tool-input"
	ToolOutput       Category = "tool-output"
	ToolTest         Category = "tool-test"
	PropagationApply Category = "propagation-apply"
	PropagationTest  Category = "propagation-test"
)

// Categories lists every category in execution order.
var Categories = []Category{ToolInput, ToolOutput, ToolTest, PropagationApply, PropagationTest}

// IsTest reports whether rules of this category run as queries.
func (c Category) IsTest() bool {
	return c == ToolTest || c == PropagationTest
}

// IsTool reports whether the category belongs to a tool entity.
func (c Category) IsTool() bool {
	return c == ToolInput || c == ToolOutput || c == ToolTest
}

// ParseCategory converts a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown rule category %q", s)
}

// Key identifies the rules for one entity and category.
type Key struct {
	Entity   string   `json:"entity"`
	Category Category `json:"category"`
}

func (k Key) String() string {
	return k.Entity + "/" + string(k.Category)
}

var (
	enrichPattern   = regexp.MustCompile(`_(in|out|test)`)
	strayTestSuffix = regexp.MustCompile(`_test.+$`)
)

var enrichCategories = []struct {
	marker   string
	category Category
}{
	{"_in", ToolInput},
	{"_out", ToolOutput},
	{"_test", ToolTest},
}

// Entities lists the declared tool and propagation names. File names are
// resolved against them first, so entity names may contain underscores.
type Entities struct {
	Tools        []string
	Propagations []string
}

// ParseFileName derives the key and variant of a rule file from its name
// using only the naming convention. See Entities.ParseFileName.
func ParseFileName(name string) (key Key, variant string, ok bool) {
	return Entities{}.ParseFileName(name)
}

// ParseFileName derives the key and variant of a rule file from its name.
// The extension is ignored. ok is false for names outside the convention.
//
// A declared entity whose name prefixes the file name wins, the longest one
// when several do, as long as the variant left over has no underscore.
// Otherwise the longest entity leaving such a variant is taken, falling back
// to the first split.
func (e Entities) ParseFileName(name string) (key Key, variant string, ok bool) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))

	if rest, found := strings.CutPrefix(base, "enrich_"); found {
		if key, variant, ok := e.declaredTool(rest); ok {
			return key, variant, true
		}
		return parseEnrich(rest)
	}

	if rest, found := strings.CutPrefix(base, "propagate_"); found && rest != "" {
		if key, ok := e.declaredPropagation(rest); ok {
			return key, "", true
		}
		return parsePropagate(rest)
	}

	return Key{}, "", false
}

func (e Entities) declaredTool(rest string) (Key, string, bool) {
	var best Key
	var bestVariant string
	found := false
	for _, tool := range e.Tools {
		if found && len(tool) <= len(best.Entity) {
			continue
		}
		after, ok := strings.CutPrefix(rest, tool)
		if !ok {
			continue
		}
		for _, c := range enrichCategories {
			if v, ok := strings.CutPrefix(after, c.marker); ok && !strings.Contains(v, "_") {
				best, bestVariant, found = Key{Entity: tool, Category: c.category}, v, true
				break
			}
		}
	}
	return best, bestVariant, found
}

func (e Entities) declaredPropagation(rest string) (Key, bool) {
	var best Key
	found := false
	for _, name := range e.Propagations {
		if found && len(name) <= len(best.Entity) {
			continue
		}
		switch rest {
		case name:
			best, found = Key{Entity: name, Category: PropagationApply}, true
		case name + "_test":
			best, found = Key{Entity: name, Category: PropagationTest}, true
		}
	}
	return best, found
}

type split struct {
	key     Key
	variant string
}

func parseEnrich(rest string) (Key, string, bool) {
	var candidates []split
	for _, loc := range enrichPattern.FindAllStringSubmatchIndex(rest, -1) {
		if loc[0] == 0 {
			continue
		}
		var category Category
		switch rest[loc[2]:loc[3]] {
		case "in":
			category = ToolInput
		case "out":
			category = ToolOutput
		case "test":
			category = ToolTest
		}
		candidates = append(candidates, split{Key{Entity: rest[:loc[0]], Category: category}, rest[loc[1]:]})
	}
	if len(candidates) == 0 {
		return Key{}, "", false
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		if !strings.Contains(candidates[i].variant, "_") {
			return candidates[i].key, candidates[i].variant, true
		}
	}
	return candidates[0].key, candidates[0].variant, true
}

func parsePropagate(rest string) (Key, string, bool) {
	if entity, found := strings.CutSuffix(rest, "_test"); found && entity != "" {
		return Key{Entity: entity, Category: PropagationTest}, "", true
	}
	// propagate_<name>_test<suffix> is neither an update nor a test.
	if strayTestSuffix.MatchString(rest) {
		return Key{}, "", false
	}
	return Key{Entity: rest, Category: PropagationApply}, "", true
}

// MissingPolicy decides what happens when an entity has no rule files.
type MissingPolicy string

const (
	MissingIgnore MissingPolicy = "ignore"
	MissingWarn   MissingPolicy = "warn"
	MissingError  MissingPolicy = "error"
)

// ParseMissingPolicy converts a policy name. The empty string means warn.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch MissingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MissingWarn:
		return MissingWarn, nil
	case MissingIgnore:
		return MissingIgnore, nil
	case MissingError:
		return MissingError, nil
	}
	return "", fmt.Errorf("unknown missing-rules policy %q (want ignore, warn or error)", s)
}

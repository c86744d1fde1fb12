package rules

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule is one rule file ready to run.
type Rule struct {
	Key
	Variant string `json:"variant,omitempty"`

	// Name is the file name, Path the file location on disk.
	Name string `json:"name"`
	Path string `json:"path"`

	// Body is the file content, Text the preamble followed by the body.
	Body string `json:"-"`
	Text string `json:"-"`
}

// ScanOptions configures Scan.
type ScanOptions struct {
	// Extensions of rule files, with the leading dot. Defaults to [".ru"].
	Extensions []string

	// PrefixFile holds PREFIX declarations prepended to every rule.
	// Relative paths are resolved against the rule directory.
	PrefixFile string

	// Recursive also scans subdirectories.
	Recursive bool

	// Entities are the declared tools and propagations file names are
	// resolved against.
	Entities Entities

	Logger *slog.Logger
}

// Registry holds every discovered rule, grouped by key.
type Registry struct {
	dir      string
	preamble string
	prefixes map[string]string
	rules    map[Key][]Rule
	ignored  []string
	files    []string
}

// Scan reads the rule directory once and builds the registry.
func Scan(dir string, opts ScanOptions) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("rule directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("rule directory %s is not a directory", dir)
	}

	r := &Registry{
		dir:      dir,
		prefixes: make(map[string]string),
		rules:    make(map[Key][]Rule),
	}

	if opts.PrefixFile != "" {
		prefixPath := opts.PrefixFile
		if !filepath.IsAbs(prefixPath) {
			prefixPath = filepath.Join(dir, prefixPath)
		}
		data, err := os.ReadFile(prefixPath)
		if err != nil {
			return nil, fmt.Errorf("prefix file: %w", err)
		}
		r.preamble = strings.TrimSpace(string(data))
		r.prefixes = ParsePrefixes(r.preamble)
		r.files = append(r.files, prefixPath)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), globPattern(opts), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(matches)

	for _, match := range matches {
		name := path.Base(match)
		key, variant, ok := opts.Entities.ParseFileName(name)
		if !ok {
			logger.Debug("ignoring file outside the rule naming convention", "file", match)
			r.ignored = append(r.ignored, match)
			continue
		}

		fullPath := filepath.Join(dir, filepath.FromSlash(match))
		data, err := fs.ReadFile(os.DirFS(dir), match)
		if err != nil {
			return nil, fmt.Errorf("read rule %s: %w", fullPath, err)
		}

		body := strings.TrimSpace(string(data))
		text := body
		if r.preamble != "" {
			text = r.preamble + "\n" + body
		}

		r.rules[key] = append(r.rules[key], Rule{
			Key:     key,
			Variant: variant,
			Name:    name,
			Path:    fullPath,
			Body:    body,
			Text:    text,
		})
		r.files = append(r.files, fullPath)
	}

	for key := range r.rules {
		rules := r.rules[key]
		sort.SliceStable(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	}

	logger.Debug("rule registry built", "dir", dir, "rules", r.Len(), "keys", len(r.rules), "ignored", len(r.ignored))
	return r, nil
}

func globPattern(opts ScanOptions) string {
	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = []string{".ru"}
	}

	names := make([]string, len(extensions))
	for i, ext := range extensions {
		names[i] = strings.TrimPrefix(ext, ".")
	}

	pattern := "*." + names[0]
	if len(names) > 1 {
		pattern = "*.{" + strings.Join(names, ",") + "}"
	}
	if opts.Recursive {
		pattern = "**/" + pattern
	}
	return pattern
}

// Lookup returns the rules for an entity and category in file-name order.
// The result is empty, never an error, when nothing matches.
func (r *Registry) Lookup(entity string, category Category) []Rule {
	rules := r.rules[Key{Entity: entity, Category: category}]
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Has reports whether any rule exists for the entity in one of the
// categories.
func (r *Registry) Has(entity string, categories ...Category) bool {
	for _, category := range categories {
		if len(r.rules[Key{Entity: entity, Category: category}]) > 0 {
			return true
		}
	}
	return false
}

// Keys returns every key with at least one rule, sorted.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.rules))
	for key := range r.rules {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Entity != keys[j].Entity {
			return keys[i].Entity < keys[j].Entity
		}
		return categoryIndex(keys[i].Category) < categoryIndex(keys[j].Category)
	})
	return keys
}

// All returns every rule ordered by key, then file name.
func (r *Registry) All() []Rule {
	var all []Rule
	for _, key := range r.Keys() {
		all = append(all, r.rules[key]...)
	}
	return all
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	n := 0
	for _, rules := range r.rules {
		n += len(rules)
	}
	return n
}

// Dir returns the scanned directory.
func (r *Registry) Dir() string { return r.dir }

// Preamble returns the shared prefix text.
func (r *Registry) Preamble() string { return r.preamble }

// Prefixes returns the prefix declarations of the preamble.
func (r *Registry) Prefixes() map[string]string {
	out := make(map[string]string, len(r.prefixes))
	for k, v := range r.prefixes {
		out[k] = v
	}
	return out
}

// Ignored returns the files that matched the extension but not the naming
// convention, relative to the rule directory.
func (r *Registry) Ignored() []string {
	return append([]string(nil), r.ignored...)
}

// Files returns the prefix file and every rule file.
func (r *Registry) Files() []string {
	return append([]string(nil), r.files...)
}

func categoryIndex(c Category) int {
	for i, category := range Categories {
		if category == c {
			return i
		}
	}
	return len(Categories)
}

var prefixDecl = regexp.MustCompile(`(?i)PREFIX\s+([A-Za-z][\w.-]*)?:\s*<([^>]*)>`)

// ParsePrefixes extracts PREFIX declarations from SPARQL text.
func ParsePrefixes(text string) map[string]string {
	prefixes := make(map[string]string)
	for _, m := range prefixDecl.FindAllStringSubmatch(text, -1) {
		prefixes[m[1]] = m[2]
	}
	return prefixes
}

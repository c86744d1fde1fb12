package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semgeo/semgeo/pkg/graph"
	"github.com/semgeo/semgeo/pkg/query"
	"github.com/semgeo/semgeo/pkg/rules"
	"github.com/semgeo/semgeo/pkg/templates"
)

func queryCmd(global *globalFlags) *cobra.Command {
	var (
		graphs        []string
		queryFile     string
		format        string
		templateName  string
		params        []string
		listTemplates bool
	)

	cmd := &cobra.Command{
		Use:   "query [sparql]",
		Short: "Run a SPARQL query over a serialized graph",
		Long: `Run an ad-hoc SELECT, ASK or CONSTRUCT query.

The graph defaults to the configured pipeline output. Prefixes from the
rule prefix file are available without declaring them. Pre-built queries
are available with --template.

Example:
  semgeo query "SELECT ?tool WHERE { ?tool a wf:Tool }"
  semgeo query --graph out.ttl --file checks/paths.rq --format json
  semgeo query --template subclasses --param class=http://geographicknowledge.de/vocab/GISConcepts.rdf#Raster`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if listTemplates {
				printTemplates(cmd.OutOrStdout())
				return nil
			}

			cfg, logger, err := global.setup()
			if err != nil {
				return err
			}

			var text string
			if templateName != "" {
				if len(args) > 0 || queryFile != "" {
					return errors.New("--template cannot be combined with a query")
				}
				text, err = templateText(templateName, params)
			} else {
				text, err = queryText(args, queryFile)
			}
			if err != nil {
				return err
			}

			outputFormat := query.OutputFormat(strings.ToLower(format))
			switch outputFormat {
			case query.FormatTable, query.FormatJSON, query.FormatCSV:
			default:
				return fmt.Errorf("unknown output format %q (use table, json or csv)", format)
			}

			prefixes := make(map[string]string)
			if prefixFile := cfg.ScanOptions().PrefixFile; prefixFile != "" {
				if data, err := os.ReadFile(prefixFile); err == nil {
					prefixes = rules.ParsePrefixes(string(data))
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("prefix file: %w", err)
				}
			}

			paths := graphs
			if len(paths) == 0 {
				paths = []string{cfg.Resolve(cfg.Output.Path)}
			}

			g := graph.NewMemory(graph.WithPrefixes(prefixes), graph.WithLogger(logger))
			ctx := cmd.Context()
			for _, path := range paths {
				if err := g.Load(ctx, path); err != nil {
					return fmt.Errorf("load %s: %w", path, err)
				}
			}
			logger.Debug("Graph loaded", "files", len(paths), "triples", g.Size())

			result, err := g.Query(ctx, text)
			if err != nil {
				return err
			}
			formatted, err := result.Format(outputFormat)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, formatted)
			if !strings.HasSuffix(formatted, "\n") {
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&graphs, "graph", "g", nil, "Graph file to query (repeatable; default: output.path)")
	cmd.Flags().StringVarP(&queryFile, "file", "f", "", "Read the query from a file")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json or csv")
	cmd.Flags().StringVarP(&templateName, "template", "t", "", "Run a pre-built query template")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Template parameter as name=value (repeatable)")
	cmd.Flags().BoolVar(&listTemplates, "list-templates", false, "List the query templates")
	return cmd
}

func templateText(name string, pairs []string) (string, error) {
	template, ok := templates.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown template %q (see --list-templates)", name)
	}
	values, err := templates.ParseParams(pairs)
	if err != nil {
		return "", err
	}
	return templates.Render(template, values)
}

func printTemplates(out io.Writer) {
	for _, name := range templates.Names() {
		template, _ := templates.Get(name)
		fmt.Fprintf(out, "%-18s %-10s %s\n", template.Name, template.Category, template.Description)
		for _, parameter := range template.Parameters {
			required := ""
			if parameter.Required {
				required = " (required)"
			}
			fmt.Fprintf(out, "  --param %s=...  %s%s\n", parameter.Name, parameter.Description, required)
		}
	}
}

func queryText(args []string, file string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", errors.New("give the query as an argument or with --file, not both")
	case file != "":
		data, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return "", fmt.Errorf("read query: %w", err)
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", errors.New("no query given")
	}
}

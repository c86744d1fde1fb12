package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semgeo/semgeo/pkg/rules"
)

func scenariosCmd(global *globalFlags) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List the known scenarios",
		Long: `List the built-in and configured scenarios in run order.

With --check, every tool and propagation is looked up in the rule
directory and entities without rules are marked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := global.setup()
			if err != nil {
				return err
			}
			catalog, err := cfg.Catalog()
			if err != nil {
				return err
			}

			var registry *rules.Registry
			if check {
				scanOpts := cfg.ScanOptions()
				scanOpts.Logger = logger
				registry, err = rules.Scan(cfg.Resolve(cfg.Rules.Dir), scanOpts)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, s := range catalog.All() {
				fmt.Fprintf(out, "%s\n", s.Name)
				if s.Description != "" {
					fmt.Fprintf(out, "  %s\n", s.Description)
				}
				fmt.Fprintf(out, "  instance:     %s\n", s.Instance)
				fmt.Fprintf(out, "  tools:        %s\n", markMissing(s.Tools, registry, rules.ToolInput, rules.ToolOutput))
				fmt.Fprintf(out, "  propagations: %s\n", markMissing(s.Propagations, registry, rules.PropagationApply))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Mark tools and propagations without rule files")
	return cmd
}

func markMissing(entities []string, registry *rules.Registry, categories ...rules.Category) string {
	if len(entities) == 0 {
		return "-"
	}
	parts := make([]string, len(entities))
	for i, entity := range entities {
		parts[i] = entity
		if registry != nil && !registry.Has(entity, categories...) {
			parts[i] += " (no rules)"
		}
	}
	return strings.Join(parts, ", ")
}

func rulesCmd(global *globalFlags) *cobra.Command {
	var showIgnored bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the discovered rule files",
		Long: `Scan the rule directory and print the registry: every entity and
category with its rule files in application order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := global.setup()
			if err != nil {
				return err
			}
			scanOpts := cfg.ScanOptions()
			scanOpts.Logger = logger
			registry, err := rules.Scan(cfg.Resolve(cfg.Rules.Dir), scanOpts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rule directory: %s\n", registry.Dir())
			if prefixes := registry.Prefixes(); len(prefixes) > 0 {
				fmt.Fprintf(out, "Prefixes: %d\n", len(prefixes))
			}
			fmt.Fprintln(out)

			for _, key := range registry.Keys() {
				fmt.Fprintf(out, "%-24s %s\n", key.Entity, key.Category)
				for _, rule := range registry.Lookup(key.Entity, key.Category) {
					fmt.Fprintf(out, "  %s\n", rule.Name)
				}
			}
			fmt.Fprintf(out, "\n%d rules for %d keys\n", registry.Len(), len(registry.Keys()))

			if ignored := registry.Ignored(); len(ignored) > 0 {
				if showIgnored {
					fmt.Fprintln(out, "\nIgnored files:")
					for _, name := range ignored {
						fmt.Fprintf(out, "  %s\n", name)
					}
				} else {
					fmt.Fprintf(out, "%d files ignored (--ignored to list)\n", len(ignored))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showIgnored, "ignored", false, "List files outside the naming convention")
	return cmd
}

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semgeo/semgeo/pkg/history"
	"github.com/semgeo/semgeo/pkg/report"
)

func historyCmd(global *globalFlags) *cobra.Command {
	var (
		dbPath   string
		limit    int
		failures bool
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Show runs recorded with "semgeo run --history".

Without arguments the most recent runs are listed. With a run id the full
report of that run is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := global.setup()
			if err != nil {
				return err
			}

			path := absPath(dbPath)
			if path == "" {
				path = cfg.Resolve(cfg.History.Path)
			}
			if path == "" {
				return fmt.Errorf("no history database (set history.path or --db)")
			}

			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				rep, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return report.NewRenderer(out).Print(rep)
			}

			if failures {
				counts, err := store.Failures(ctx)
				if err != nil {
					return err
				}
				if len(counts) == 0 {
					fmt.Fprintln(out, "No failed tests recorded")
					return nil
				}
				for _, source := range sortedByCount(counts) {
					fmt.Fprintf(out, "%4d  %s\n", counts[source], source)
				}
				return nil
			}

			runs, err := store.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			for _, run := range runs {
				status := "ok"
				if !run.Succeeded() {
					status = "failed"
				}
				fmt.Fprintf(out, "%s  %s  %-6s  %-20s  %d passed, %d failed  %d triples\n",
					run.RunID,
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					status,
					strings.Join(run.Scenarios, ","),
					run.Passed,
					run.Failed,
					run.Triples)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "History database (default: history.path)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list (0 = all)")
	cmd.Flags().BoolVar(&failures, "failures", false, "Count failures per test rule instead of listing runs")
	return cmd
}

// sortedByCount orders keys by descending count, then by name.
func sortedByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/semgeo/semgeo/pkg/config"
	"github.com/semgeo/semgeo/pkg/graph"
	"github.com/semgeo/semgeo/pkg/history"
	"github.com/semgeo/semgeo/pkg/metrics"
	"github.com/semgeo/semgeo/pkg/pipeline"
	"github.com/semgeo/semgeo/pkg/report"
	"github.com/semgeo/semgeo/pkg/rules"
	"github.com/semgeo/semgeo/pkg/watch"
)

type runFlags struct {
	output     string
	format     string
	reportPath string
	historyDB  string
	metrics    string
	missing    string
	watch      bool
	failOnTest bool
}

func runCmd(global *globalFlags) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run the enrichment pipeline",
		Long: `Run the enrichment pipeline for the named scenarios.

The ontologies are always loaded. Each named scenario then loads its
instance, expands the closure and applies its tools and propagations.
Unknown scenario names are skipped with a warning.

Example:
  semgeo run lcpath
  semgeo run lights lcpath --report out/report.json --fail-on-test
  semgeo run lcpath --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := global.setup()
			if err != nil {
				return err
			}
			if err := flags.apply(cfg); err != nil {
				return err
			}

			runner, err := newRunner(cfg, flags, cmd.OutOrStdout(), logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			ctx := cmd.Context()
			if flags.watch {
				return runner.watch(ctx, args)
			}

			rep, err := runner.runOnce(ctx, args)
			if err != nil {
				return err
			}
			if flags.failOnTest && rep.Failed() > 0 {
				return &exitError{code: 3, err: fmt.Errorf("%d test(s) failed", rep.Failed())}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file (overrides output.path)")
	cmd.Flags().StringVar(&flags.format, "format", "", "Output format: turtle, rdfxml, ntriples or jsonld")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "Write the run report as JSON to this file")
	cmd.Flags().StringVar(&flags.historyDB, "history", "", "Append the run to this SQLite history database")
	cmd.Flags().StringVar(&flags.metrics, "metrics", "", "Write Prometheus textfile metrics to this file")
	cmd.Flags().StringVar(&flags.missing, "missing", "", "Policy for entities without rules: ignore, warn or error")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "Rerun when rule, ontology or instance files change")
	cmd.Flags().BoolVar(&flags.failOnTest, "fail-on-test", false, "Exit with status 3 when a test rule fails")

	return cmd
}

// apply lets flags override the configuration. Paths given on the command
// line are relative to the working directory, not the base directory.
func (f *runFlags) apply(cfg *config.Config) error {
	overrides := &config.Config{
		Output:  config.OutputConfig{Path: absPath(f.output), Format: f.format},
		History: config.HistoryConfig{Path: absPath(f.historyDB)},
		Metrics: config.MetricsConfig{Textfile: absPath(f.metrics)},
		Rules:   config.RulesConfig{Missing: f.missing},
	}
	cfg.Merge(overrides)
	return cfg.Validate()
}

func absPath(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// runner executes pipeline runs and persists their reports.
type runner struct {
	cfg        *config.Config
	reportPath string
	out        io.Writer
	logger     *slog.Logger

	history *history.Store
	metrics *metrics.Collector
}

func newRunner(cfg *config.Config, flags *runFlags, out io.Writer, logger *slog.Logger) (*runner, error) {
	r := &runner{
		cfg:        cfg,
		reportPath: flags.reportPath,
		out:        out,
		logger:     logger,
	}
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.Resolve(cfg.History.Path))
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		r.history = store
	}
	if cfg.Metrics.Textfile != "" {
		r.metrics = metrics.New()
	}
	return r, nil
}

func (r *runner) Close() error {
	if r.history != nil {
		return r.history.Close()
	}
	return nil
}

// runOnce runs the pipeline into a fresh graph with a freshly scanned rule
// registry, prints the report and persists it.
func (r *runner) runOnce(ctx context.Context, selectors []string) (*pipeline.Report, error) {
	scanOpts := r.cfg.ScanOptions()
	scanOpts.Logger = r.logger
	registry, err := rules.Scan(r.cfg.Resolve(r.cfg.Rules.Dir), scanOpts)
	if err != nil {
		return nil, err
	}

	catalog, err := r.cfg.Catalog()
	if err != nil {
		return nil, err
	}

	g := graph.NewMemory(
		graph.WithPrefixes(registry.Prefixes()),
		graph.WithClosureOptions(r.cfg.ClosureOptions()),
		graph.WithLogger(r.logger),
	)

	var writer *pipeline.ResultWriter
	if r.cfg.Output.Path != "" {
		format, err := r.cfg.OutputFormat()
		if err != nil {
			return nil, err
		}
		writer = pipeline.NewResultWriter(r.cfg.Resolve(r.cfg.Output.Path), format, r.logger)
	}

	orchestrator := pipeline.New(g, registry, catalog, pipeline.Options{
		Ontologies: r.cfg.OntologyPaths(),
		Resolve:    r.cfg.Resolve,
		Missing:    r.cfg.MissingPolicy(),
		Writer:     writer,
		Logger:     r.logger,
	})

	rep, runErr := orchestrator.Run(ctx, selectors)
	if rep != nil {
		if err := report.NewRenderer(r.out).Print(rep); err != nil {
			r.logger.Warn("Failed to print report", "error", err)
		}
		if err := r.persist(ctx, rep); err != nil {
			return rep, errors.Join(runErr, err)
		}
	}
	return rep, runErr
}

// persist writes the report to every configured sink. Failures are
// collected so one broken sink does not hide the others.
func (r *runner) persist(ctx context.Context, rep *pipeline.Report) error {
	var errs []error

	if r.reportPath != "" {
		if err := rep.SaveJSON(r.reportPath); err != nil {
			errs = append(errs, fmt.Errorf("save report: %w", err))
		} else {
			r.logger.Info("Report written", "path", r.reportPath)
		}
	}
	if r.history != nil {
		if err := r.history.Record(ctx, rep); err != nil {
			errs = append(errs, fmt.Errorf("record history: %w", err))
		}
	}
	if r.metrics != nil {
		r.metrics.Observe(rep)
		path := r.cfg.Resolve(r.cfg.Metrics.Textfile)
		if err := r.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// watch runs once, then reruns into a fresh graph whenever an input
// changes. Failed runs are reported and watching continues.
func (r *runner) watch(ctx context.Context, selectors []string) error {
	if _, err := r.runOnce(ctx, selectors); err != nil && ctx.Err() == nil {
		r.logger.Error("Run failed, waiting for changes", "error", err)
	}

	watcher, err := watch.New(r.watchConfig(selectors), r.logger)
	if err != nil {
		return err
	}

	return watcher.Run(ctx, func(ctx context.Context, change watch.Change) error {
		r.logger.Info("Rerunning", "changed", change.Paths)
		if _, err := r.runOnce(ctx, selectors); err != nil && ctx.Err() == nil {
			r.logger.Error("Run failed, waiting for changes", "error", err)
		}
		return nil
	})
}

// watchConfig lists the inputs of a run: ontologies, the instances of the
// selected scenarios, the prefix file and the rule directory.
func (r *runner) watchConfig(selectors []string) watch.Config {
	files := r.cfg.OntologyPaths()
	if catalog, err := r.cfg.Catalog(); err == nil {
		selected, _ := catalog.Select(selectors)
		for _, s := range selected {
			files = append(files, r.cfg.Resolve(s.Instance))
		}
	}
	if prefixFile := r.cfg.ScanOptions().PrefixFile; prefixFile != "" {
		files = append(files, prefixFile)
	}

	extensions := r.cfg.Rules.Extensions
	if len(extensions) == 0 {
		extensions = []string{".ru"}
	}
	return watch.Config{
		Files:      files,
		Dirs:       []string{r.cfg.Resolve(r.cfg.Rules.Dir)},
		Extensions: extensions,
		Debounce:   r.cfg.Watch.Debounce,
	}
}

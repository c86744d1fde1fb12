package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/semgeo/semgeo/pkg/config"
)

var version = "0.1.0"

// exitError carries a specific process exit status.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	baseDir    string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			if exit.err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", exit.err)
			}
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "semgeo",
		Short: "Semantic enrichment of geospatial analysis workflows",
		Long: `Semgeo enriches RDF descriptions of geospatial analysis workflows.

It loads the workflow ontologies and a scenario instance into one graph,
computes the RDFS closure, then applies the SPARQL enrichment rules of every
tool and propagation in order, checking each with its test rules:
  - Rule files follow enrich_<tool>_{in,out,test}* and propagate_<name>[_test]
  - Test rules are ASK or SELECT queries and never modify the graph
  - The enriched graph is written as Turtle, RDF/XML or N-Triples`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (default: semgeo.yaml in the base directory)")
	cmd.PersistentFlags().StringVar(&flags.baseDir, "base-dir", "", "Directory relative paths are resolved against")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(runCmd(flags))
	cmd.AddCommand(scenariosCmd(flags))
	cmd.AddCommand(rulesCmd(flags))
	cmd.AddCommand(queryCmd(flags))
	cmd.AddCommand(historyCmd(flags))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "semgeo version %s\n", version)
		},
	})

	return cmd
}

// setup builds the logger and loads the configuration.
func (f *globalFlags) setup() (*config.Config, *slog.Logger, error) {
	level, err := parseLogLevel(f.logLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load(f.configPath, f.baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger, nil
}

func parseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

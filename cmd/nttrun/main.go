// Package main provides the nttrun binary: list test suites and run tests
// against an engine serving ntt.Runtime.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/nttrun/pkg/config"
	"github.com/ormasoftchile/nttrun/pkg/logging"
	"github.com/ormasoftchile/nttrun/pkg/suite"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	exitVerdict = 1 // a test failed, was inconclusive, errored or could not run
	exitUsage   = 2 // the batch could not be started
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(exitUsage)
	}
}

var (
	cfgPath   string
	logLevel  string
	logFormat string

	cfg *config.Config
	log = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "nttrun",
	Short: "Run TTCN-3 tests against an ntt runtime engine",
	Long: `nttrun lists test suites and runs their tests against an engine
serving the ntt.Runtime gRPC service.

Settings are read from nttrun.yaml in the working directory or a parent
directory; flags override them.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// setup loads the configuration and the logger before every command.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, err = config.Discover(".")
	}
	if err != nil {
		return err
	}

	level := cfg.LogLevel()
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	format := cfg.LogFormat()
	if cmd.Flags().Changed("log-format") {
		format = logFormat
	}
	log, err = logging.New(os.Stderr, level, format)
	if err != nil {
		return err
	}
	if cfg != nil {
		log.Debug().Str("config", cfg.Root).Msg("configuration loaded")
	}
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaListingCmd = &cobra.Command{
	Use:   "listing",
	Short: "Print the JSON Schema of suite listings",
	RunE:  runSchemaListing,
}

func runSchemaListing(cmd *cobra.Command, args []string) error {
	data, err := suite.GenerateListingJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	formatted, err := json.MarshalIndent(json.RawMessage(data), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(formatted))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nttrun %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to nttrun.yaml (default: discovered from the working directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", config.DefaultLogFormat, "Log format: console or json")

	schemaCmd.AddCommand(schemaListingCmd)

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}

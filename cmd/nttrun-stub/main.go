// Package main provides the nttrun-stub binary: a scripted engine serving
// ntt.Runtime over gRPC, for exercising clients without a real runtime.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/nttrun/pkg/logging"
	"github.com/ormasoftchile/nttrun/pkg/protocol"
	"github.com/ormasoftchile/nttrun/pkg/stubengine"
)

var version = "dev"

var (
	scriptPath string
	listenAddr string
	listOnly   bool
	logLevel   string
	logFormat  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "nttrun-stub",
	Short:   "Serve a scripted ntt.Runtime engine",
	Version: version,
	Long: `nttrun-stub answers ntt.Runtime/Run calls from a YAML script:

  unknown: reject            # or error-verdict
  tests:
    - name: m1.tc_a
      mod: m1
      tags: ["@smoke"]
      verdict: pass
      delay: 10ms
    - name: m1.tc_b
      verdict: fail
      parameters:
        - {name: rtt, value: {float: 0.25}}

With --list it prints the suite listing of the script and exits.`,
	SilenceUsage: true,
	RunE:         runStub,
}

func runStub(cmd *cobra.Command, args []string) error {
	log, err := logging.New(os.Stderr, logLevel, logFormat)
	if err != nil {
		return err
	}
	engine, err := stubengine.Load(scriptPath)
	if err != nil {
		return err
	}

	if listOnly {
		data, err := engine.List(cmd.Context(), scriptPath)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listenAddr, err)
	}
	srv := protocol.NewGRPCServer(engine, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		srv.GracefulStop()
	}()

	log.Info().Str("addr", lis.Addr().String()).Str("script", scriptPath).Msg("stub engine listening")
	// Readiness line for process supervisors and integration tests.
	fmt.Fprintf(os.Stderr, "ready %s\n", lis.Addr())
	return srv.Serve(lis)
}

func init() {
	rootCmd.Flags().StringVar(&scriptPath, "script", "stub.yaml", "Path to the stub script")
	rootCmd.Flags().StringVar(&listenAddr, "listen", "localhost:9999", "Address to listen on")
	rootCmd.Flags().BoolVar(&listOnly, "list", false, "Print the listing of the scripted tests and exit")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "console", "Log format: console or json")
}

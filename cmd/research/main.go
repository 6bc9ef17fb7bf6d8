// Command research runs the market research pipeline from the terminal and
// manages saved projects.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BerylCAtieno/market-research-agent/internal/config"
	"github.com/BerylCAtieno/market-research-agent/internal/gateway"
	"github.com/BerylCAtieno/market-research-agent/internal/logging"
	"github.com/BerylCAtieno/market-research-agent/internal/store"
)

// app carries what every subcommand needs. Tests swap dial and the writers.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	cred   gateway.Credential
	dial   gateway.Dialer
	out    io.Writer
	dbPath string
}

func (a *app) openStore() (*store.Store, error) {
	path := a.dbPath
	if path == "" {
		path = a.cfg.Store.Path
	}
	return store.Open(path)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Level, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	a := &app{
		cfg:  cfg,
		log:  logger,
		cred: gateway.Credential{APIKey: os.Getenv("GEMINI_API_KEY")},
		dial: gateway.GeminiDialer(cfg.LLM.DefaultModel),
		out:  os.Stdout,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "research",
		Short:         "Synthetic market research: personas, focus groups and analysis",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "projects database path (default from config)")

	root.AddCommand(
		newRunCmd(a),
		newValidateKeyCmd(a),
		newProjectsCmd(a),
		newExportCmd(a),
	)
	return root
}

func newValidateKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-key",
		Short: "Check that GEMINI_API_KEY is accepted by the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cred.Empty() {
				return fmt.Errorf("GEMINI_API_KEY is not set")
			}
			client, err := a.dial(cmd.Context(), a.cred)
			if err != nil {
				return err
			}
			defer client.Close()

			valid, msg := client.ValidateCredential(cmd.Context())
			if !valid {
				return fmt.Errorf("invalid API key: %s", msg)
			}
			fmt.Fprintln(a.out, msg)
			return nil
		},
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khanglvm/listing-ranker/internal/catalog"
	"github.com/khanglvm/listing-ranker/internal/logging"
	"github.com/khanglvm/listing-ranker/internal/metrics"
	"github.com/khanglvm/listing-ranker/internal/server"
)

// NewServeCmd creates the 'serve' command for running the JSON-RPC service.
func NewServeCmd() *cobra.Command {
	var (
		metricsAddr string
		itemsPath   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ranking service (JSON-RPC over stdio)",
		Long: `Start the listing-ranker service using stdio transport.

Each line on stdin is a JSON-RPC 2.0 request; each response is one line on
stdout. Logs go to stderr. Methods:
  • search      - Rank a candidate snapshot for a query
  • click       - Attribute a click to the current query
  • feedback    - Attribute a 1-5 rating to the current query
  • interaction - Record a full interaction
  • preference  - Adjust a user preference
  • catalog     - Replace the default candidate snapshot
  • stats       - Learning summary
  • session     - Current session

Learned state is flushed on shutdown (stdin closed, SIGINT or SIGTERM).`,
		Example: `  # Serve with a preloaded catalog and Prometheus metrics
  listing-ranker serve --items listings.json --metrics-addr 127.0.0.1:9464

  # One request
  echo '{"jsonrpc":"2.0","id":1,"method":"stats"}' | listing-ranker serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, metricsAddr, itemsPath)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")
	cmd.Flags().StringVar(&itemsPath, "items", "", "JSON catalog used by searches that carry no items")

	return cmd
}

// runServe starts the server with signal handling.
// Implements graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
func runServe(cmd *cobra.Command, metricsAddr, itemsPath string) error {
	e, cfg, err := openEngine(cmd)
	if err != nil {
		return err
	}
	log := logging.Component("serve")

	srv := server.NewServer(e)
	if itemsPath != "" {
		items, err := catalog.Load(itemsPath)
		if err != nil {
			e.Close()
			return err
		}
		srv.SetCatalog(items)
		log.Info().Int("items", len(items)).Str("path", itemsPath).Msg("catalog loaded")
	}

	if err := e.Cleanup(); err != nil {
		log.Warn().Err(err).Msg("search history cleanup failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	if metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, metricsAddr); err != nil {
				log.Error().Err(err).Str("addr", metricsAddr).Msg("metrics listener failed")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
		cancel()

		if err := e.Close(); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
			return err
		}
		log.Info().Msg("shutdown complete")
		return nil

	case err := <-errChan:
		// stdin closed or read error; still flush state
		closeErr := e.Close()
		if err != nil {
			return fmt.Errorf("server error: %w", errors.Join(err, closeErr))
		}
		return closeErr
	}
}

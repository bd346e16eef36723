// =============================================================================
// Voucher XML Converter - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which runs the conversion HTTP
// service until SIGINT or SIGTERM.
//
// COMMAND USAGE:
//   vchconv serve [--addr :5000]
//
// =============================================================================

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/converter"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/metrics"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/server"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/source"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/pkg/utils"
)

// staleArtifactAge is the age after which a leftover download is removed at
// startup.
const staleArtifactAge = time.Hour

var addr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversion HTTP service",
	Long: `The serve command starts the HTTP service:

  POST /convert  {"xml_url": "<share link>"} -> spreadsheet attachment
  GET  /health   liveness probe
  GET  /metrics  Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, \":5000\")")
}

func runServe() error {
	if addr != "" {
		mainConfig.Server.Addr = addr
	}

	cleanStaleArtifacts()

	writer, err := newWriter(mainConfig.OutputFormat)
	if err != nil {
		return err
	}

	fetcher, err := newFetcher(context.Background())
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	srv := server.New(server.Config{
		Addr:            mainConfig.Server.Addr,
		ReadTimeout:     mainConfig.Server.ReadTimeout,
		WriteTimeout:    mainConfig.Server.WriteTimeout,
		RequestTimeout:  mainConfig.Server.RequestTimeout,
		AllowedOrigins:  mainConfig.Server.AllowedOrigins,
		Log:             log,
		Converter:       converter.New(fetcher, writer, m, log),
		Metrics:         m,
		MetricsGatherer: reg,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Failed to start server")
		}
		return err
	case <-quit:
	}

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), mainConfig.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}

// cleanStaleArtifacts removes downloads left behind by a crashed process.
func cleanStaleArtifacts() {
	dir := mainConfig.Fetch.TempDir
	if dir == "" {
		dir = os.TempDir()
	}

	removed, err := utils.CleanStaleFiles(dir, source.ArtifactPrefix, staleArtifactAge)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("failed to clean stale downloads")
		return
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("removed stale downloads")
	}
}

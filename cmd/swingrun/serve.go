package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpiface "github.com/swingdesk/swingrun/internal/interfaces/http"
)

var (
	serveHost         string
	servePort         int
	serveArtifactsDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the latest run artifacts over a read-only HTTP API",
	Long: `Serve exposes the most recent screen and backtest artifacts as JSON:
GET /health, /signals, /signals/{symbol}, /outcomes, and the newest run's
recorded metrics on /metrics. The server only reads artifact files; runs
keep writing new dated directories and the newest one wins.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Bind address")
	serveCmd.Flags().IntVar(&servePort, "port", 8090, "Listen port")
	serveCmd.Flags().StringVar(&serveArtifactsDir, "artifacts", "artifacts", "Artifact base directory written by screen/backtest runs")
}

func runServe(cmd *cobra.Command, args []string) error {
	config := httpiface.DefaultServerConfig()
	config.Host = serveHost
	config.Port = servePort

	store := httpiface.NewStore(serveArtifactsDir)
	server, err := httpiface.NewServer(config, httpiface.NewHandlers(store, version), httpiface.MetricsFileHandler(store))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down results server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

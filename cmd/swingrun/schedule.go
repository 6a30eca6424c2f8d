package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpiface "github.com/swingdesk/swingrun/internal/interfaces/http"
	"github.com/swingdesk/swingrun/internal/interfaces/output"
	"github.com/swingdesk/swingrun/internal/metrics"
	"github.com/swingdesk/swingrun/internal/pipeline"
	"github.com/swingdesk/swingrun/internal/scheduler"
)

var (
	scheduleUniverse     universeFlags
	scheduleSource       sourceFlags
	scheduleConfigPath   string
	scheduleRulesPath    string
	scheduleArtifactsDir string
	scheduleWorkers      int
	scheduleRunOnStart   bool
	scheduleHost         string
	schedulePort         int
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the screen on a cron schedule",
	Long: `Schedule runs the screening pipeline unattended on a cron expression
(default: weekdays after the NSE close) and writes each pass into a dated
artifact directory that 'swingrun serve' picks up. With --port set it also
serves the results API itself, with /metrics backed by the live registry
accumulated across passes. Stops cleanly on SIGINT or SIGTERM, letting an
in-flight pass finish.`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleUniverse.register(scheduleCmd.Flags())
	scheduleSource.register(scheduleCmd.Flags())
	scheduleCmd.Flags().StringVar(&scheduleConfigPath, "schedule-config", "", "Scheduler YAML (cron expression, timezone, run timeout)")
	scheduleCmd.Flags().StringVar(&scheduleRulesPath, "config", "", "Rule-table YAML (default config/rules.yaml, compiled defaults when absent)")
	scheduleCmd.Flags().StringVar(&scheduleArtifactsDir, "artifacts", "artifacts", "Artifact base directory for each pass")
	scheduleCmd.Flags().IntVar(&scheduleWorkers, "workers", 8, "Symbols screened in parallel")
	scheduleCmd.Flags().BoolVar(&scheduleRunOnStart, "run-on-start", false, "Fire one pass immediately on startup")
	scheduleCmd.Flags().StringVar(&scheduleHost, "host", "127.0.0.1", "Bind address for the results API")
	scheduleCmd.Flags().IntVar(&schedulePort, "port", 0, "Also serve the results API and live /metrics on this port (0 disables)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(scheduleRulesPath)
	if err != nil {
		return err
	}
	if _, err := scheduleUniverse.resolve(); err != nil {
		return err // fail at startup, not at the first firing
	}

	cfg, err := loadScheduleConfig()
	if err != nil {
		return err
	}
	if scheduleRunOnStart {
		cfg.RunOnStart = true
	}

	registry := metrics.NewRegistry()
	source, cached := scheduleSource.build()
	if cached != nil {
		registry.WatchCache(cached.Stats)
	}
	evaluator := pipeline.NewEvaluator(rules)
	emitter := output.NewEmitter()

	task := func(ctx context.Context) error {
		symbols, err := scheduleUniverse.resolve()
		if err != nil {
			return err
		}
		screener := pipeline.NewScreener(source, evaluator, scheduleWorkers)
		result, err := screener.Screen(ctx, symbols)
		if err != nil {
			return err
		}
		registry.ObserveScreen(result)

		dir := output.RunDir(scheduleArtifactsDir, "screen", result.StartedAt)
		if err := emitter.EmitEvaluationsCSV(filepath.Join(dir, "evaluations.csv"), result); err != nil {
			return fmt.Errorf("write artifact set: %w", err)
		}
		if err := emitter.WriteSignalsJSONL(filepath.Join(dir, "signals.jsonl"), result.Signals); err != nil {
			return fmt.Errorf("write artifact set: %w", err)
		}
		if err := registry.WriteTextfile(filepath.Join(dir, "metrics.prom")); err != nil {
			return fmt.Errorf("write artifact set: %w", err)
		}
		log.Info().Str("dir", dir).Int("signals", result.Totals.Signals).Msg("Scheduled pass artifacts written")
		return nil
	}

	sched, err := scheduler.NewScheduler(cfg, task)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The daemon accumulates metrics across passes, so it can serve them
	// live alongside the artifacts instead of leaving only textfiles.
	if schedulePort > 0 {
		config := httpiface.DefaultServerConfig()
		config.Host = scheduleHost
		config.Port = schedulePort

		store := httpiface.NewStore(scheduleArtifactsDir)
		server, err := httpiface.NewServer(config, httpiface.NewHandlers(store, version), registry.Handler())
		if err != nil {
			return err
		}
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				log.Error().Err(err).Msg("Results server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Results server shutdown failed")
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-stop
		log.Info().Str("signal", sig.String()).Msg("Stopping scheduler")
		cancel()
	}()

	return sched.Run(ctx)
}

func loadScheduleConfig() (*scheduler.Config, error) {
	if scheduleConfigPath == "" {
		return scheduler.DefaultConfig(), nil
	}
	return scheduler.LoadConfig(scheduleConfigPath)
}

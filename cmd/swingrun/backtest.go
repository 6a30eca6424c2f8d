package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/swingdesk/swingrun/internal/backtest"
	"github.com/swingdesk/swingrun/internal/infrastructure/db"
	"github.com/swingdesk/swingrun/internal/interfaces/output"
	"github.com/swingdesk/swingrun/internal/metrics"
	"github.com/swingdesk/swingrun/internal/persistence"
	"github.com/swingdesk/swingrun/internal/pipeline"
)

var (
	backtestUniverse    universeFlags
	backtestSource      sourceFlags
	backtestLookback    int
	backtestEntryLag    int
	backtestHoldDays    int
	backtestWorkers     int
	backtestConfigPath  string
	backtestOutput      string
	backtestJSONL       string
	backtestArtifactDir string
	backtestDBConfig    string
	backtestTimeout     time.Duration
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the screening rules over history",
	Long: `Backtest walks each symbol's history chronologically, forms signals with
the exact rules the screen command applies live, and simulates every signal
forward through its exit plan: stop first on any day whose range spans both
the stop and a target, then take-profit tiers in ascending order, then the
time exit at the hold limit. The summary reports win rate and average
return overall and per grade.

Example usage:
  swingrun backtest --sample
  swingrun backtest --tickers-file nifty500.txt --entry-lag 1 --output outcomes.csv
  swingrun backtest --sample --hold-days 10 --lookback 750`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestUniverse.register(backtestCmd.Flags())
	backtestSource.register(backtestCmd.Flags())
	backtestCmd.Flags().IntVar(&backtestLookback, "lookback", 500, "Trading days of history to replay per symbol")
	backtestCmd.Flags().IntVar(&backtestEntryLag, "entry-lag", 0, "Fill timing: 0 at the signal close, 1 at the next day's open")
	backtestCmd.Flags().IntVar(&backtestHoldDays, "hold-days", 0, "Override the configured maximum hold days (0 keeps the rule table)")
	backtestCmd.Flags().IntVar(&backtestWorkers, "workers", 4, "Symbols replayed in parallel")
	backtestCmd.Flags().StringVar(&backtestConfigPath, "config", "", "Rule-table YAML (default config/rules.yaml, compiled defaults when absent)")
	backtestCmd.Flags().StringVar(&backtestOutput, "output", "", "Write simulated trades to this CSV")
	backtestCmd.Flags().StringVar(&backtestJSONL, "jsonl", "", "Write simulated trades to this JSONL file")
	backtestCmd.Flags().StringVar(&backtestArtifactDir, "artifacts", "", "Also write the full artifact set into a dated directory under this base")
	backtestCmd.Flags().StringVar(&backtestDBConfig, "db-config", "config/database.yaml", "Database YAML; persistence stays off unless it enables it")
	backtestCmd.Flags().DurationVar(&backtestTimeout, "timeout", time.Hour, "Deadline for the whole run")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()

	symbols, err := backtestUniverse.resolve()
	if err != nil {
		return err
	}
	rules, err := loadRules(backtestConfigPath)
	if err != nil {
		return err
	}
	if backtestHoldDays > 0 {
		rules.Exit.MaxHoldDays = backtestHoldDays
	}

	cfg := &backtest.Config{
		LookbackBars:  backtestLookback,
		EntryLag:      backtestEntryLag,
		MaxConcurrent: backtestWorkers,
	}
	if issues := cfg.Validate(); len(issues) > 0 {
		return fmt.Errorf("invalid backtest config: %v", issues)
	}

	registry := metrics.NewRegistry()
	source, cached := backtestSource.build()
	if cached != nil {
		registry.WatchCache(cached.Stats)
		defer logCacheStats(cached)
	}

	runner := backtest.NewRunner(source, pipeline.NewEvaluator(rules), cfg)
	result, err := runner.Run(ctx, symbols)
	if err != nil {
		return err
	}
	registry.ObserveBacktest(result)

	if err := emitBacktestArtifacts(result, registry); err != nil {
		return err
	}
	if err := persistOutcomes(ctx, result); err != nil {
		log.Error().Err(err).Msg("Failed to persist outcomes")
	}

	output.RenderBacktestSummary(os.Stdout, result)
	return nil
}

func emitBacktestArtifacts(result *backtest.Result, registry *metrics.Registry) error {
	emitter := output.NewEmitter()

	if backtestOutput != "" {
		if err := emitter.EmitOutcomesCSV(backtestOutput, result.Trades); err != nil {
			return fmt.Errorf("write outcomes CSV: %w", err)
		}
	}
	if backtestJSONL != "" {
		if err := emitter.WriteOutcomesJSONL(backtestJSONL, result.Trades); err != nil {
			return fmt.Errorf("write outcomes JSONL: %w", err)
		}
	}
	if backtestArtifactDir != "" {
		dir := output.RunDir(backtestArtifactDir, "backtest", result.StartedAt)
		if err := emitter.EmitOutcomesCSV(filepath.Join(dir, "outcomes.csv"), result.Trades); err != nil {
			return fmt.Errorf("write artifact set: %w", err)
		}
		if err := emitter.WriteOutcomesJSONL(filepath.Join(dir, "outcomes.jsonl"), result.Trades); err != nil {
			return fmt.Errorf("write artifact set: %w", err)
		}
		if err := registry.WriteTextfile(filepath.Join(dir, "metrics.prom")); err != nil {
			return fmt.Errorf("write artifact set: %w", err)
		}
		log.Info().Str("dir", dir).Msg("Artifacts written")
	}
	return nil
}

func persistOutcomes(ctx context.Context, result *backtest.Result) error {
	dbConfig, err := db.LoadConfig(backtestDBConfig)
	if err != nil {
		return err
	}
	if !dbConfig.Enabled {
		return nil
	}

	manager, err := db.NewManager(dbConfig)
	if err != nil {
		return err
	}
	defer manager.Close()

	records := make([]persistence.OutcomeRecord, 0, len(result.Trades))
	for _, trade := range result.Trades {
		records = append(records, persistence.FromTrade(result.RunID, trade))
	}
	if len(records) == 0 {
		return nil
	}
	if err := manager.Repository().Outcomes.InsertBatch(ctx, records); err != nil {
		return err
	}
	log.Info().Int("outcomes", len(records)).Msg("Outcomes persisted")
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/swingdesk/swingrun/internal/indicators"
	"github.com/swingdesk/swingrun/internal/infrastructure/db"
	"github.com/swingdesk/swingrun/internal/interfaces/output"
	"github.com/swingdesk/swingrun/internal/marketdata"
	"github.com/swingdesk/swingrun/internal/metrics"
	"github.com/swingdesk/swingrun/internal/persistence"
	"github.com/swingdesk/swingrun/internal/pipeline"
)

var (
	screenUniverse     universeFlags
	screenSource       sourceFlags
	screenPeriod       int
	screenWorkers      int
	screenConfigPath   string
	screenOutput       string
	screenOutputPassed string
	screenJSONL        string
	screenArtifactDir  string
	screenDBConfig     string
	screenTimeout      time.Duration
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen a universe for swing entries",
	Long: `Screen evaluates the most recent trading day of every universe symbol:
indicators, the six mandatory gates, the weighted quality grade, the safety
filter, and an ATR-scaled exit plan for each approved signal. Every symbol
lands in the output with its verdict and, when rejected, the failing rule.

Example usage:
  swingrun screen --sample
  swingrun screen --tickers RELIANCE,TCS --output results.csv
  swingrun screen --tickers-file nifty500.txt --workers 16 --jsonl signals.jsonl`,
	RunE: runScreen,
}

func init() {
	rootCmd.AddCommand(screenCmd)

	screenUniverse.register(screenCmd.Flags())
	screenSource.register(screenCmd.Flags())
	screenCmd.Flags().IntVar(&screenPeriod, "period", 360, "Trading days of history to request per symbol (raised to the indicator warmup when lower)")
	screenCmd.Flags().IntVar(&screenWorkers, "workers", 8, "Symbols screened in parallel")
	screenCmd.Flags().StringVar(&screenConfigPath, "config", "", "Rule-table YAML (default config/rules.yaml, compiled defaults when absent)")
	screenCmd.Flags().StringVar(&screenOutput, "output", "", "Write every evaluation (passed, rejected, errored) to this CSV")
	screenCmd.Flags().StringVar(&screenOutputPassed, "output-passed", "", "Write approved signals only to this CSV")
	screenCmd.Flags().StringVar(&screenJSONL, "jsonl", "", "Write approved signals to this JSONL file")
	screenCmd.Flags().StringVar(&screenArtifactDir, "artifacts", "", "Also write the full artifact set into a dated directory under this base")
	screenCmd.Flags().StringVar(&screenDBConfig, "db-config", "config/database.yaml", "Database YAML; persistence stays off unless it enables it")
	screenCmd.Flags().DurationVar(&screenTimeout, "timeout", 30*time.Minute, "Deadline for the whole run")
}

func runScreen(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), screenTimeout)
	defer cancel()

	symbols, err := screenUniverse.resolve()
	if err != nil {
		return err
	}
	rules, err := loadRules(screenConfigPath)
	if err != nil {
		return err
	}

	registry := metrics.NewRegistry()
	source, cached := screenSource.build()
	if screenPeriod > 0 {
		source = withMinBars(source, screenPeriod)
	}
	if cached != nil {
		registry.WatchCache(cached.Stats)
		defer logCacheStats(cached)
	}

	screener := pipeline.NewScreener(source, pipeline.NewEvaluator(rules), screenWorkers)
	result, err := screener.Screen(ctx, symbols)
	if err != nil {
		return err
	}
	registry.ObserveScreen(result)

	if err := emitScreenArtifacts(result, registry); err != nil {
		return err
	}
	if err := persistSignals(ctx, result); err != nil {
		log.Error().Err(err).Msg("Failed to persist signals")
	}

	output.RenderScreenSummary(os.Stdout, result)
	return nil
}

// emitScreenArtifacts writes the requested output files plus, when an
// artifact base is set, the canonical set the results server reads.
func emitScreenArtifacts(result *pipeline.Result, registry *metrics.Registry) error {
	emitter := output.NewEmitter()

	if screenOutput != "" {
		if err := emitter.EmitEvaluationsCSV(screenOutput, result); err != nil {
			return fmt.Errorf("write evaluations CSV: %w", err)
		}
	}
	if screenOutputPassed != "" {
		if err := emitter.EmitSignalsCSV(screenOutputPassed, result.Signals); err != nil {
			return fmt.Errorf("write signals CSV: %w", err)
		}
	}
	if screenJSONL != "" {
		if err := emitter.WriteSignalsJSONL(screenJSONL, result.Signals); err != nil {
			return fmt.Errorf("write signals JSONL: %w", err)
		}
	}
	if screenArtifactDir != "" {
		dir := output.RunDir(screenArtifactDir, "screen", result.StartedAt)
		if err := emitter.EmitEvaluationsCSV(filepath.Join(dir, "evaluations.csv"), result); err != nil {
			return fmt.Errorf("write artifact set: %w", err)
		}
		if err := emitter.WriteSignalsJSONL(filepath.Join(dir, "signals.jsonl"), result.Signals); err != nil {
			return fmt.Errorf("write artifact set: %w", err)
		}
		if err := registry.WriteTextfile(filepath.Join(dir, "metrics.prom")); err != nil {
			return fmt.Errorf("write artifact set: %w", err)
		}
		log.Info().Str("dir", dir).Msg("Artifacts written")
	}
	return nil
}

// persistSignals stores approved signals when the database config enables
// persistence. A missing config file means persistence stays off.
func persistSignals(ctx context.Context, result *pipeline.Result) error {
	dbConfig, err := db.LoadConfig(screenDBConfig)
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

	records := make([]persistence.SignalRecord, 0, len(result.Signals))
	for _, sig := range result.Signals {
		records = append(records, persistence.FromSignal(result.RunID, sig))
	}
	if len(records) == 0 {
		return nil
	}
	if err := manager.Repository().Signals.InsertBatch(ctx, records); err != nil {
		return err
	}
	log.Info().Int("signals", len(records)).Msg("Signals persisted")
	return nil
}

func logCacheStats(cached *marketdata.Cached) {
	hits, misses := cached.Stats()
	log.Debug().Int64("hits", hits).Int64("misses", misses).Msg("Bar cache stats")
}

// minBarsSource raises every history request to a floor so runs can ask for
// more context than the indicator warmup strictly needs.
type minBarsSource struct {
	marketdata.Provider
	min int
}

func withMinBars(p marketdata.Provider, min int) marketdata.Provider {
	return &minBarsSource{Provider: p, min: min}
}

func (s *minBarsSource) Daily(ctx context.Context, symbol string, bars int) (indicators.PriceSeries, error) {
	if bars < s.min {
		bars = s.min
	}
	return s.Provider.Daily(ctx, symbol, bars)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

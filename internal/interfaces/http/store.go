package http

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/swingdesk/swingrun/internal/backtest"
	"github.com/swingdesk/swingrun/internal/interfaces/output"
	"github.com/swingdesk/swingrun/internal/pipeline"
)

// ErrNoArtifacts means no completed run has written the requested artifact
// yet. Handlers turn this into a 404.
var ErrNoArtifacts = errors.New("no run artifacts found")

// Store reads run artifacts from the output directory. Runs live in dated
// subdirectories (out/screen/20260115-153000); lexical order of the stamp is
// time order, so the latest run is the greatest directory name.
type Store struct {
	dir string
}

// NewStore serves artifacts from dir, the same directory the screen and
// backtest commands write to.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// LatestSignals loads the signals from the most recent screening run and the
// run stamp they came from.
func (s *Store) LatestSignals() ([]*pipeline.Signal, string, error) {
	path, run, err := s.latestArtifact("screen", "signals.jsonl")
	if err != nil {
		return nil, "", err
	}
	signals, err := output.ReadSignalsJSONL(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return signals, run, nil
}

// LatestOutcomes loads the trades from the most recent backtest run.
func (s *Store) LatestOutcomes() ([]backtest.Trade, string, error) {
	path, run, err := s.latestArtifact("backtest", "outcomes.jsonl")
	if err != nil {
		return nil, "", err
	}
	trades, err := output.ReadOutcomesJSONL(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return trades, run, nil
}

// LatestMetrics returns the raw Prometheus textfile from the most recent
// run of either command, preferring the newer stamp when both exist.
func (s *Store) LatestMetrics() ([]byte, string, error) {
	var best, bestRun string
	for _, command := range []string{"screen", "backtest"} {
		path, run, err := s.latestArtifact(command, "metrics.prom")
		if err != nil {
			continue
		}
		if run > bestRun {
			best, bestRun = path, run
		}
	}
	if best == "" {
		return nil, "", ErrNoArtifacts
	}
	data, err := os.ReadFile(best)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", best, err)
	}
	return data, bestRun, nil
}

// LatestRuns reports the newest run stamp per command, empty when a command
// has never run.
func (s *Store) LatestRuns() (screen, backtest string) {
	if _, run, err := s.latestArtifact("screen", "signals.jsonl"); err == nil {
		screen = run
	}
	if _, run, err := s.latestArtifact("backtest", "outcomes.jsonl"); err == nil {
		backtest = run
	}
	return screen, backtest
}

func (s *Store) latestArtifact(command, name string) (path, run string, err error) {
	base := filepath.Join(s.dir, command)
	entries, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", ErrNoArtifacts
		}
		return "", "", fmt.Errorf("failed to list %s: %w", base, err)
	}

	for i := len(entries) - 1; i >= 0; i-- {
		ent := entries[i]
		if !ent.IsDir() {
			continue
		}
		candidate := filepath.Join(base, ent.Name(), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, ent.Name(), nil
		}
	}
	return "", "", ErrNoArtifacts
}

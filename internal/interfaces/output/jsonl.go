package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/swingdesk/swingrun/internal/backtest"
	atomicio "github.com/swingdesk/swingrun/internal/io"
	"github.com/swingdesk/swingrun/internal/pipeline"
)

// Scanner buffer cap for JSONL reads. Signal lines carry the full criteria
// and gate breakdown and can run past bufio's 64K default.
const maxJSONLLine = 4 * 1024 * 1024

// WriteSignalsJSONL writes one JSON object per approved signal.
func (e *Emitter) WriteSignalsJSONL(path string, signals []*pipeline.Signal) error {
	lines := make([][]byte, 0, len(signals))
	for _, sig := range signals {
		b, err := json.Marshal(sig)
		if err != nil {
			return fmt.Errorf("failed to encode signal %s: %w", sig.Symbol, err)
		}
		lines = append(lines, b)
	}
	if err := atomicio.WriteLinesAtomic(path, lines); err != nil {
		return fmt.Errorf("failed to write signals JSONL: %w", err)
	}
	return nil
}

// ReadSignalsJSONL loads a signals artifact written by WriteSignalsJSONL.
func ReadSignalsJSONL(path string) ([]*pipeline.Signal, error) {
	var signals []*pipeline.Signal
	err := readLines(path, func(line []byte, n int) error {
		var sig pipeline.Signal
		if err := json.Unmarshal(line, &sig); err != nil {
			return fmt.Errorf("%s line %d: %w", path, n, err)
		}
		signals = append(signals, &sig)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return signals, nil
}

// WriteOutcomesJSONL writes one JSON object per simulated trade.
func (e *Emitter) WriteOutcomesJSONL(path string, trades []backtest.Trade) error {
	lines := make([][]byte, 0, len(trades))
	for _, tr := range trades {
		b, err := json.Marshal(tr)
		if err != nil {
			return fmt.Errorf("failed to encode outcome %s: %w", tr.Symbol, err)
		}
		lines = append(lines, b)
	}
	if err := atomicio.WriteLinesAtomic(path, lines); err != nil {
		return fmt.Errorf("failed to write outcomes JSONL: %w", err)
	}
	return nil
}

// ReadOutcomesJSONL loads a backtest artifact written by WriteOutcomesJSONL.
func ReadOutcomesJSONL(path string) ([]backtest.Trade, error) {
	var trades []backtest.Trade
	err := readLines(path, func(line []byte, n int) error {
		var tr backtest.Trade
		if err := json.Unmarshal(line, &tr); err != nil {
			return fmt.Errorf("%s line %d: %w", path, n, err)
		}
		trades = append(trades, tr)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trades, nil
}

func readLines(path string, handle func(line []byte, n int) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJSONLLine)

	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := handle(line, n); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

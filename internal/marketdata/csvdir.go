package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/swingdesk/swingrun/internal/indicators"
)

// CSVDir serves daily history from per-symbol CSV files named SYMBOL.csv
// with a Date,Open,High,Low,Close,Volume layout. It backs offline runs and
// deterministic backtests.
type CSVDir struct {
	dir string
}

// NewCSVDir creates a provider reading from dir.
func NewCSVDir(dir string) *CSVDir {
	return &CSVDir{dir: dir}
}

// Daily reads the symbol's file and returns up to bars records, oldest first.
func (p *CSVDir) Daily(_ context.Context, symbol string, bars int) (indicators.PriceSeries, error) {
	if bars <= 0 {
		return indicators.PriceSeries{}, fmt.Errorf("bars must be positive, got %d", bars)
	}

	path := filepath.Join(p.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return indicators.PriceSeries{}, fmt.Errorf("%s: %w", symbol, ErrNoData)
		}
		return indicators.PriceSeries{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 6

	records, err := reader.ReadAll()
	if err != nil {
		return indicators.PriceSeries{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	series := indicators.PriceSeries{Symbol: symbol}
	for i, rec := range records {
		if i == 0 && strings.EqualFold(rec[0], "date") {
			continue
		}
		bar, err := parseCSVBar(rec)
		if err != nil {
			return indicators.PriceSeries{}, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		series.Bars = append(series.Bars, bar)
	}
	if len(series.Bars) == 0 {
		return indicators.PriceSeries{}, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}

	sort.Slice(series.Bars, func(i, j int) bool { return series.Bars[i].Date.Before(series.Bars[j].Date) })
	if len(series.Bars) > bars {
		series.Bars = series.Bars[len(series.Bars)-bars:]
	}
	return series, nil
}

func parseCSVBar(rec []string) (indicators.Bar, error) {
	date, err := time.Parse("2006-01-02", strings.TrimSpace(rec[0]))
	if err != nil {
		return indicators.Bar{}, fmt.Errorf("bad date %q: %w", rec[0], err)
	}

	var vals [5]float64
	for i, raw := range rec[1:6] {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return indicators.Bar{}, fmt.Errorf("bad number %q: %w", raw, err)
		}
		vals[i] = v
	}

	return indicators.Bar{
		Date:   date,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

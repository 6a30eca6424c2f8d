package marketdata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestCSVDirReadsSeries(t *testing.T) {
	dir := t.TempDir()
	// Rows deliberately out of order; the provider must sort them.
	writeCSV(t, dir, "RELIANCE.NS.csv", strings.Join([]string{
		"Date,Open,High,Low,Close,Volume",
		"2025-06-03,101.0,102.5,100.0,101.5,1100000",
		"2025-06-02,100.0,101.0,99.0,100.5,1000000",
		"2025-06-04,102.0,103.5,101.0,103.0,1200000",
	}, "\n"))

	provider := NewCSVDir(dir)
	series, err := provider.Daily(context.Background(), "RELIANCE.NS", 10)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}

	if series.Symbol != "RELIANCE.NS" {
		t.Errorf("symbol = %s", series.Symbol)
	}
	if len(series.Bars) != 3 {
		t.Fatalf("got %d bars, want 3", len(series.Bars))
	}
	if !series.SortedByDate() {
		t.Error("bars should be sorted oldest first")
	}
	if got := series.Bars[0].Date.Format("2006-01-02"); got != "2025-06-02" {
		t.Errorf("first date = %s, want 2025-06-02", got)
	}
	if series.Bars[2].Close != 103.0 || series.Bars[2].Volume != 1200000 {
		t.Errorf("last bar = %+v", series.Bars[2])
	}
}

func TestCSVDirTrimsToRequestedBars(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "TCS.NS.csv", strings.Join([]string{
		"Date,Open,High,Low,Close,Volume",
		"2025-06-02,100.0,101.0,99.0,100.5,1000000",
		"2025-06-03,101.0,102.5,100.0,101.5,1100000",
		"2025-06-04,102.0,103.5,101.0,103.0,1200000",
	}, "\n"))

	series, err := NewCSVDir(dir).Daily(context.Background(), "TCS.NS", 2)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if len(series.Bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(series.Bars))
	}
	if series.Bars[0].Close != 101.5 || series.Bars[1].Close != 103.0 {
		t.Errorf("kept wrong bars: %f, %f", series.Bars[0].Close, series.Bars[1].Close)
	}
}

func TestCSVDirMissingFile(t *testing.T) {
	provider := NewCSVDir(t.TempDir())
	_, err := provider.Daily(context.Background(), "GHOST.NS", 10)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestCSVDirHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "EMPTY.NS.csv", "Date,Open,High,Low,Close,Volume")

	_, err := NewCSVDir(dir).Daily(context.Background(), "EMPTY.NS", 10)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestCSVDirMalformedRow(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "BAD.NS.csv", strings.Join([]string{
		"Date,Open,High,Low,Close,Volume",
		"2025-06-02,100.0,101.0,99.0,100.5,1000000",
		"2025-06-03,not-a-number,102.5,100.0,101.5,1100000",
	}, "\n"))

	_, err := NewCSVDir(dir).Daily(context.Background(), "BAD.NS", 10)
	if err == nil {
		t.Fatal("malformed row should fail the read")
	}
	if errors.Is(err, ErrNoData) {
		t.Errorf("malformed data is not the same as missing data: %v", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("error should name the offending line: %v", err)
	}
}

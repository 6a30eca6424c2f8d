package universe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolvePrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tickers.txt")
	if err := os.WriteFile(path, []byte("WIPRO\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// Explicit tickers beat both the file and the sample.
	m := NewManager(Config{Tickers: []string{"TCS"}, File: path, Sample: true})
	got, err := m.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 1 || got[0] != "TCS.NS" {
		t.Errorf("got %v, want [TCS.NS]", got)
	}
}

func TestNormalizeSuffixAndDedup(t *testing.T) {
	got := Normalize([]string{" RELIANCE ", "TCS.NS", "tcs", "ABC.BO", "", "RELIANCE"})

	want := []string{"RELIANCE.NS", "TCS.NS", "ABC.BO"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbol %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestResolveFromTextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tickers.txt")
	content := strings.Join([]string{
		"# large caps",
		"RELIANCE, TCS",
		"",
		"INFY # momentum watch",
		"HDFCBANK",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := NewManager(Config{File: path}).Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := []string{"RELIANCE.NS", "TCS.NS", "INFY.NS", "HDFCBANK.NS"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbol %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestResolveFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "universe.yaml")
	content := "name: it-majors\nsymbols:\n  - TCS\n  - INFY\n  - WIPRO.NS\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := NewManager(Config{File: path}).Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"TCS.NS", "INFY.NS", "WIPRO.NS"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbol %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestResolveSample(t *testing.T) {
	got, err := NewManager(Config{Sample: true}).Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) < 30 {
		t.Errorf("sample has %d symbols, want a usable list", len(got))
	}

	seen := make(map[string]bool)
	for _, sym := range got {
		if !strings.Contains(sym, ".") {
			t.Errorf("%s missing exchange suffix", sym)
		}
		if seen[sym] {
			t.Errorf("%s appears twice", sym)
		}
		seen[sym] = true
	}
}

func TestResolveNoSource(t *testing.T) {
	if _, err := NewManager(Config{}).Resolve(); err == nil {
		t.Fatal("resolve with no source should fail")
	}
}

func TestResolveEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tickers.txt")
	if err := os.WriteFile(path, []byte("# nothing here\n\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewManager(Config{File: path}).Resolve(); err == nil {
		t.Fatal("empty universe should fail")
	}
}

func TestResolveMissingFile(t *testing.T) {
	if _, err := NewManager(Config{File: "/nonexistent/tickers.txt"}).Resolve(); err == nil {
		t.Fatal("missing file should fail")
	}
}

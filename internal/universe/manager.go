// Package universe resolves the set of symbols a screening or backtest run
// covers: an explicit ticker list, a tickers file, or the embedded NIFTY
// sample. Bare NSE symbols gain the .NS suffix Yahoo expects.
package universe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config names the universe sources in precedence order: explicit tickers
// beat a file, a file beats the sample list.
type Config struct {
	Tickers []string // explicit tickers from the command line
	File    string   // tickers file: newline/comma text, or YAML by extension
	Sample  bool     // use the embedded NIFTY sample
}

// Manager resolves and normalizes the universe for one run.
type Manager struct {
	config Config
}

// NewManager creates a manager for the given sources.
func NewManager(config Config) *Manager {
	return &Manager{config: config}
}

// Resolve returns the normalized, deduplicated universe in first-seen order.
// An empty result is an error: every run needs at least one symbol.
func (m *Manager) Resolve() ([]string, error) {
	var (
		raw    []string
		source string
		err    error
	)

	switch {
	case len(m.config.Tickers) > 0:
		raw = m.config.Tickers
		source = "flags"
	case m.config.File != "":
		raw, err = loadFile(m.config.File)
		if err != nil {
			return nil, err
		}
		source = m.config.File
	case m.config.Sample:
		raw = Sample()
		source = "sample"
	default:
		return nil, errors.New("no universe source: provide tickers, a tickers file, or the sample list")
	}

	symbols := Normalize(raw)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("universe from %s is empty", source)
	}

	log.Info().
		Str("source", source).
		Int("symbols", len(symbols)).
		Msg("Universe resolved")

	return symbols, nil
}

// Normalize trims, uppercases, suffixes and dedups tickers, preserving the
// order of first appearance. A bare symbol gains .NS; symbols that already
// carry an exchange suffix (any dot) pass through untouched.
func Normalize(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	symbols := make([]string, 0, len(raw))

	for _, ticker := range raw {
		sym := strings.ToUpper(strings.TrimSpace(ticker))
		if sym == "" {
			continue
		}
		if !strings.Contains(sym, ".") {
			sym += ".NS"
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}

	return symbols
}

// loadFile reads tickers from path. YAML files (.yaml/.yml) use the symbols
// list format; anything else is plain text split on newlines and commas,
// with # comments and blank lines skipped.
func loadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tickers file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(data, path)
	default:
		return parseText(data), nil
	}
}

type yamlUniverse struct {
	Name    string   `yaml:"name"`
	Symbols []string `yaml:"symbols"`
}

func parseYAML(data []byte, path string) ([]string, error) {
	var doc yamlUniverse
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc.Symbols, nil
}

func parseText(data []byte) []string {
	var tickers []string
	for _, line := range strings.Split(string(data), "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		for _, field := range strings.Split(line, ",") {
			if field = strings.TrimSpace(field); field != "" {
				tickers = append(tickers, field)
			}
		}
	}
	return tickers
}

// Sample returns a copy of the embedded NIFTY sample list. Entries are bare
// NSE names; Normalize adds the suffix.
func Sample() []string {
	out := make([]string, len(sampleNifty))
	copy(out, sampleNifty)
	return out
}

// sampleNifty is a liquid, large-cap subset of the NIFTY 500 for runs
// without an explicit universe.
var sampleNifty = []string{
	"RELIANCE", "TCS", "HDFCBANK", "INFY", "ICICIBANK",
	"HINDUNILVR", "ITC", "SBIN", "BHARTIARTL", "KOTAKBANK",
	"LT", "AXISBANK", "ASIANPAINT", "MARUTI", "SUNPHARMA",
	"TITAN", "ULTRACEMCO", "BAJFINANCE", "WIPRO", "ONGC",
	"NTPC", "POWERGRID", "TATAMOTORS", "TATASTEEL", "ADANIENT",
	"ADANIPORTS", "COALINDIA", "HCLTECH", "TECHM", "NESTLEIND",
	"GRASIM", "JSWSTEEL", "DRREDDY", "CIPLA", "EICHERMOT",
	"HEROMOTOCO", "BAJAJ-AUTO", "BRITANNIA", "DIVISLAB", "APOLLOHOSP",
	"TATACONSUM", "HINDALCO", "INDUSINDBK", "SBILIFE", "HDFCLIFE",
	"BPCL", "UPL", "M&M", "SHREECEM", "BAJAJFINSV",
}

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/swingdesk/swingrun/internal/config"
	"github.com/swingdesk/swingrun/internal/marketdata"
	"github.com/swingdesk/swingrun/internal/universe"
)

// universeFlags holds the shared symbol-source flags. Precedence when more
// than one is set: explicit tickers, then a file, then the sample list.
type universeFlags struct {
	tickers     []string
	tickersFile string
	sample      bool
}

func (f *universeFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.tickers, "tickers", nil, "Comma-separated ticker list (bare NSE symbols gain .NS)")
	fs.StringVar(&f.tickersFile, "tickers-file", "", "Tickers file: newline/comma text or YAML")
	fs.BoolVar(&f.sample, "sample", false, "Use the embedded NIFTY sample universe")
}

func (f *universeFlags) resolve() ([]string, error) {
	manager := universe.NewManager(universe.Config{
		Tickers: f.tickers,
		File:    f.tickersFile,
		Sample:  f.sample,
	})
	return manager.Resolve()
}

// sourceFlags holds the shared market-data flags. An offline CSV directory
// takes priority over the live Yahoo client; the cache decorator wraps
// whichever source is active.
type sourceFlags struct {
	csvDir    string
	noCache   bool
	redisAddr string
}

func (f *sourceFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.csvDir, "csv-dir", "", "Read per-symbol CSV files from this directory instead of Yahoo")
	fs.BoolVar(&f.noCache, "no-cache", false, "Bypass the bar cache and fetch fresh history")
	fs.StringVar(&f.redisAddr, "redis", "", "Redis address for the shared bar cache (host:port); empty uses in-process memory")
}

func (f *sourceFlags) build() (marketdata.Provider, *marketdata.Cached) {
	var source marketdata.Provider
	if f.csvDir != "" {
		source = marketdata.NewCSVDir(f.csvDir)
	} else {
		source = marketdata.NewYahooClient(nil)
	}
	if f.noCache {
		return source, nil
	}
	cached := marketdata.NewCached(source, marketdata.NewAutoCache(f.redisAddr), marketdata.DefaultCacheTTL)
	return cached, cached
}

// loadRules reads the rule table from configPath, or returns the compiled-in
// defaults when the flag was left empty and the default file is absent.
func loadRules(configPath string) (*config.Rules, error) {
	if configPath == "" {
		configPath = config.GetRulesConfigPath()
		if !fileExists(configPath) {
			return config.DefaultRules(), nil
		}
	}
	rules, err := config.LoadRules(configPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return rules, nil
}

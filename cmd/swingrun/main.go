package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "swingrun"
	version = "v1.2.0"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:     "swingrun",
	Short:   "NSE swing-trade screener with ATR-scaled exit plans",
	Version: version,
	Long: `swingrun screens a universe of equities for short-horizon swing entries,
grades each candidate by signal quality, attaches a volatility-scaled exit
plan (three take-profit tiers plus a stop), and can replay history to
measure the realized win rate of the rule set.

Common invocations:
  swingrun screen --sample                       # screen the built-in NIFTY sample
  swingrun screen --tickers RELIANCE,TCS,INFY    # screen an explicit list
  swingrun backtest --tickers-file nifty500.txt  # replay the rules over history
  swingrun serve                                 # read-only results API over the latest run`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// setupLogging configures the global zerolog logger: a console writer when
// stderr is a terminal, plain JSON when piped into a collector.
func setupLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the swingrun version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", appName, version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

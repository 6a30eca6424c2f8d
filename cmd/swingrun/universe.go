package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var universeFlagSet universeFlags

var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Print the resolved, normalized universe",
	Long: `Universe resolves the symbol list exactly the way screen and backtest
would — precedence, .NS suffix normalization, deduplication — and prints it,
one symbol per line. Useful for checking a tickers file before a long run.`,
	RunE: runUniverse,
}

func init() {
	rootCmd.AddCommand(universeCmd)
	universeFlagSet.register(universeCmd.Flags())
}

func runUniverse(cmd *cobra.Command, args []string) error {
	symbols, err := universeFlagSet.resolve()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for i, symbol := range symbols {
		fmt.Fprintf(w, "%d\t%s\n", i+1, symbol)
	}
	w.Flush()
	fmt.Printf("\n%d symbols\n", len(symbols))
	return nil
}

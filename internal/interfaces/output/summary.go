package output

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/swingdesk/swingrun/internal/backtest"
	"github.com/swingdesk/swingrun/internal/pipeline"
)

// RenderScreenSummary prints the run summary the screen command shows on
// stdout: funnel totals, the signal table, and any skipped symbols.
func RenderScreenSummary(w io.Writer, res *pipeline.Result) {
	if res == nil {
		fmt.Fprintln(w, "No symbols screened")
		return
	}
	t := res.Totals

	fmt.Fprintf(w, "Screen %s: %d symbols, %d evaluated, %d signals\n",
		res.RunID, t.Universe, t.Evaluated, t.Signals)
	fmt.Fprintf(w, "Rejected: %d at gates, %d below grade, %d on safety; %d errors\n",
		t.GateFailures, t.LowGrade, t.SafetyRejects, t.Errors)
	fmt.Fprintln(w)

	if len(res.Signals) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Symbol\tGrade\tScore\tEntry\tStop\tTP1\tTP2\tTP3\tR:R")
		fmt.Fprintln(tw, "------\t-----\t-----\t-----\t----\t---\t---\t---\t---")
		for _, sig := range res.Signals {
			fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.1f\n",
				sig.Symbol, sig.Grade, sig.Score,
				sig.Plan.Entry, sig.Plan.Stop, sig.Plan.TP1, sig.Plan.TP2, sig.Plan.TP3,
				sig.Plan.RiskReward)
		}
		tw.Flush()
	} else {
		fmt.Fprintln(w, "No signals today")
	}

	if len(res.Errors) > 0 {
		fmt.Fprintf(w, "\n%d symbols skipped:\n", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  %s (%s): %s\n", e.Symbol, e.Kind, e.Error)
		}
	}
}

// RenderBacktestSummary prints the run summary the backtest command shows on
// stdout: overall statistics, the per-grade table, and exit reason counts.
func RenderBacktestSummary(w io.Writer, res *backtest.Result) {
	if res == nil || res.Summary == nil {
		fmt.Fprintln(w, "No trades simulated")
		return
	}
	s := res.Summary

	fmt.Fprintf(w, "Backtest %s: %d symbols, %d trades (%d closed, %d still open)\n",
		res.RunID, res.Symbols, s.Trades, s.Closed, s.StillOpen)
	if s.Closed > 0 {
		fmt.Fprintf(w, "Win rate %.1f%% over closed trades, average return %+.2f%%\n",
			s.WinRate, s.AvgReturnPct)
	}
	fmt.Fprintln(w)

	if len(s.ByGrade) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Grade\tTrades\tWins\tWinRate\tAvgReturn")
		fmt.Fprintln(tw, "-----\t------\t----\t-------\t---------")

		grades := make([]string, 0, len(s.ByGrade))
		for g := range s.ByGrade {
			grades = append(grades, g)
		}
		sort.Strings(grades)
		for _, g := range grades {
			gs := s.ByGrade[g]
			fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\t%+.2f%%\n",
				g, gs.Trades, gs.Wins, gs.WinRate, gs.AvgReturnPct)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if len(s.ByReason) > 0 {
		reasons := make([]string, 0, len(s.ByReason))
		for r := range s.ByReason {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Exit\tCount")
		fmt.Fprintln(tw, "----\t-----")
		for _, r := range reasons {
			fmt.Fprintf(tw, "%s\t%d\n", r, s.ByReason[r])
		}
		tw.Flush()
	}

	if len(res.Errors) > 0 {
		fmt.Fprintf(w, "\n%d symbols skipped:\n", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

// Package output writes run artifacts: CSV reports for humans, JSONL for
// downstream tools and the results server. All file writes go through the
// atomic helpers so a crashed run never leaves a partial artifact behind.
package output

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/swingdesk/swingrun/internal/backtest"
	"github.com/swingdesk/swingrun/internal/gates"
	atomicio "github.com/swingdesk/swingrun/internal/io"
	"github.com/swingdesk/swingrun/internal/pipeline"
)

const csvDateFormat = "2006-01-02"

type Emitter struct{}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// EmitEvaluationsCSV writes one row per evaluated symbol, passed or not,
// with the verdict of every mandatory check spelled out.
func (e *Emitter) EmitEvaluationsCSV(path string, res *pipeline.Result) error {
	header := []string{
		"Symbol", "Date", "Status",
		"GatePassed", "TrendStrength", "DirectionalDominance", "MomentumBand",
		"VolumeConfirmation", "EstablishedTrend", "ValidPullback",
		"Score", "Grade", "SafetyRule", "SafetyReason",
		"Entry", "Stop", "TP1", "TP2", "TP3", "RiskReward",
		"Close", "RSI14", "ADX", "RVol",
	}

	rows := make([][]string, 0, len(res.Evaluations))
	for _, eval := range res.Evaluations {
		row := []string{
			eval.Symbol,
			eval.Date.Format(csvDateFormat),
			string(eval.Status),
			gateVerdict(eval.Mandatory),
			checkVerdict(eval.Mandatory, gates.CheckTrendStrength),
			checkVerdict(eval.Mandatory, gates.CheckDirectionalDom),
			checkVerdict(eval.Mandatory, gates.CheckMomentumBand),
			checkVerdict(eval.Mandatory, gates.CheckVolumeConfirmation),
			checkVerdict(eval.Mandatory, gates.CheckEstablishedTrend),
			checkVerdict(eval.Mandatory, gates.CheckValidPullback),
		}

		if eval.Quality != nil {
			row = append(row, fmt.Sprintf("%.1f", eval.Quality.Score), string(eval.Quality.Grade))
		} else {
			row = append(row, "", "")
		}
		row = append(row, eval.Safety.Rule, eval.Safety.Reason)

		if eval.Plan != nil {
			row = append(row,
				fmt.Sprintf("%.2f", eval.Plan.Entry),
				fmt.Sprintf("%.2f", eval.Plan.Stop),
				fmt.Sprintf("%.2f", eval.Plan.TP1),
				fmt.Sprintf("%.2f", eval.Plan.TP2),
				fmt.Sprintf("%.2f", eval.Plan.TP3),
				fmt.Sprintf("%.2f", eval.Plan.RiskReward),
			)
		} else {
			row = append(row, "", "", "", "", "", "")
		}

		row = append(row,
			fmt.Sprintf("%.2f", eval.Snapshot.Close),
			fmt.Sprintf("%.1f", eval.Snapshot.RSI14),
			fmt.Sprintf("%.1f", eval.Snapshot.ADX),
			fmt.Sprintf("%.2f", eval.Snapshot.RVol),
		)

		rows = append(rows, row)
	}

	if err := atomicio.WriteCSVAtomic(path, header, rows); err != nil {
		return fmt.Errorf("failed to write evaluations CSV: %w", err)
	}
	return nil
}

// EmitSignalsCSV writes the passed-only report: one row per approved signal
// with its full exit plan.
func (e *Emitter) EmitSignalsCSV(path string, signals []*pipeline.Signal) error {
	header := []string{
		"Symbol", "Date", "Grade", "Score",
		"Entry", "Stop", "TP1", "TP2", "TP3",
		"RiskPct", "RiskReward", "MaxHoldDays",
		"ATR", "Close", "RSI14", "ADX", "RVol",
	}

	rows := make([][]string, 0, len(signals))
	for _, sig := range signals {
		rows = append(rows, []string{
			sig.Symbol,
			sig.Date.Format(csvDateFormat),
			string(sig.Grade),
			fmt.Sprintf("%.1f", sig.Score),
			fmt.Sprintf("%.2f", sig.Plan.Entry),
			fmt.Sprintf("%.2f", sig.Plan.Stop),
			fmt.Sprintf("%.2f", sig.Plan.TP1),
			fmt.Sprintf("%.2f", sig.Plan.TP2),
			fmt.Sprintf("%.2f", sig.Plan.TP3),
			fmt.Sprintf("%.2f", sig.Plan.RiskPct),
			fmt.Sprintf("%.2f", sig.Plan.RiskReward),
			strconv.Itoa(sig.Plan.MaxHoldDays),
			fmt.Sprintf("%.2f", sig.ATR),
			fmt.Sprintf("%.2f", sig.Snapshot.Close),
			fmt.Sprintf("%.1f", sig.Snapshot.RSI14),
			fmt.Sprintf("%.1f", sig.Snapshot.ADX),
			fmt.Sprintf("%.2f", sig.Snapshot.RVol),
		})
	}

	if err := atomicio.WriteCSVAtomic(path, header, rows); err != nil {
		return fmt.Errorf("failed to write signals CSV: %w", err)
	}
	return nil
}

// EmitOutcomesCSV writes one row per simulated trade.
func (e *Emitter) EmitOutcomesCSV(path string, trades []backtest.Trade) error {
	header := []string{
		"Symbol", "SignalDate", "Grade", "Score",
		"Entry", "Stop", "State", "Reason",
		"ReturnPct", "DaysHeld", "ExitDate", "Fills",
	}

	rows := make([][]string, 0, len(trades))
	for _, tr := range trades {
		exitDate := ""
		if !tr.Outcome.ExitDate.IsZero() {
			exitDate = tr.Outcome.ExitDate.Format(csvDateFormat)
		}
		rows = append(rows, []string{
			tr.Symbol,
			tr.SignalDate.Format(csvDateFormat),
			string(tr.Grade),
			fmt.Sprintf("%.1f", tr.Score),
			fmt.Sprintf("%.2f", tr.Outcome.Entry),
			fmt.Sprintf("%.2f", tr.Plan.Stop),
			tr.Outcome.State.String(),
			tr.Outcome.Reason,
			fmt.Sprintf("%.2f", tr.Outcome.RealizedReturnPct),
			strconv.Itoa(tr.Outcome.DaysHeld),
			exitDate,
			formatFills(tr.Outcome.Fills),
		})
	}

	if err := atomicio.WriteCSVAtomic(path, header, rows); err != nil {
		return fmt.Errorf("failed to write outcomes CSV: %w", err)
	}
	return nil
}

// formatFills renders fills as "kind@day" pairs, e.g. "tp1@3 tp2@5 stop@9".
func formatFills(fills []backtest.Fill) string {
	if len(fills) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fills))
	for _, f := range fills {
		parts = append(parts, fmt.Sprintf("%s@%d", f.Kind, f.Day))
	}
	return strings.Join(parts, " ")
}

func gateVerdict(res *gates.Result) string {
	if res == nil {
		return ""
	}
	return passFail(res.Passed)
}

func checkVerdict(res *gates.Result, name string) string {
	if res == nil {
		return ""
	}
	check, ok := res.Checks[name]
	if !ok || check == nil {
		return ""
	}
	return passFail(check.Passed)
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

// runStamp names dated artifact directories; lexical order is time order.
func runStamp(t time.Time) string {
	return t.Format("20060102-150405")
}

// RunDir returns the artifact directory for one run, e.g.
// out/screen/20260115-153000.
func RunDir(base, command string, startedAt time.Time) string {
	return filepath.Join(base, command, runStamp(startedAt))
}

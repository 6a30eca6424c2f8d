// Package backtest replays historical signals through the tiered exit plan
// and aggregates how they would have resolved.
package backtest

import (
	"fmt"
	"time"

	"github.com/swingdesk/swingrun/internal/exits"
	"github.com/swingdesk/swingrun/internal/indicators"
)

// tierFraction is the share of the original position sold at TP1 and TP2.
// TP3 and terminal exits always flush whatever remains, so fractions are
// conserved exactly.
const tierFraction = 1.0 / 3.0

// Simulate walks a trade forward through daily bars against its exit plan.
//
// Each day resolves in a fixed order: the stop is checked first against the
// low, then take-profit tiers ascend against the high. A bar that touches
// both the stop and a target resolves to the stop; the intraday path is
// unknowable from daily data, so the loss is taken. Multiple targets inside
// one bar fill sequentially on that day. TP1 and TP2 each sell a third of
// the original position, TP3 and terminal exits sell the remainder. When
// MaxHoldDays elapse the position closes at that day's close; when the
// forward window ends first the trade is left open with its unfilled
// fraction intact.
func Simulate(symbol string, entryDate time.Time, plan exits.Plan, forward []indicators.Bar) Outcome {
	out := Outcome{
		Symbol:    symbol,
		EntryDate: entryDate,
		Entry:     plan.Entry,
		State:     StateOpen,
		Remaining: 1.0,
		Fills:     []Fill{},
	}

	targets := plan.Targets()
	var hit [3]bool

	days := len(forward)
	if days > plan.MaxHoldDays {
		days = plan.MaxHoldDays
	}

	for i := 0; i < days; i++ {
		bar := forward[i]
		day := i + 1

		if bar.Low <= plan.Stop {
			return out.closeAt(StateClosedStop, ReasonStopLoss, 0, "stop", day, bar.Date, plan.Stop)
		}

		for tier := 0; tier < 3; tier++ {
			if hit[tier] || bar.High < targets[tier] {
				continue
			}
			hit[tier] = true
			if tier == 2 {
				return out.closeAt(StateClosedTP3, ReasonTP3, 3, "tp3", day, bar.Date, targets[2])
			}
			out.Fills = append(out.Fills, Fill{
				Tier:     tier + 1,
				Kind:     fmt.Sprintf("tp%d", tier+1),
				Day:      day,
				Date:     bar.Date,
				Price:    targets[tier],
				Fraction: tierFraction,
			})
			out.Remaining -= tierFraction
		}

		if day == plan.MaxHoldDays {
			return out.closeAt(StateClosedTimeExit, ReasonTimeExit, 0, "time", day, bar.Date, bar.Close)
		}
	}

	out.DaysHeld = days
	out.RealizedReturnPct = realizedReturn(out.Entry, out.Fills)
	return out
}

// closeAt flushes the remaining fraction at the given price and finalizes
// the outcome.
func (o Outcome) closeAt(state State, reason string, tier int, kind string, day int, date time.Time, price float64) Outcome {
	o.Fills = append(o.Fills, Fill{
		Tier:     tier,
		Kind:     kind,
		Day:      day,
		Date:     date,
		Price:    price,
		Fraction: o.Remaining,
	})
	o.Remaining = 0
	o.State = state
	o.Reason = reason
	o.DaysHeld = day
	o.ExitDate = date
	o.RealizedReturnPct = realizedReturn(o.Entry, o.Fills)
	return o
}

// realizedReturn is the fraction-weighted percent return across all fills.
func realizedReturn(entry float64, fills []Fill) float64 {
	var total float64
	for _, f := range fills {
		total += f.Fraction * (f.Price - entry) / entry * 100
	}
	return total
}

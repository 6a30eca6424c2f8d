package exits

import (
	"errors"
	"math"
	"testing"
)

func TestPlanGeometry(t *testing.T) {
	gen := NewGenerator(nil)

	plan, err := gen.Plan(100.0, 2.0)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"TP1", plan.TP1, 103.0},
		{"TP2", plan.TP2, 106.0},
		{"TP3", plan.TP3, 110.0},
		{"Stop", plan.Stop, 97.0},
		{"RiskPct", plan.RiskPct, 3.0},
		{"Reward1", plan.RewardPcts[0], 3.0},
		{"Reward2", plan.RewardPcts[1], 6.0},
		{"Reward3", plan.RewardPcts[2], 10.0},
	}
	for _, c := range cases {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if math.Abs(plan.RiskReward-10.0/3.0) > 0.01 {
		t.Errorf("RiskReward = %v, want ~3.33", plan.RiskReward)
	}
	if plan.MaxHoldDays != 5 {
		t.Errorf("MaxHoldDays = %d, want 5", plan.MaxHoldDays)
	}
}

func TestPlanPriceOrdering(t *testing.T) {
	gen := NewGenerator(nil)

	entries := []float64{12.5, 100, 485.3, 2210}
	atrs := []float64{0.11, 1, 4.8, 22}

	for _, entry := range entries {
		for _, atr := range atrs {
			plan, err := gen.Plan(entry, atr)
			if err != nil {
				t.Fatalf("Plan(%v, %v) failed: %v", entry, atr, err)
			}
			if !(plan.Stop < plan.Entry && plan.Entry < plan.TP1 && plan.TP1 < plan.TP2 && plan.TP2 < plan.TP3) {
				t.Errorf("Plan(%v, %v): prices out of order: stop=%v entry=%v tp1=%v tp2=%v tp3=%v",
					entry, atr, plan.Stop, plan.Entry, plan.TP1, plan.TP2, plan.TP3)
			}
		}
	}
}

func TestPlanRejectsDegenerateATR(t *testing.T) {
	gen := NewGenerator(nil)

	for _, atr := range []float64{0, -1.5, math.NaN(), math.Inf(1)} {
		_, err := gen.Plan(100.0, atr)
		if !errors.Is(err, ErrInvalidVolatility) {
			t.Errorf("Plan(100, %v): err = %v, want ErrInvalidVolatility", atr, err)
		}
	}
}

func TestPlanRejectsStopBelowZero(t *testing.T) {
	gen := NewGenerator(nil)

	// Entry 10 with ATR 8 puts the stop at -2.
	_, err := gen.Plan(10.0, 8.0)
	if !errors.Is(err, ErrInvalidVolatility) {
		t.Errorf("err = %v, want ErrInvalidVolatility", err)
	}
}

func TestPlanRejectsBadEntry(t *testing.T) {
	gen := NewGenerator(nil)

	for _, entry := range []float64{0, -50, math.NaN()} {
		if _, err := gen.Plan(entry, 2.0); err == nil {
			t.Errorf("Plan(%v, 2): expected error", entry)
		}
	}
}

func TestPlanCustomMultipliers(t *testing.T) {
	cfg := &Config{TP1Mult: 1.0, TP2Mult: 2.0, TP3Mult: 4.0, StopMult: 2.0, MaxHoldDays: 10}
	gen := NewGenerator(cfg)

	plan, err := gen.Plan(200.0, 5.0)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.TP3 != 220.0 || plan.Stop != 190.0 {
		t.Errorf("TP3 = %v, Stop = %v, want 220 and 190", plan.TP3, plan.Stop)
	}
	if plan.MaxHoldDays != 10 {
		t.Errorf("MaxHoldDays = %d, want 10", plan.MaxHoldDays)
	}
	if math.Abs(plan.RiskReward-2.0) > 1e-9 {
		t.Errorf("RiskReward = %v, want 2.0", plan.RiskReward)
	}
}

func TestConfigValidate(t *testing.T) {
	if issues := DefaultConfig().Validate(); len(issues) != 0 {
		t.Errorf("default config invalid: %v", issues)
	}

	bad := &Config{TP1Mult: 3.0, TP2Mult: 2.0, TP3Mult: 1.0, StopMult: 0, MaxHoldDays: 0}
	if issues := bad.Validate(); len(issues) < 3 {
		t.Errorf("expected at least 3 issues, got %v", issues)
	}
}

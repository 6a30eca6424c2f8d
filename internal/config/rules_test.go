package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultRulesValidate(t *testing.T) {
	if issues := DefaultRules().Validate(); len(issues) != 0 {
		t.Errorf("default rules invalid: %v", issues)
	}
}

func TestRulesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	rules := DefaultRules()
	rules.Gate.MinADX = 30.0
	rules.Exit.MaxHoldDays = 7

	if err := SaveRules(rules, path); err != nil {
		t.Fatalf("SaveRules failed: %v", err)
	}

	loaded, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}

	if loaded.Gate.MinADX != 30.0 {
		t.Errorf("MinADX = %v, want 30.0", loaded.Gate.MinADX)
	}
	if loaded.Exit.MaxHoldDays != 7 {
		t.Errorf("MaxHoldDays = %d, want 7", loaded.Exit.MaxHoldDays)
	}
	if loaded.Indicators.RSIPeriod != 14 {
		t.Errorf("RSIPeriod = %d, want default 14", loaded.Indicators.RSIPeriod)
	}
}

func TestLoadRulesPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	partial := "gate:\n  min_adx: 28\n"
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}

	if rules.Gate.MinADX != 28 {
		t.Errorf("MinADX = %v, want 28", rules.Gate.MinADX)
	}
	if rules.Gate.MinRVol != 1.5 {
		t.Errorf("MinRVol = %v, want default 1.5", rules.Gate.MinRVol)
	}
	if rules.Exit.TP3Mult != 5.0 {
		t.Errorf("TP3Mult = %v, want default 5.0", rules.Exit.TP3Mult)
	}
}

func TestLoadRulesRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	bad := "exit:\n  tp1_mult: 5.0\n  tp2_mult: 3.0\n  tp3_mult: 1.0\n"
	if err := os.WriteFile(path, []byte(bad), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := LoadRules(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "invalid") {
		t.Errorf("error %q should mention invalid config", err)
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	if _, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// Package config loads and persists the screening rule table.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/swingdesk/swingrun/internal/exits"
	"github.com/swingdesk/swingrun/internal/gates"
	"github.com/swingdesk/swingrun/internal/indicators"
	"github.com/swingdesk/swingrun/internal/safety"
	"github.com/swingdesk/swingrun/internal/scoring"
)

// Rules bundles every tunable threshold the screening pipeline consumes.
// One file drives indicators, gates, scoring, safety and exits so a rule
// change is a config edit, not a rebuild.
type Rules struct {
	Indicators indicators.Config `yaml:"indicators"`
	Gate       gates.Config      `yaml:"gate"`
	Quality    scoring.Config    `yaml:"quality"`
	Safety     safety.Config     `yaml:"safety"`
	Exit       exits.Config      `yaml:"exit"`
}

// DefaultRules returns the production rule table.
func DefaultRules() *Rules {
	return &Rules{
		Indicators: indicators.DefaultConfig(),
		Gate:       *gates.DefaultConfig(),
		Quality:    *scoring.DefaultConfig(),
		Safety:     *safety.DefaultConfig(),
		Exit:       *exits.DefaultConfig(),
	}
}

// Validate aggregates validation issues from every rule section.
func (r *Rules) Validate() []string {
	var issues []string
	for _, section := range []struct {
		name   string
		issues []string
	}{
		{"indicators", r.Indicators.Validate()},
		{"gate", r.Gate.Validate()},
		{"quality", r.Quality.Validate()},
		{"safety", r.Safety.Validate()},
		{"exit", r.Exit.Validate()},
	} {
		for _, issue := range section.issues {
			issues = append(issues, fmt.Sprintf("%s: %s", section.name, issue))
		}
	}
	return issues
}

// LoadRules reads a rule table from a YAML file and validates it.
func LoadRules(configPath string) (*Rules, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules config: %w", err)
	}

	rules := DefaultRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	if issues := rules.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("rules config invalid: %v", issues)
	}

	return rules, nil
}

// SaveRules writes a rule table to a YAML file.
func SaveRules(rules *Rules, configPath string) error {
	data, err := yaml.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write rules config: %w", err)
	}

	return nil
}

// GetRulesConfigPath returns the default path for the rule table.
func GetRulesConfigPath() string {
	return filepath.Join("config", "rules.yaml")
}

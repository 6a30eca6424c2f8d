// Package scheduler runs the screening pipeline on a cron schedule for
// unattended operation. Each firing writes a fresh dated artifact directory
// that the results server picks up automatically.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds the schedule settings. Expressions use six fields
// (seconds first), same as cron.WithSeconds.
type Config struct {
	Schedule   string        `yaml:"schedule"`     // cron expression with seconds field
	Timezone   string        `yaml:"timezone"`     // IANA zone the expression is evaluated in
	RunTimeout time.Duration `yaml:"run_timeout"`  // deadline for one screening pass
	RunOnStart bool          `yaml:"run_on_start"` // fire once immediately on startup
}

// DefaultConfig schedules weekdays at 16:30 IST, an hour after the NSE
// close so end-of-day data has settled.
func DefaultConfig() *Config {
	return &Config{
		Schedule:   "0 30 16 * * 1-5",
		Timezone:   "Asia/Kolkata",
		RunTimeout: 30 * time.Minute,
		RunOnStart: false,
	}
}

// LoadConfig reads a YAML config file. Fields left empty fall back to the
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scheduler config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scheduler config: %w", err)
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultConfig().RunTimeout
	}
	return cfg, nil
}

// Task is one scheduled screening pass.
type Task func(ctx context.Context) error

// Status is a point-in-time snapshot for logs and health output.
type Status struct {
	Running   bool      `json:"running"`
	Runs      int       `json:"runs"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
	NextRun   time.Time `json:"next_run"`
	Uptime    string    `json:"uptime,omitempty"`
}

// Scheduler fires the task on the configured cron schedule.
type Scheduler struct {
	config *Config
	cron   *cron.Cron
	task   Task

	mu      sync.Mutex
	running bool
	started time.Time
	lastRun time.Time
	lastErr error
	runs    int
}

// NewScheduler validates the schedule and timezone up front so a typo fails
// at startup, not at the first firing.
func NewScheduler(cfg *Config, task Task) (*Scheduler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if task == nil {
		return nil, fmt.Errorf("scheduler task is nil")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}

	s := &Scheduler{
		config: cfg,
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		task:   task,
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, s.runOnce); err != nil {
		return nil, fmt.Errorf("failed to register schedule %q: %w", cfg.Schedule, err)
	}

	return s, nil
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits
// for any in-flight pass to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.config.RunOnStart {
		s.runOnce()
	}

	s.mu.Lock()
	s.running = true
	s.started = time.Now()
	s.mu.Unlock()

	s.cron.Start()
	log.Info().
		Str("schedule", s.config.Schedule).
		Str("timezone", s.config.Timezone).
		Time("next_run", s.nextRun()).
		Msg("Scheduler started")

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	log.Info().Msg("Scheduler stopped")
	return nil
}

// RunNow fires one pass outside the schedule.
func (s *Scheduler) RunNow() {
	s.runOnce()
}

// Status reports the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running: s.running,
		Runs:    s.runs,
		LastRun: s.lastRun,
		NextRun: s.nextRun(),
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if s.running {
		st.Uptime = time.Since(s.started).Round(time.Second).String()
	}
	return st
}

func (s *Scheduler) nextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runOnce() {
	start := time.Now()
	log.Info().Msg("Scheduled screen starting")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	err := s.task(ctx)
	cancel()

	s.mu.Lock()
	s.lastRun = start
	s.lastErr = err
	s.runs++
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Scheduled screen failed")
		return
	}
	log.Info().Dur("duration", time.Since(start)).Msg("Scheduled screen completed")
}

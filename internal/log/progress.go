// Package log carries small helpers around the global zerolog logger for
// long-running batch commands.
package log

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Tracker logs per-item progress for a batch run in the form "[i/n] LABEL".
// It is safe for use from concurrent workers.
type Tracker struct {
	mu      sync.Mutex
	name    string
	total   int
	current int
	start   time.Time
}

// NewTracker creates a tracker for a run of total items.
func NewTracker(name string, total int) *Tracker {
	return &Tracker{
		name:  name,
		total: total,
		start: time.Now(),
	}
}

// Mark records one finished item and logs its position in the run.
func (t *Tracker) Mark(label string) {
	t.mu.Lock()
	t.current++
	current := t.current
	eta := t.etaLocked()
	t.mu.Unlock()

	event := log.Info().Str("task", t.name)
	if eta > 0 {
		event = event.Dur("eta", eta)
	}
	event.Msgf("[%d/%d] %s", current, t.total, label)
}

// Finish logs the run summary.
func (t *Tracker) Finish() {
	t.mu.Lock()
	current := t.current
	t.mu.Unlock()

	log.Info().
		Str("task", t.name).
		Int("items", current).
		Dur("duration", time.Since(t.start).Round(time.Millisecond)).
		Msgf("%s completed", t.name)
}

// etaLocked estimates remaining time from the pace so far. Caller holds mu.
func (t *Tracker) etaLocked() time.Duration {
	if t.current == 0 || t.total <= 0 || t.current >= t.total {
		return 0
	}
	elapsed := time.Since(t.start)
	rate := elapsed / time.Duration(t.current)
	return (time.Duration(t.total-t.current) * rate).Round(time.Second)
}

// Elapsed returns time since the tracker started.
func (t *Tracker) Elapsed() time.Duration {
	return time.Since(t.start)
}

// String renders the current position, for embedding in other messages.
func (t *Tracker) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("[%d/%d]", t.current, t.total)
}

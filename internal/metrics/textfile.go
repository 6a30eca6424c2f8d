package metrics

import (
	"bytes"
	"fmt"

	"github.com/prometheus/common/expfmt"

	atomicio "github.com/swingdesk/swingrun/internal/io"
)

// WriteTextfile renders the current collector state in the Prometheus text
// exposition format and writes it atomically. One-shot runs have no scrape
// endpoint to expose, so they leave this file in the run's artifact
// directory; the results server picks up the newest one for /metrics.
func (r *Registry) WriteTextfile(path string) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	return atomicio.WriteFileAtomic(path, buf.Bytes())
}

// Package health performs connectivity probes against backend MCP servers and
// maintains their rolling health state. It is the only writer of health fields
// on registry records.
package health

import (
	"sort"
	"time"

	"github.com/gatewaylabs/mcpgw/internal/domain"
)

// DefaultWindowSize is the number of probe samples retained per server for
// rolling statistics.
const DefaultWindowSize = 50

// window is a bounded ring of probe samples for one server. It is owned by
// that server's probe task and is not safe for concurrent use.
type window struct {
	samples []domain.HealthSample
	max     int
}

func newWindow(max int) *window {
	if max < 1 {
		max = DefaultWindowSize
	}
	return &window{max: max}
}

// append adds a sample, evicting the oldest once the window is full.
func (w *window) append(s domain.HealthSample) {
	w.samples = append(w.samples, s)
	if len(w.samples) > w.max {
		w.samples = w.samples[1:]
	}
}

func (w *window) len() int {
	return len(w.samples)
}

// last returns the most recent sample, or false when the window is empty.
func (w *window) last() (domain.HealthSample, bool) {
	if len(w.samples) == 0 {
		return domain.HealthSample{}, false
	}
	return w.samples[len(w.samples)-1], true
}

// successRate is the fraction of samples in the window that succeeded.
// An empty window reports 0.
func (w *window) successRate() float64 {
	if len(w.samples) == 0 {
		return 0
	}
	var ok int
	for _, s := range w.samples {
		if s.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(w.samples))
}

// anySuccess reports whether the window holds at least one successful sample.
func (w *window) anySuccess() bool {
	for _, s := range w.samples {
		if s.Success {
			return true
		}
	}
	return false
}

// consecutiveFailures counts the failures at the tail of the window.
func (w *window) consecutiveFailures() int {
	var n int
	for i := len(w.samples) - 1; i >= 0; i-- {
		if w.samples[i].Success {
			break
		}
		n++
	}
	return n
}

// medianResponseTime is the trailing median over successful samples, used to
// detect elevated latency. Returns false when no successful sample carries a
// response time.
func (w *window) medianResponseTime() (time.Duration, bool) {
	var times []time.Duration
	for _, s := range w.samples {
		if s.Success && s.ResponseTime != nil {
			times = append(times, *s.ResponseTime)
		}
	}
	if len(times) == 0 {
		return 0, false
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times[len(times)/2], true
}

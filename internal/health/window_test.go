package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/mcpgw/internal/domain"
)

func successSample(rt time.Duration) domain.HealthSample {
	code := 200
	return domain.HealthSample{
		Timestamp:    time.Now().UTC(),
		Success:      true,
		ResponseTime: &rt,
		StatusCode:   &code,
	}
}

func failureSample() domain.HealthSample {
	return domain.HealthSample{
		Timestamp: time.Now().UTC(),
		Error:     "connection refused",
	}
}

func TestWindow_EvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	win := newWindow(3)
	win.append(failureSample())
	win.append(successSample(10 * time.Millisecond))
	win.append(successSample(10 * time.Millisecond))
	win.append(successSample(10 * time.Millisecond))

	require.Equal(t, 3, win.len())
	require.InDelta(t, 1.0, win.successRate(), 0.001)
}

func TestWindow_SuccessRate(t *testing.T) {
	t.Parallel()

	win := newWindow(10)
	require.Zero(t, win.successRate())

	win.append(successSample(time.Millisecond))
	win.append(successSample(time.Millisecond))
	win.append(failureSample())
	win.append(successSample(time.Millisecond))

	require.InDelta(t, 0.75, win.successRate(), 0.001)
}

func TestWindow_ConsecutiveFailures(t *testing.T) {
	t.Parallel()

	win := newWindow(10)
	require.Zero(t, win.consecutiveFailures())

	win.append(successSample(time.Millisecond))
	win.append(failureSample())
	win.append(failureSample())
	require.Equal(t, 2, win.consecutiveFailures())

	// A success resets the tail count.
	win.append(successSample(time.Millisecond))
	require.Zero(t, win.consecutiveFailures())
}

func TestWindow_MedianResponseTime(t *testing.T) {
	t.Parallel()

	win := newWindow(10)
	_, ok := win.medianResponseTime()
	require.False(t, ok)

	// Failures carry no response time and never skew the median.
	win.append(failureSample())
	win.append(successSample(10 * time.Millisecond))
	win.append(successSample(30 * time.Millisecond))
	win.append(successSample(20 * time.Millisecond))

	median, ok := win.medianResponseTime()
	require.True(t, ok)
	require.Equal(t, 20*time.Millisecond, median)
}

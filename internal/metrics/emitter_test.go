package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/mcpgw/internal/domain"
)

type captureSink struct {
	mu      sync.Mutex
	samples []domain.MetricSample
}

func (s *captureSink) Consume(sample domain.MetricSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
}

func (s *captureSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

type blockingSink struct {
	captureSink
	release chan struct{}
}

func (s *blockingSink) Consume(sample domain.MetricSample) {
	<-s.release
	s.captureSink.Consume(sample)
}

func probeSample(serverID string, success bool) domain.MetricSample {
	return domain.MetricSample{
		ServerID:       serverID,
		Timestamp:      time.Now().UTC(),
		ResponseTimeMs: 12,
		StatusCode:     200,
		Success:        success,
	}
}

func TestEmitter_DeliversSamples(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	emitter := NewEmitter(hclog.NewNullLogger(), sink, 16)

	emitter.Emit(probeSample("srv-1", true))
	emitter.Emit(probeSample("srv-1", false))
	emitter.Close()

	require.Equal(t, 2, sink.len())
	require.True(t, sink.samples[0].Success)
	require.False(t, sink.samples[1].Success)
	require.Zero(t, emitter.Dropped())
}

func TestEmitter_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	sink := &blockingSink{release: make(chan struct{})}
	emitter := NewEmitter(hclog.NewNullLogger(), sink, 2)

	for i := 0; i < 6; i++ {
		emitter.Emit(probeSample("srv-1", true))
	}
	require.Positive(t, emitter.Dropped())

	close(sink.release)
	emitter.Close()
}

func TestEmitter_CloseDrainsBufferedSamples(t *testing.T) {
	t.Parallel()

	sink := &blockingSink{release: make(chan struct{})}
	emitter := NewEmitter(hclog.NewNullLogger(), sink, 8)

	emitter.Emit(probeSample("srv-1", true))
	emitter.Emit(probeSample("srv-2", true))

	close(sink.release)
	emitter.Close()

	require.Equal(t, 2, sink.len())

	emitter.Emit(probeSample("srv-3", true))
	require.Equal(t, 2, sink.len())
}

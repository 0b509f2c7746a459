package audit

import (
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/mcpgw/internal/domain"
)

type captureSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (s *captureSink) Consume(event domain.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// blockingSink stalls the drain goroutine until released, so tests can fill
// the emitter buffer deterministically.
type blockingSink struct {
	captureSink
	release chan struct{}
}

func (s *blockingSink) Consume(event domain.AuditEvent) {
	<-s.release
	s.captureSink.Consume(event)
}

func registerEvent(id string) domain.AuditEvent {
	return domain.AuditEvent{
		TenantID:     "acme",
		ActorID:      "alice",
		ResourceType: "mcp_server",
		ResourceID:   id,
		Operation:    domain.AuditOpRegister,
		Timestamp:    time.Now().UTC(),
	}
}

func TestEmitter_DeliversInOrder(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	emitter := NewEmitter(hclog.NewNullLogger(), sink, 16)

	emitter.Emit(registerEvent("srv-1"))
	emitter.Emit(registerEvent("srv-2"))
	emitter.Emit(registerEvent("srv-3"))
	emitter.Close()

	require.Equal(t, 3, sink.len())
	require.Equal(t, "srv-1", sink.events[0].ResourceID)
	require.Equal(t, "srv-3", sink.events[2].ResourceID)
	require.Zero(t, emitter.Dropped())
}

func TestEmitter_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	sink := &blockingSink{release: make(chan struct{})}
	emitter := NewEmitter(hclog.NewNullLogger(), sink, 2)

	// Capacity is the buffer plus one event in flight in the drain goroutine;
	// anything past that must be dropped, never block the caller.
	for i := 0; i < 6; i++ {
		emitter.Emit(registerEvent("srv"))
	}
	require.Positive(t, emitter.Dropped())

	close(sink.release)
	emitter.Close()
	require.LessOrEqual(t, sink.len(), 3)
}

func TestEmitter_CloseDrainsBufferedEvents(t *testing.T) {
	t.Parallel()

	sink := &blockingSink{release: make(chan struct{})}
	emitter := NewEmitter(hclog.NewNullLogger(), sink, 8)

	emitter.Emit(registerEvent("srv-1"))
	emitter.Emit(registerEvent("srv-2"))

	close(sink.release)
	emitter.Close()

	require.Equal(t, 2, sink.len())

	// Events after Close are discarded silently.
	emitter.Emit(registerEvent("srv-3"))
	require.Equal(t, 2, sink.len())
}

func TestEmitter_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	emitter := NewEmitter(hclog.NewNullLogger(), &captureSink{}, 8)
	emitter.Close()
	emitter.Close()
}

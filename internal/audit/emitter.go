// Package audit constructs and emits audit events for registry and health
// changes. Persistence is an external collaborator's concern; the gateway
// never queries audit history.
package audit

import (
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"

	"github.com/gatewaylabs/mcpgw/internal/domain"
)

// DefaultBufferSize is the emitter's event buffer capacity.
const DefaultBufferSize = 256

// Sink is the downstream consumer of drained audit events.
type Sink interface {
	Consume(event domain.AuditEvent)
}

// LogSink writes audit events to the gateway log. It is the default sink when
// no external collaborator is wired in.
type LogSink struct {
	logger hclog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger hclog.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

// Consume implements Sink.
func (s *LogSink) Consume(event domain.AuditEvent) {
	s.logger.Info("audit event",
		"tenant", event.TenantID,
		"actor", event.ActorID,
		"resource", event.ResourceID,
		"operation", event.Operation,
	)
}

// Emitter decouples event producers from the sink with a bounded buffer.
// Emit never blocks the caller: when the buffer is full the event is dropped
// and counted, since audit must not stall registration or routing.
// NewEmitter should be used to create instances of Emitter.
type Emitter struct {
	logger  hclog.Logger
	sink    Sink
	events  chan domain.AuditEvent
	dropped atomic.Int64

	stopOnce sync.Once
	done     chan struct{}
	drained  chan struct{}
}

// NewEmitter creates and starts an Emitter draining into the given sink.
func NewEmitter(logger hclog.Logger, sink Sink, bufferSize int) *Emitter {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	e := &Emitter{
		logger:  logger.Named("audit-emitter"),
		sink:    sink,
		events:  make(chan domain.AuditEvent, bufferSize),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	go e.drain()
	return e
}

// Emit implements contracts.AuditSink.
func (e *Emitter) Emit(event domain.AuditEvent) {
	select {
	case <-e.done:
	case e.events <- event:
	default:
		if n := e.dropped.Add(1); n%100 == 1 {
			e.logger.Warn("audit buffer full, dropping events", "dropped", n)
		}
	}
}

// Dropped reports how many events were discarded due to a full buffer.
func (e *Emitter) Dropped() int64 {
	return e.dropped.Load()
}

// Close stops the emitter after draining buffered events.
func (e *Emitter) Close() {
	e.stopOnce.Do(func() {
		close(e.done)
		<-e.drained
	})
}

func (e *Emitter) drain() {
	defer close(e.drained)
	for {
		select {
		case event := <-e.events:
			e.sink.Consume(event)
		case <-e.done:
			for {
				select {
				case event := <-e.events:
					e.sink.Consume(event)
				default:
					return
				}
			}
		}
	}
}

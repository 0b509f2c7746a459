// Package metrics emits per-probe and per-request samples to an external
// aggregation collaborator. The gateway only produces samples, never
// aggregates or exposes them.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"

	"github.com/gatewaylabs/mcpgw/internal/domain"
)

// DefaultBufferSize is the emitter's sample buffer capacity.
const DefaultBufferSize = 1024

// Sink is the downstream consumer of drained metric samples.
type Sink interface {
	Consume(sample domain.MetricSample)
}

// LogSink writes samples to the gateway debug log. It is the default sink
// when no external collaborator is wired in.
type LogSink struct {
	logger hclog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger hclog.Logger) *LogSink {
	return &LogSink{logger: logger.Named("metrics")}
}

// Consume implements Sink.
func (s *LogSink) Consume(sample domain.MetricSample) {
	s.logger.Debug("metric sample",
		"server", sample.ServerID,
		"responseTimeMs", sample.ResponseTimeMs,
		"success", sample.Success,
	)
}

// Emitter decouples sample producers from the sink with a bounded buffer.
// Emit never blocks: samples are dropped (and counted) when the buffer is
// full, because metrics must not stall probing or routing.
// NewEmitter should be used to create instances of Emitter.
type Emitter struct {
	logger  hclog.Logger
	sink    Sink
	samples chan domain.MetricSample
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
		logger:  logger.Named("metric-emitter"),
		sink:    sink,
		samples: make(chan domain.MetricSample, bufferSize),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	go e.drain()
	return e
}

// Emit implements contracts.MetricSink.
func (e *Emitter) Emit(sample domain.MetricSample) {
	select {
	case <-e.done:
	case e.samples <- sample:
	default:
		if n := e.dropped.Add(1); n%1000 == 1 {
			e.logger.Warn("metric buffer full, dropping samples", "dropped", n)
		}
	}
}

// Dropped reports how many samples were discarded due to a full buffer.
func (e *Emitter) Dropped() int64 {
	return e.dropped.Load()
}

// Close stops the emitter after draining buffered samples.
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
		case sample := <-e.samples:
			e.sink.Consume(sample)
		case <-e.done:
			for {
				select {
				case sample := <-e.samples:
					e.sink.Consume(sample)
				default:
					return
				}
			}
		}
	}
}

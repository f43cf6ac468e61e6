package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hospital-ops/pkg/interfaces"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/monitoring"
	"github.com/medcore/hospital-ops/pkg/types"
)

// EventWriter persists a single audit event
type EventWriter interface {
	CreateEvent(ctx context.Context, event *types.AuditEvent) error
}

// Sink accepts audit events without blocking the caller. Events are buffered
// on a bounded queue and drained by a background worker; when the queue is
// full the event is dropped and the drop is logged locally. A failed or
// dropped audit write never fails the operation that produced it.
type Sink struct {
	writer  EventWriter
	queue   chan *types.AuditEvent
	metrics *monitoring.MetricsCollector
	logger  *logger.Logger

	// mu orders in-flight Record sends before the queue close. Record takes
	// the read side so concurrent recorders never contend with each other.
	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewSink creates an audit sink and starts its drain worker
func NewSink(writer EventWriter, queueSize int, metrics *monitoring.MetricsCollector, log *logger.Logger) *Sink {
	if queueSize < 1 {
		queueSize = 1
	}

	sink := &Sink{
		writer:  writer,
		queue:   make(chan *types.AuditEvent, queueSize),
		metrics: metrics,
		logger:  log,
		done:    make(chan struct{}),
	}

	go sink.drain()

	return sink
}

// Record enqueues an audit event. It never blocks: a full queue drops the
// event with a local warning instead of stalling the caller.
func (s *Sink) Record(event *types.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.metrics.RecordAuditDrop()
		s.logger.Warnf("Audit sink closed, dropping event %s (%s on %s)",
			event.ID, event.Action, event.ResourceID)
		return
	}

	select {
	case s.queue <- event:
	default:
		s.metrics.RecordAuditDrop()
		s.logger.Warnf("Audit queue full, dropping event %s (%s on %s)",
			event.ID, event.Action, event.ResourceID)
	}
}

// Close stops accepting events and drains what is already queued
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.queue)
		<-s.done
	})
}

func (s *Sink) drain() {
	defer close(s.done)

	for event := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.writer.CreateEvent(ctx, event)
		cancel()

		if err != nil {
			s.metrics.RecordAuditEvent(string(event.Action), false)
			s.logger.Errorf("Failed to persist audit event %s: %v", event.ID, err)
			continue
		}

		s.metrics.RecordAuditEvent(string(event.Action), true)
	}
}

var _ interfaces.AuditSink = (*Sink)(nil)

package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// MultiProgress fans out to every sink; one failing sink does not stop the
// others.
type MultiProgress []ProgressSink

func (m MultiProgress) Progress(ctx context.Context, ev ProgressEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Progress(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type MultiAudit []AuditSink

func (m MultiAudit) Audit(ctx context.Context, ev AuditEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Audit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Outbox collects audit events produced inside a transaction. Flush them
// only after commit; a rolled-back transaction just drops the outbox.
type Outbox struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (o *Outbox) Add(evs ...AuditEvent) {
	o.mu.Lock()
	o.events = append(o.events, evs...)
	o.mu.Unlock()
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

// Flush emits and clears the collected events. Sink errors are logged, not
// returned: the transaction has already committed.
func (o *Outbox) Flush(ctx context.Context, sink AuditSink, log *logger.Logger) {
	o.mu.Lock()
	evs := o.events
	o.events = nil
	o.mu.Unlock()
	if sink == nil {
		return
	}
	for _, ev := range evs {
		if err := sink.Audit(ctx, ev); err != nil && log != nil {
			log.Warn("Audit emit failed", "kind", ev.Kind, "entity_id", ev.EntityID, "error", err)
		}
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu       sync.Mutex
	progress []ProgressEvent
	audits   []AuditEvent
}

func (r *Recorder) Progress(_ context.Context, ev ProgressEvent) error {
	r.mu.Lock()
	r.progress = append(r.progress, ev)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Audit(_ context.Context, ev AuditEvent) error {
	r.mu.Lock()
	r.audits = append(r.audits, ev)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) ProgressEvents() []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ProgressEvent(nil), r.progress...)
}

func (r *Recorder) AuditEvents() []AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditEvent(nil), r.audits...)
}

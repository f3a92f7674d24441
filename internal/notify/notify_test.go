package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaAuditSinkKeysByEntity(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaAuditSink(w, logger.Nop())
	ev := AuditEvent{Kind: AuditParameterVersion, EntityID: "named:fuel_reduction_pct", Actor: "ana", Before: 1.5, After: 2.0, Justification: "new policy"}
	if err := sink.Audit(context.Background(), ev); err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages: want=1 got=%d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != ev.EntityID {
		t.Fatalf("key: want=%s got=%s", ev.EntityID, w.msgs[0].Key)
	}
	var decoded AuditEvent
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Justification != "new policy" || decoded.Kind != AuditParameterVersion {
		t.Fatalf("payload: %+v", decoded)
	}
}

type failingSink struct{}

func (failingSink) Audit(context.Context, AuditEvent) error { return errors.New("down") }

func TestOutboxFlushesOnceAndSurvivesSinkErrors(t *testing.T) {
	rec := &Recorder{}
	var ob Outbox
	ob.Add(AuditEvent{Kind: AuditRunApproved, EntityID: "a"}, AuditEvent{Kind: AuditRunSuperseded, EntityID: "b"})
	if ob.Len() != 2 {
		t.Fatalf("len: want=2 got=%d", ob.Len())
	}
	ob.Flush(context.Background(), MultiAudit{failingSink{}, rec}, logger.Nop())
	ob.Flush(context.Background(), rec, logger.Nop())
	if got := len(rec.AuditEvents()); got != 2 {
		t.Fatalf("recorded: want=2 got=%d", got)
	}
	if ob.Len() != 0 {
		t.Fatalf("outbox not cleared")
	}
}

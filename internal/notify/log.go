package notify

import (
	"context"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

type LogProgressSink struct {
	log *logger.Logger
}

func NewLogProgressSink(log *logger.Logger) *LogProgressSink {
	return &LogProgressSink{log: log.With("sink", "progress")}
}

func (s *LogProgressSink) Progress(_ context.Context, ev ProgressEvent) error {
	s.log.Info("Run progress",
		"run_id", ev.RunID,
		"status", ev.Status,
		"step", ev.Step,
		"percent", ev.Percent,
	)
	return nil
}

type LogAuditSink struct {
	log *logger.Logger
}

func NewLogAuditSink(log *logger.Logger) *LogAuditSink {
	return &LogAuditSink{log: log.With("sink", "audit")}
}

func (s *LogAuditSink) Audit(_ context.Context, ev AuditEvent) error {
	s.log.Info("Audit",
		"kind", ev.Kind,
		"entity_id", ev.EntityID,
		"actor", ev.Actor,
		"before", ev.Before,
		"after", ev.After,
		"justification", ev.Justification,
	)
	return nil
}

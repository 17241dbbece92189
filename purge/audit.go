package purge

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

type AuditEvent string

const (
	EventPurge     AuditEvent = "purge"
	EventPurgeSelf AuditEvent = "purge_self"
	EventDelete    AuditEvent = "delete"
	EventClear     AuditEvent = "clear"
)

// AuditEntry records one finished deletion.
type AuditEntry struct {
	Event     AuditEvent
	ChannelID snowflake.ID
	Affected  []snowflake.ID
	Deleted   int
	Metadata  map[string]any
	At        time.Time
}

// AuditSink stores audit entries. Failures never change a purge's outcome.
type AuditSink interface {
	Log(ctx context.Context, entry AuditEntry) error
}

// LogSink writes audit entries to a logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Log(_ context.Context, entry AuditEntry) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("purge audit",
		slog.String("event", string(entry.Event)),
		slog.Any("channel.id", entry.ChannelID),
		slog.Int("deleted", entry.Deleted),
		slog.Any("affected", entry.Affected),
		slog.Any("metadata", entry.Metadata),
	)
	return nil
}

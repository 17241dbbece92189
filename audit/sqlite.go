// Package audit persists purge audit entries in SQLite.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"selective-purge/purge"
)

const schema = `
CREATE TABLE IF NOT EXISTS purge_audit (
	id TEXT PRIMARY KEY,
	event TEXT NOT NULL,
	channel_id INTEGER NOT NULL,
	deleted INTEGER NOT NULL,
	affected TEXT NOT NULL,
	metadata TEXT,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_purge_audit_channel ON purge_audit(channel_id, created_at);
`

// Store is a purge.AuditSink backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and migrates it.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// :memory: databases are per connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	s := &Store{db: db, logger: logger.With(slog.String("component", "audit"))}
	s.logger.Debug("audit store opened", slog.String("path", path))
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Log(ctx context.Context, entry purge.AuditEntry) error {
	affected := entry.Affected
	if affected == nil {
		affected = []snowflake.ID{}
	}
	affectedJSON, err := json.Marshal(affected)
	if err != nil {
		return fmt.Errorf("failed to encode affected senders: %w", err)
	}
	var metadata sql.NullString
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO purge_audit (id, event, channel_id, deleted, affected, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), string(entry.Event), int64(entry.ChannelID), entry.Deleted,
		string(affectedJSON), metadata, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries of a channel, newest first.
func (s *Store) Recent(ctx context.Context, channelID snowflake.ID, limit int) ([]purge.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event, channel_id, deleted, affected, metadata, created_at
		FROM purge_audit WHERE channel_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		int64(channelID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []purge.AuditEntry
	for rows.Next() {
		var (
			event     string
			channel   int64
			entry     purge.AuditEntry
			affected  string
			metadata  sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&event, &channel, &entry.Deleted, &affected, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Event = purge.AuditEvent(event)
		entry.ChannelID = snowflake.ID(channel)
		entry.At = time.UnixMilli(createdAt).UTC()
		if err := json.Unmarshal([]byte(affected), &entry.Affected); err != nil {
			return nil, fmt.Errorf("failed to decode affected senders: %w", err)
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than the cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM purge_audit WHERE created_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit entries: %w", err)
	}
	return res.RowsAffected()
}

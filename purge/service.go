package purge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

// Stats summarizes a range of messages.
type Stats struct {
	UniqueSenders int
	Messages      int
}

// Service is the entry point of the purge engine. It owns the pending
// confirmations of every channel.
type Service struct {
	source   Source
	deleter  Deleter
	executor *Executor
	sessions *Controller
	audit    AuditSink
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	self      snowflake.ID
	batchSize int
	maxAge    time.Duration
}

type Option func(*Service)

func WithAudit(sink AuditSink) Option {
	return func(s *Service) { s.audit = sink }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithBatchSize(size int) Option {
	return func(s *Service) { s.batchSize = size }
}

// WithSelfID sets the acting account, used by self-only purges.
func WithSelfID(id snowflake.ID) Option {
	return func(s *Service) { s.self = id }
}

// WithMaxAge rejects anchors older than d. Zero disables the check.
func WithMaxAge(d time.Duration) Option {
	return func(s *Service) { s.maxAge = d }
}

func NewService(source Source, deleter Deleter, opts ...Option) *Service {
	s := &Service{
		source:    source,
		deleter:   deleter,
		sessions:  NewController(),
		recorder:  nopRecorder{},
		logger:    slog.Default(),
		now:       time.Now,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audit == nil {
		s.audit = LogSink{Logger: s.logger}
	}
	s.logger = s.logger.With(slog.String("component", "purge"))
	s.executor = NewExecutor(deleter, s.batchSize, s.recorder, s.logger)
	return s
}

// Sessions gives access to the pending confirmations.
func (s *Service) Sessions() *Controller {
	return s.sessions
}

func (s *Service) SelfID() snowflake.ID {
	return s.self
}

// CheckAnchor rejects anchors older than the configured maximum age.
func (s *Service) CheckAnchor(messageID snowflake.ID) error {
	if s.maxAge <= 0 {
		return nil
	}
	if s.now().Sub(messageID.Time()) > s.maxAge {
		return usageErrorf("message cannot be older than %s", s.maxAge)
	}
	return nil
}

// Purge deletes the messages of bounds selected by spec.
func (s *Service) Purge(ctx context.Context, channelID snowflake.ID, bounds Bounds, spec FilterSpec) (Result, error) {
	if bounds.Upper != 0 && bounds.Upper <= bounds.Lower {
		return Result{Affected: SenderSet{}}, usageErrorf("end message must be newer than the start message")
	}
	env := Env{Now: s.now(), Self: s.self}
	stream := Walk(ctx, s.source, channelID, bounds)
	result, err := s.executor.Purge(ctx, channelID, stream, spec, env)

	event := EventPurge
	if spec.SelfOnly {
		event = EventPurgeSelf
	}
	meta := map[string]any{"count": result.Deleted}
	if spec.Type != TypeAny {
		meta["filter_type"] = string(spec.Type)
	}
	if spec.Window > 0 {
		meta["window"] = spec.Window.String()
	}
	s.finish(ctx, event, channelID, result, meta, err)
	return result, err
}

// PurgeRange deletes every ID of [lower, upper] without reading history.
func (s *Service) PurgeRange(ctx context.Context, channelID, lower, upper snowflake.ID) (Result, error) {
	return s.purgeRange(ctx, channelID, lower, upper, nil)
}

func (s *Service) purgeRange(ctx context.Context, channelID, lower, upper snowflake.ID, excluded []snowflake.ID) (Result, error) {
	result, err := s.executor.PurgeRange(ctx, channelID, lower, upper, excluded)
	if errors.Is(err, ErrUsage) {
		return result, err
	}
	meta := map[string]any{"count": result.Deleted, "mode": "range"}
	if len(excluded) > 0 {
		meta["excluded"] = len(excluded)
	}
	s.finish(ctx, EventPurge, channelID, result, meta, err)
	return result, err
}

// Clear deletes up to limit messages newer than lower, without filters.
func (s *Service) Clear(ctx context.Context, channelID, lower snowflake.ID, limit int) (Result, error) {
	stream := Take(Walk(ctx, s.source, channelID, Bounds{Lower: lower}), limit)
	result, err := s.executor.Purge(ctx, channelID, stream, FilterSpec{}, Env{Now: s.now(), Self: s.self})
	s.finish(ctx, EventClear, channelID, result, map[string]any{"quick_clear": result.Deleted}, err)
	return result, err
}

// DeleteSingle deletes one message. senderID may be zero when unknown.
func (s *Service) DeleteSingle(ctx context.Context, channelID, messageID, senderID snowflake.ID) error {
	err := s.deleter.DeleteMessage(ctx, channelID, messageID)
	s.recorder.ObserveBatch(1, err)
	if err != nil {
		s.logger.Error("error while deleting a message", slog.Any("channel.id", channelID), slog.Any("message.id", messageID), tint.Err(err))
		s.recorder.ObservePurge(EventDelete, Result{}, err)
		return fmt.Errorf("failed to delete message %s: %w", messageID, err)
	}
	result := Result{Deleted: 1, Affected: SenderSet{}}
	if senderID != 0 {
		result.Affected.Add(senderID)
	}
	s.finish(ctx, EventDelete, channelID, result, nil, nil)
	return nil
}

// Stats counts the messages of bounds and their distinct senders.
func (s *Service) Stats(ctx context.Context, channelID snowflake.ID, bounds Bounds) (Stats, error) {
	senders := SenderSet{}
	var stats Stats
	for msg, err := range Walk(ctx, s.source, channelID, bounds) {
		if err != nil {
			return Stats{}, fmt.Errorf("failed to fetch messages: %w", err)
		}
		senders.Add(msg.SenderID)
		stats.Messages++
	}
	stats.UniqueSenders = len(senders)
	return stats, nil
}

// RequestConfirmation parks a purge until Confirm or Cancel is called for the
// channel. A previous pending purge of the channel is replaced. It fails with
// ErrBusy while a confirmed purge is still running in the channel.
func (s *Service) RequestConfirmation(channelID, userID snowflake.ID, spec FilterSpec, bounds Bounds) error {
	return s.request(channelID, Pending{
		UserID:    userID,
		Spec:      spec,
		Bounds:    bounds,
		CreatedAt: s.now(),
	})
}

// RequestRangeConfirmation parks a range purge of [lower, upper].
func (s *Service) RequestRangeConfirmation(channelID, userID, lower, upper snowflake.ID) error {
	if err := CheckRange(lower, upper); err != nil {
		return err
	}
	return s.request(channelID, Pending{
		UserID:    userID,
		Bounds:    Bounds{Lower: lower - 1, Upper: upper},
		CreatedAt: s.now(),
		Range:     true,
	})
}

func (s *Service) request(channelID snowflake.ID, p Pending) error {
	replaced, err := s.sessions.Request(channelID, p)
	if err != nil {
		return err
	}
	s.logger.Debug("purge awaiting confirmation",
		slog.Any("channel.id", channelID),
		slog.Any("user.id", p.UserID),
		slog.Bool("range", p.Range),
		slog.Bool("replaced", replaced),
	)
	return nil
}

// Confirm runs the channel's pending purge. ok is false if nothing was pending
// or, with ErrBusy, if an earlier confirmed purge is still running.
func (s *Service) Confirm(ctx context.Context, channelID snowflake.ID) (result Result, ok bool, err error) {
	ok, err = s.sessions.Confirm(channelID, func(p Pending) error {
		var runErr error
		if p.Range {
			result, runErr = s.purgeRange(ctx, channelID, p.Bounds.Lower+1, p.Bounds.Upper, p.Excluded())
		} else {
			result, runErr = s.Purge(ctx, channelID, p.Bounds, p.Resolved())
		}
		return runErr
	})
	return result, ok, err
}

// Cancel drops the channel's pending purge. It returns false if nothing was pending.
func (s *Service) Cancel(channelID snowflake.ID) bool {
	return s.sessions.Cancel(channelID)
}

func (s *Service) finish(ctx context.Context, event AuditEvent, channelID snowflake.ID, result Result, meta map[string]any, err error) {
	s.recorder.ObservePurge(event, result, err)
	if err != nil {
		s.logger.Error("error while running a purge",
			slog.String("event", string(event)),
			slog.Any("channel.id", channelID),
			slog.Int("deleted", result.Deleted),
			tint.Err(err),
		)
	} else {
		s.logger.Info("purge finished",
			slog.String("event", string(event)),
			slog.Any("channel.id", channelID),
			slog.Int("deleted", result.Deleted),
		)
	}
	if result.Deleted == 0 {
		return
	}
	entry := AuditEntry{
		Event:     event,
		ChannelID: channelID,
		Affected:  result.Affected.Sorted(),
		Deleted:   result.Deleted,
		Metadata:  meta,
		At:        s.now(),
	}
	if auditErr := s.audit.Log(context.WithoutCancel(ctx), entry); auditErr != nil {
		s.logger.Warn("failed to write audit entry", slog.String("event", string(event)), tint.Err(auditErr))
	}
}

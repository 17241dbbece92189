package purge

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

// MaxRangeSpan caps how many IDs PurgeRange generates in one call.
const MaxRangeSpan = 10_000

// Deleter removes messages from a channel. DeleteMessages accepts up to the
// configured batch size of IDs.
type Deleter interface {
	DeleteMessages(ctx context.Context, channelID snowflake.ID, messageIDs []snowflake.ID) error
	DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error
}

// Recorder is notified about delete calls and finished operations.
type Recorder interface {
	ObserveBatch(size int, err error)
	ObservePurge(event AuditEvent, result Result, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveBatch(int, error)                {}
func (nopRecorder) ObservePurge(AuditEvent, Result, error) {}

// Result is the outcome of one purge.
type Result struct {
	Deleted  int
	Affected SenderSet
}

// Executor deletes the selected messages of a stream in batches.
type Executor struct {
	deleter   Deleter
	batchSize int
	recorder  Recorder
	logger    *slog.Logger
}

func NewExecutor(deleter Deleter, batchSize int, recorder Recorder, logger *slog.Logger) *Executor {
	if batchSize < 1 || batchSize > MaxBatchSize {
		batchSize = DefaultBatchSize
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		deleter:   deleter,
		batchSize: batchSize,
		recorder:  recorder,
		logger:    logger,
	}
}

func (e *Executor) BatchSize() int {
	return e.batchSize
}

// Purge consumes stream in order and deletes every message matching spec.
// Deletions are only counted once their batch call succeeded. Any failure ends
// the walk and is returned as a *PurgeError carrying the result so far.
func (e *Executor) Purge(ctx context.Context, channelID snowflake.ID, stream iter.Seq2[MessageRef, error], spec FilterSpec, env Env) (Result, error) {
	r := newRun(e, channelID)
	for msg, err := range stream {
		if err != nil {
			return r.result, r.fail(fmt.Errorf("failed to fetch messages: %w", err))
		}
		if !Matches(msg, spec, env) {
			continue
		}
		if r.batcher.Add(msg) {
			if err := r.flush(ctx); err != nil {
				return r.result, err
			}
		}
	}
	if r.batcher.Len() > 0 {
		if err := r.flush(ctx); err != nil {
			return r.result, err
		}
	}
	return r.result, nil
}

// CheckRange validates an inclusive range for PurgeRange.
func CheckRange(lower, upper snowflake.ID) error {
	if lower == 0 || upper < lower {
		return usageErrorf("invalid range %d..%d", lower, upper)
	}
	if upper-lower >= MaxRangeSpan {
		return usageErrorf("range of %d messages exceeds %d", uint64(upper-lower)+1, MaxRangeSpan)
	}
	return nil
}

// PurgeRange deletes every ID of the inclusive range [lower, upper] except
// the excluded ones, without reading history first. Senders are unknown, so
// Affected stays empty.
func (e *Executor) PurgeRange(ctx context.Context, channelID, lower, upper snowflake.ID, excluded []snowflake.ID) (Result, error) {
	if err := CheckRange(lower, upper); err != nil {
		return Result{Affected: SenderSet{}}, err
	}
	r := newRun(e, channelID)
	// Iterate by offset; id++ would wrap at the top of the ID space.
	span := uint64(upper - lower)
	for i := uint64(0); i <= span; i++ {
		id := lower + snowflake.ID(i)
		if slices.Contains(excluded, id) {
			continue
		}
		if r.batcher.Add(MessageRef{ID: id}) {
			if err := r.flush(ctx); err != nil {
				return r.result, err
			}
		}
	}
	if r.batcher.Len() > 0 {
		if err := r.flush(ctx); err != nil {
			return r.result, err
		}
	}
	return r.result, nil
}

type run struct {
	*Executor
	channelID snowflake.ID
	batcher   *Batcher
	result    Result
	resume    snowflake.ID
	calls     int
}

func newRun(e *Executor, channelID snowflake.ID) *run {
	return &run{
		Executor:  e,
		channelID: channelID,
		batcher:   NewBatcher(e.batchSize),
		result:    Result{Affected: SenderSet{}},
	}
}

func (r *run) flush(ctx context.Context) error {
	batch := r.batcher.Take()
	r.calls++
	err := r.deleter.DeleteMessages(ctx, r.channelID, batch.IDs)
	r.recorder.ObserveBatch(batch.Len(), err)
	if err != nil {
		r.logger.Error("error while running a bulk delete",
			slog.Any("channel.id", r.channelID),
			slog.Int("batch", r.calls),
			slog.Int("size", batch.Len()),
			tint.Err(err),
		)
		return r.fail(fmt.Errorf("failed to delete batch %d: %w", r.calls, err))
	}
	r.result.Deleted += batch.Len()
	for _, sender := range batch.Senders {
		if sender != 0 {
			r.result.Affected.Add(sender)
		}
	}
	r.resume = batch.IDs[batch.Len()-1]
	r.logger.Debug("purged batch",
		slog.Any("channel.id", r.channelID),
		slog.Int("batch", r.calls),
		slog.Int("size", batch.Len()),
		slog.Int("total", r.result.Deleted),
	)
	return nil
}

func (r *run) fail(err error) error {
	return &PurgeError{
		Result: r.result,
		Resume: r.resume,
		Err:    err,
	}
}

package purge

import (
	"context"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	batches int
	purges  []AuditEvent
}

func (r *countingRecorder) ObserveBatch(int, error) { r.batches++ }
func (r *countingRecorder) ObservePurge(event AuditEvent, _ Result, _ error) {
	r.purges = append(r.purges, event)
}

func newTestService(src *memorySource, del Deleter, audit *memoryAudit, opts ...Option) *Service {
	opts = append([]Option{
		WithAudit(audit),
		WithClock(func() time.Time { return testNow }),
		WithSelfID(1),
	}, opts...)
	return NewService(src, del, opts...)
}

func TestService_PurgeAudits(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 30, 1, 2)}
	del := &recordingDeleter{}
	audit := &memoryAudit{}
	rec := &countingRecorder{}
	svc := newTestService(src, del, audit, WithRecorder(rec))

	result, err := svc.Purge(context.Background(), 7, Bounds{Lower: 10}, FilterSpec{Type: TypeText})
	require.NoError(t, err)
	assert.Equal(t, 20, result.Deleted)

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, EventPurge, entry.Event)
	assert.Equal(t, snowflake.ID(7), entry.ChannelID)
	assert.Equal(t, []snowflake.ID{1, 2}, entry.Affected)
	assert.Equal(t, 20, entry.Deleted)
	assert.Equal(t, "text", entry.Metadata["filter_type"])
	assert.Equal(t, 1, rec.batches)
	assert.Equal(t, []AuditEvent{EventPurge}, rec.purges)
}

func TestService_PurgeSelf(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 30, 1, 2, 3)}
	del := &recordingDeleter{}
	audit := &memoryAudit{}
	svc := newTestService(src, del, audit)

	result, err := svc.Purge(context.Background(), 7, Bounds{}, FilterSpec{SelfOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 10, result.Deleted)
	assert.Equal(t, NewSenderSet(1), result.Affected)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, EventPurgeSelf, audit.entries[0].Event)
}

func TestService_NoMatchesIsNotAudited(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 5, 3)}
	audit := &memoryAudit{}
	svc := newTestService(src, &recordingDeleter{}, audit)

	result, err := svc.Purge(context.Background(), 7, Bounds{}, FilterSpec{SelfOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Deleted)
	assert.Empty(t, audit.entries)
}

func TestService_AuditFailureIsIgnored(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 5)}
	audit := &memoryAudit{err: errBoom}
	svc := newTestService(src, &recordingDeleter{}, audit)

	result, err := svc.Purge(context.Background(), 7, Bounds{}, FilterSpec{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Deleted)
}

func TestService_PartialFailureIsAudited(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 150)}
	del := &recordingDeleter{failOn: 2}
	audit := &memoryAudit{}
	svc := newTestService(src, del, audit)

	result, err := svc.Purge(context.Background(), 7, Bounds{}, FilterSpec{})
	var perr *PurgeError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 99, result.Deleted)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, 99, audit.entries[0].Deleted)
}

func TestService_PurgeInvalidBounds(t *testing.T) {
	svc := newTestService(&memorySource{}, &recordingDeleter{}, &memoryAudit{})
	_, err := svc.Purge(context.Background(), 7, Bounds{Lower: 10, Upper: 10}, FilterSpec{})
	assert.ErrorIs(t, err, ErrUsage)
}

func TestService_Clear(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 200)}
	del := &recordingDeleter{}
	audit := &memoryAudit{}
	svc := newTestService(src, del, audit)

	result, err := svc.Clear(context.Background(), 7, 0, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, result.Deleted)
	assert.Equal(t, []int{50}, del.sizes())
	require.Len(t, audit.entries, 1)
	assert.Equal(t, EventClear, audit.entries[0].Event)
	assert.Equal(t, 50, audit.entries[0].Metadata["quick_clear"])
}

func TestService_PurgeRange(t *testing.T) {
	del := &recordingDeleter{}
	audit := &memoryAudit{}
	svc := newTestService(&memorySource{}, del, audit)

	result, err := svc.PurgeRange(context.Background(), 7, 1000, 1149)
	require.NoError(t, err)
	assert.Equal(t, 150, result.Deleted)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "range", audit.entries[0].Metadata["mode"])
}

func TestService_DeleteSingle(t *testing.T) {
	del := &recordingDeleter{}
	audit := &memoryAudit{}
	svc := newTestService(&memorySource{}, del, audit)

	require.NoError(t, svc.DeleteSingle(context.Background(), 7, 42, 3))
	assert.Equal(t, []snowflake.ID{42}, del.singles)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, EventDelete, audit.entries[0].Event)
	assert.Equal(t, []snowflake.ID{3}, audit.entries[0].Affected)
}

func TestService_StatsIdempotent(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 250, 1, 2, 3, 4)}
	svc := newTestService(src, &recordingDeleter{}, &memoryAudit{})

	first, err := svc.Stats(context.Background(), 7, Bounds{Lower: 50})
	require.NoError(t, err)
	second, err := svc.Stats(context.Background(), 7, Bounds{Lower: 50})
	require.NoError(t, err)

	assert.Equal(t, Stats{UniqueSenders: 4, Messages: 200}, first)
	assert.Equal(t, first, second)
}

func TestService_StatsError(t *testing.T) {
	src := &memorySource{failAt: 1}
	svc := newTestService(src, &recordingDeleter{}, &memoryAudit{})
	_, err := svc.Stats(context.Background(), 7, Bounds{})
	assert.ErrorIs(t, err, errBoom)
}

func TestService_ConfirmLifecycle(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 40, 1, 2)}
	del := &recordingDeleter{}
	svc := newTestService(src, del, &memoryAudit{})

	require.NoError(t, svc.RequestConfirmation(7, 5, FilterSpec{Senders: NewSenderSet(2)}, Bounds{Lower: 20}))
	assert.True(t, svc.Cancel(7))
	assert.Empty(t, del.sizes())
	_, pending := svc.Sessions().Pending(7)
	assert.False(t, pending)

	require.NoError(t, svc.RequestConfirmation(7, 5, FilterSpec{Senders: NewSenderSet(2)}, Bounds{Lower: 20}))
	result, ok, err := svc.Confirm(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10, result.Deleted)
	assert.Equal(t, NewSenderSet(2), result.Affected)
	_, pending = svc.Sessions().Pending(7)
	assert.False(t, pending)

	_, ok, err = svc.Confirm(context.Background(), 7)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, svc.Cancel(7))
}

func TestService_ConfirmUsesLatestRequest(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 40, 1, 2)}
	del := &recordingDeleter{}
	svc := newTestService(src, del, &memoryAudit{})

	svc.RequestConfirmation(7, 5, FilterSpec{}, Bounds{})
	svc.RequestConfirmation(7, 5, FilterSpec{Senders: NewSenderSet(1)}, Bounds{Lower: 30})

	result, ok, err := svc.Confirm(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, result.Deleted)
	assert.Equal(t, []snowflake.ID{31, 33, 35, 37, 39}, del.deleted())
}

func TestService_ConfirmAppliesExclusions(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 10)}
	del := &recordingDeleter{}
	svc := newTestService(src, del, &memoryAudit{})

	svc.RequestConfirmation(7, 5, FilterSpec{}, Bounds{Upper: 10})
	_, err := svc.Sessions().ExcludeMessage(7, 4)
	require.NoError(t, err)

	result, ok, err := svc.Confirm(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 9, result.Deleted)
	assert.NotContains(t, del.deleted(), snowflake.ID(4))
}

func TestService_ConfirmRange(t *testing.T) {
	del := &recordingDeleter{}
	audit := &memoryAudit{}
	svc := newTestService(&memorySource{}, del, audit)

	require.NoError(t, svc.RequestRangeConfirmation(7, 5, 1000, 1149))
	p, ok := svc.Sessions().Pending(7)
	require.True(t, ok)
	assert.True(t, p.Range)
	assert.Empty(t, del.sizes())

	_, err := svc.Sessions().ExcludeMessage(7, 1000)
	require.NoError(t, err)
	_, err = svc.Sessions().ExcludeMessage(7, 999)
	assert.ErrorIs(t, err, ErrUsage)

	result, ok, err := svc.Confirm(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 149, result.Deleted)
	assert.NotContains(t, del.deleted(), snowflake.ID(1000))
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "range", audit.entries[0].Metadata["mode"])
	assert.Equal(t, 1, audit.entries[0].Metadata["excluded"])
}

func TestService_RequestRangeConfirmationInvalid(t *testing.T) {
	svc := newTestService(&memorySource{}, &recordingDeleter{}, &memoryAudit{})
	assert.ErrorIs(t, svc.RequestRangeConfirmation(7, 5, 10, 5), ErrUsage)
	_, ok := svc.Sessions().Pending(7)
	assert.False(t, ok)
}

// While a confirmed purge deletes, the channel answers lookups at once and
// refuses a second confirm.
func TestService_ConfirmDoesNotBlockChannel(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 10)}
	del := newGatedDeleter()
	svc := newTestService(src, del, &memoryAudit{})
	require.NoError(t, svc.RequestConfirmation(7, 5, FilterSpec{}, Bounds{}))

	confirmed := make(chan Result)
	go func() {
		result, _, _ := svc.Confirm(context.Background(), 7)
		confirmed <- result
	}()
	<-del.entered

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, pending := svc.Sessions().Pending(7)
		assert.False(t, pending)
		assert.True(t, svc.Sessions().Running(7))
		_, ok, err := svc.Confirm(context.Background(), 7)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrBusy)
		assert.ErrorIs(t, svc.RequestConfirmation(7, 5, FilterSpec{}, Bounds{}), ErrBusy)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("channel was blocked by the running purge")
	}
	close(del.release)
	assert.Equal(t, 10, (<-confirmed).Deleted)
	assert.False(t, svc.Sessions().Running(7))
}

func TestService_CheckAnchor(t *testing.T) {
	svc := newTestService(&memorySource{}, &recordingDeleter{}, &memoryAudit{}, WithMaxAge(14*24*time.Hour))

	fresh := snowflake.New(testNow.Add(-time.Hour))
	stale := snowflake.New(testNow.Add(-15 * 24 * time.Hour))
	assert.NoError(t, svc.CheckAnchor(fresh))
	assert.ErrorIs(t, svc.CheckAnchor(stale), ErrUsage)

	unlimited := newTestService(&memorySource{}, &recordingDeleter{}, &memoryAudit{})
	assert.NoError(t, unlimited.CheckAnchor(stale))
}

package purge

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

var errBoom = errors.New("boom")

// memorySource serves messages from a slice, in pages.
type memorySource struct {
	mu       sync.Mutex
	messages []MessageRef
	fetches  int
	failAt   int // fail on this fetch (1-based), 0 = never
}

func (m *memorySource) FetchMessages(_ context.Context, _ snowflake.ID, after snowflake.ID, limit int) ([]MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.failAt > 0 && m.fetches == m.failAt {
		return nil, errBoom
	}
	var page []MessageRef
	for _, msg := range m.messages {
		if msg.ID > after {
			page = append(page, msg)
		}
	}
	slices.SortFunc(page, func(a, b MessageRef) int { return cmp.Compare(a.ID, b.ID) })
	if len(page) > limit {
		page = page[:limit]
	}
	// Serve newest first, the way Discord does.
	slices.Reverse(page)
	return page, nil
}

// recordingDeleter records every delete call.
type recordingDeleter struct {
	mu      sync.Mutex
	batches [][]snowflake.ID
	singles []snowflake.ID
	failOn  int // fail the n-th batch call (1-based), 0 = never
	calls   int
}

func (d *recordingDeleter) DeleteMessages(_ context.Context, _ snowflake.ID, ids []snowflake.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failOn > 0 && d.calls == d.failOn {
		return errBoom
	}
	d.batches = append(d.batches, slices.Clone(ids))
	return nil
}

func (d *recordingDeleter) DeleteMessage(_ context.Context, _ snowflake.ID, id snowflake.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.singles = append(d.singles, id)
	return nil
}

func (d *recordingDeleter) deleted() []snowflake.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []snowflake.ID
	for _, b := range d.batches {
		ids = append(ids, b...)
	}
	return ids
}

func (d *recordingDeleter) sizes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	sizes := make([]int, 0, len(d.batches))
	for _, b := range d.batches {
		sizes = append(sizes, len(b))
	}
	return sizes
}

// gatedDeleter holds its first batch until release is closed.
type gatedDeleter struct {
	recordingDeleter
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedDeleter() *gatedDeleter {
	return &gatedDeleter{entered: make(chan struct{}), release: make(chan struct{})}
}

func (d *gatedDeleter) DeleteMessages(ctx context.Context, channelID snowflake.ID, ids []snowflake.ID) error {
	d.once.Do(func() { close(d.entered) })
	<-d.release
	return d.recordingDeleter.DeleteMessages(ctx, channelID, ids)
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (a *memoryAudit) Log(_ context.Context, entry AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return a.err
}

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

// textMessages builds messages with IDs from..to inclusive, sender cycling
// over senders.
func textMessages(from, to int, senders ...snowflake.ID) []MessageRef {
	if len(senders) == 0 {
		senders = []snowflake.ID{1}
	}
	msgs := make([]MessageRef, 0, to-from+1)
	for i := from; i <= to; i++ {
		msgs = append(msgs, MessageRef{
			ID:        snowflake.ID(i),
			SenderID:  senders[(i-from)%len(senders)],
			CreatedAt: testNow.Add(-time.Minute),
			Content:   ContentText,
		})
	}
	return msgs
}

func ids(msgs []MessageRef) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

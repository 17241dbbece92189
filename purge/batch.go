package purge

import "github.com/disgoorg/snowflake/v2"

const (
	// DefaultBatchSize stays one below the 100 IDs Discord accepts per bulk delete.
	DefaultBatchSize = 99
	MaxBatchSize     = 100
)

// Batch is a group of messages deleted with one call.
type Batch struct {
	IDs     []snowflake.ID
	Senders []snowflake.ID
}

func (b Batch) Len() int {
	return len(b.IDs)
}

// Batcher buffers selected messages until size of them are collected.
type Batcher struct {
	size    int
	pending Batch
}

func NewBatcher(size int) *Batcher {
	if size < 1 {
		size = DefaultBatchSize
	}
	return &Batcher{
		size: size,
		pending: Batch{
			IDs:     make([]snowflake.ID, 0, size),
			Senders: make([]snowflake.ID, 0, size),
		},
	}
}

// Add buffers msg and reports whether the batch is full and must be flushed.
func (b *Batcher) Add(msg MessageRef) bool {
	b.pending.IDs = append(b.pending.IDs, msg.ID)
	b.pending.Senders = append(b.pending.Senders, msg.SenderID)
	return len(b.pending.IDs) >= b.size
}

// Take returns the buffered batch and starts a new one.
func (b *Batcher) Take() Batch {
	batch := b.pending
	b.pending = Batch{
		IDs:     make([]snowflake.ID, 0, b.size),
		Senders: make([]snowflake.ID, 0, b.size),
	}
	return batch
}

func (b *Batcher) Len() int {
	return len(b.pending.IDs)
}

package purge

import (
	"cmp"
	"context"
	"iter"
	"slices"

	"github.com/disgoorg/snowflake/v2"
)

// PageSize is how many messages the walker asks a Source for at once.
const PageSize = 100

// Source fetches messages newer than after, at most limit of them. The order of
// the returned page does not matter; an empty page means there is nothing newer.
type Source interface {
	FetchMessages(ctx context.Context, channelID, after snowflake.ID, limit int) ([]MessageRef, error)
}

// Bounds delimits a range of messages: Lower is exclusive, Upper is inclusive
// and zero means open-ended.
type Bounds struct {
	Lower snowflake.ID
	Upper snowflake.ID
}

func (b Bounds) contains(id snowflake.ID) bool {
	return id > b.Lower && (b.Upper == 0 || id <= b.Upper)
}

// Walk yields the messages of bounds oldest to newest. A fetch error is yielded
// once and ends the sequence, as does cancellation of ctx.
func Walk(ctx context.Context, src Source, channelID snowflake.ID, bounds Bounds) iter.Seq2[MessageRef, error] {
	return func(yield func(MessageRef, error) bool) {
		after := bounds.Lower
		for {
			if err := ctx.Err(); err != nil {
				yield(MessageRef{}, err)
				return
			}
			page, err := src.FetchMessages(ctx, channelID, after, PageSize)
			if err != nil {
				yield(MessageRef{}, err)
				return
			}
			if len(page) == 0 {
				return
			}
			slices.SortFunc(page, func(a, b MessageRef) int {
				return cmp.Compare(a.ID, b.ID)
			})
			last := after
			for _, msg := range page {
				if msg.ID <= after {
					continue
				}
				if !bounds.contains(msg.ID) {
					return
				}
				if err := ctx.Err(); err != nil {
					yield(MessageRef{}, err)
					return
				}
				if !yield(msg, nil) {
					return
				}
				after = msg.ID
			}
			if after == last {
				return
			}
		}
	}
}

// Take stops seq after n messages.
func Take(seq iter.Seq2[MessageRef, error], n int) iter.Seq2[MessageRef, error] {
	return func(yield func(MessageRef, error) bool) {
		if n <= 0 {
			return
		}
		taken := 0
		for msg, err := range seq {
			if !yield(msg, err) || err != nil {
				return
			}
			taken++
			if taken >= n {
				return
			}
		}
	}
}

package purge

import (
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// ContentType is the single classification a message gets when the transport
// converts it into a MessageRef.
type ContentType int

const (
	ContentNone ContentType = iota
	ContentText
	ContentPhoto
	ContentVideo
	ContentAudio
	ContentVoice
	ContentSticker
	ContentGIF
	ContentDocument
)

// IsMedia reports whether the content is any kind of attachment.
func (c ContentType) IsMedia() bool {
	return c >= ContentPhoto
}

func (c ContentType) String() string {
	switch c {
	case ContentText:
		return "text"
	case ContentPhoto:
		return "photo"
	case ContentVideo:
		return "video"
	case ContentAudio:
		return "audio"
	case ContentVoice:
		return "voice"
	case ContentSticker:
		return "sticker"
	case ContentGIF:
		return "gif"
	case ContentDocument:
		return "document"
	}
	return "none"
}

// MessageRef is the projection of a remote message the engine works with.
type MessageRef struct {
	ID        snowflake.ID
	SenderID  snowflake.ID
	CreatedAt time.Time
	Content   ContentType
}

// SenderSet is a set of account IDs.
type SenderSet map[snowflake.ID]struct{}

func NewSenderSet(ids ...snowflake.ID) SenderSet {
	s := make(SenderSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s SenderSet) Add(id snowflake.ID) {
	s[id] = struct{}{}
}

func (s SenderSet) Has(id snowflake.ID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the IDs in ascending order.
func (s SenderSet) Sorted() []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

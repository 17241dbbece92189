package purge

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// TypeTag restricts a purge to one content classification.
type TypeTag string

const (
	TypeAny      TypeTag = ""
	TypeText     TypeTag = "text"
	TypeMedia    TypeTag = "media"
	TypePhoto    TypeTag = "photo"
	TypeVideo    TypeTag = "video"
	TypeAudio    TypeTag = "audio"
	TypeVoice    TypeTag = "voice"
	TypeSticker  TypeTag = "sticker"
	TypeGIF      TypeTag = "gif"
	TypeDocument TypeTag = "document"
)

var typeTags = map[TypeTag]ContentType{
	TypePhoto:    ContentPhoto,
	TypeVideo:    ContentVideo,
	TypeAudio:    ContentAudio,
	TypeVoice:    ContentVoice,
	TypeSticker:  ContentSticker,
	TypeGIF:      ContentGIF,
	TypeDocument: ContentDocument,
}

// ParseTypeTag returns the tag named by s, if s is one.
func ParseTypeTag(s string) (TypeTag, bool) {
	tag := TypeTag(s)
	if tag == TypeText || tag == TypeMedia {
		return tag, true
	}
	_, ok := typeTags[tag]
	return tag, ok
}

// FilterSpec describes which messages of a range get deleted. The zero value
// matches everything.
type FilterSpec struct {
	Senders  SenderSet
	Window   time.Duration
	Type     TypeTag
	SelfOnly bool
	Excluded []snowflake.ID
}

// IsZero reports whether the filter selects every message.
func (s FilterSpec) IsZero() bool {
	return len(s.Senders) == 0 && s.Window == 0 && s.Type == TypeAny && !s.SelfOnly && len(s.Excluded) == 0
}

// Env is what the predicate needs besides the filter.
type Env struct {
	Now  time.Time
	Self snowflake.ID
}

// Matches reports whether msg is selected by spec.
func Matches(msg MessageRef, spec FilterSpec, env Env) bool {
	if len(spec.Senders) > 0 && !spec.Senders.Has(msg.SenderID) {
		return false
	}
	if spec.SelfOnly && msg.SenderID != env.Self {
		return false
	}
	if spec.Window > 0 && msg.CreatedAt.Before(env.Now.Add(-spec.Window)) {
		return false
	}
	if spec.Type != TypeAny && !matchesType(msg, spec.Type) {
		return false
	}
	for _, id := range spec.Excluded {
		if id == msg.ID {
			return false
		}
	}
	return true
}

func matchesType(msg MessageRef, tag TypeTag) bool {
	switch tag {
	case TypeText:
		return msg.Content == ContentText
	case TypeMedia:
		return msg.Content.IsMedia()
	}
	want, ok := typeTags[tag]
	return ok && msg.Content == want
}

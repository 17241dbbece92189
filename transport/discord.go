// Package transport connects the purge engine to Discord's REST API.
package transport

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"

	"selective-purge/command"
	"selective-purge/purge"
)

const embedTypeGIFV discord.EmbedType = "gifv"

// Client is the part of rest.Rest the transport needs.
type Client interface {
	GetMessages(channelID snowflake.ID, around snowflake.ID, before snowflake.ID, after snowflake.ID, limit int, opts ...rest.RequestOpt) ([]discord.Message, error)
	DeleteMessage(channelID snowflake.ID, messageID snowflake.ID, opts ...rest.RequestOpt) error
	BulkDeleteMessages(channelID snowflake.ID, messageIDs []snowflake.ID, opts ...rest.RequestOpt) error
	SearchMembers(guildID snowflake.ID, query string, limit int, opts ...rest.RequestOpt) ([]discord.Member, error)
}

// Discord reads and deletes channel messages through the REST API.
type Discord struct {
	client Client
}

func NewDiscord(client Client) *Discord {
	return &Discord{client: client}
}

func (d *Discord) FetchMessages(ctx context.Context, channelID, after snowflake.ID, limit int) ([]purge.MessageRef, error) {
	if limit > purge.PageSize {
		limit = purge.PageSize
	}
	messages, err := d.client.GetMessages(channelID, 0, 0, after, limit, rest.WithCtx(ctx))
	if err != nil {
		return nil, classify(err)
	}
	refs := make([]purge.MessageRef, 0, len(messages))
	for _, m := range messages {
		refs = append(refs, MessageRef(m))
	}
	return refs, nil
}

// DeleteMessages bulk deletes ids. Bulk deletes need at least two IDs, so a
// single ID goes through DeleteMessage.
func (d *Discord) DeleteMessages(ctx context.Context, channelID snowflake.ID, messageIDs []snowflake.ID) error {
	switch len(messageIDs) {
	case 0:
		return nil
	case 1:
		return d.DeleteMessage(ctx, channelID, messageIDs[0])
	}
	if err := d.client.BulkDeleteMessages(channelID, messageIDs, rest.WithCtx(ctx)); err != nil {
		return classify(err)
	}
	return nil
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	if err := d.client.DeleteMessage(channelID, messageID, rest.WithCtx(ctx)); err != nil {
		return classify(err)
	}
	return nil
}

// ResolveHandle accepts a user mention, a raw user ID or a name. Names are
// searched among the guild's members and must match exactly.
func (d *Discord) ResolveHandle(ctx context.Context, guildID snowflake.ID, handle string) (command.Resolution, error) {
	handle = strings.TrimSpace(handle)
	if id, ok := parseMention(handle); ok {
		return command.Resolution{ID: id, Found: true}, nil
	}
	if id, err := snowflake.Parse(handle); err == nil && id != 0 {
		return command.Resolution{ID: id, Found: true}, nil
	}

	name := strings.TrimPrefix(handle, "@")
	if guildID == 0 || name == "" {
		return command.Resolution{}, nil
	}
	members, err := d.client.SearchMembers(guildID, name, 10, rest.WithCtx(ctx))
	if err != nil {
		return command.Resolution{}, classify(err)
	}
	for _, m := range members {
		if memberNamed(m, name) {
			return command.Resolution{ID: m.User.ID, Found: true}, nil
		}
	}
	return command.Resolution{}, nil
}

func parseMention(s string) (snowflake.ID, bool) {
	if !strings.HasPrefix(s, "<@") || !strings.HasSuffix(s, ">") {
		return 0, false
	}
	raw := strings.TrimPrefix(strings.TrimSuffix(s[2:], ">"), "!")
	id, err := snowflake.Parse(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}

func memberNamed(m discord.Member, name string) bool {
	if strings.EqualFold(m.User.Username, name) {
		return true
	}
	if m.User.GlobalName != nil && strings.EqualFold(*m.User.GlobalName, name) {
		return true
	}
	return m.Nick != nil && strings.EqualFold(*m.Nick, name)
}

// MessageRef classifies a Discord message.
func MessageRef(m discord.Message) purge.MessageRef {
	return purge.MessageRef{
		ID:        m.ID,
		SenderID:  m.Author.ID,
		CreatedAt: m.CreatedAt,
		Content:   contentType(m),
	}
}

// contentType prefers a specific media kind over generic media over text.
func contentType(m discord.Message) purge.ContentType {
	if len(m.StickerItems) > 0 {
		return purge.ContentSticker
	}
	if m.Flags.Has(discord.MessageFlagIsVoiceMessage) {
		return purge.ContentVoice
	}
	if len(m.Attachments) > 0 {
		return attachmentType(m.Attachments[0])
	}
	for _, e := range m.Embeds {
		if e.Type == embedTypeGIFV {
			return purge.ContentGIF
		}
	}
	if m.Content != "" {
		return purge.ContentText
	}
	return purge.ContentNone
}

func attachmentType(a discord.Attachment) purge.ContentType {
	var mimeType string
	if a.ContentType != nil {
		mimeType = *a.ContentType
	} else {
		mimeType = mime.TypeByExtension(strings.ToLower(path.Ext(a.Filename)))
	}
	mimeType = strings.ToLower(mimeType)
	switch {
	case mimeType == "image/gif":
		return purge.ContentGIF
	case strings.HasPrefix(mimeType, "image/"):
		return purge.ContentPhoto
	case strings.HasPrefix(mimeType, "video/"):
		return purge.ContentVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return purge.ContentAudio
	}
	return purge.ContentDocument
}

// classify marks permission failures so callers can tell them apart.
func classify(err error) error {
	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", purge.ErrPermission, err)
		}
	}
	return err
}

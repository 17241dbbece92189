package handlers

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"
)

func (h *Handler) MiddlewareManageMessages() handler.Middleware {
	return func(next handler.Handler) handler.Handler {
		return func(event *handler.InteractionEvent) error {
			member := event.Member()
			if member == nil || !member.Permissions.Has(discord.PermissionManageMessages) {
				return event.CreateMessage(discord.NewMessageCreateBuilder().
					SetEphemeral(true).
					SetContent("You need the **Manage Messages** permission to purge messages.").
					Build())
			}
			return next(event)
		}
	}
}

func (h *Handler) MiddlewarePendingOwner() handler.Middleware {
	return func(next handler.Handler) handler.Handler {
		return func(event *handler.InteractionEvent) error {
			if refusal := h.ownerRefusal(event.Channel().ID(), event.User().ID); refusal != "" {
				return event.CreateMessage(discord.NewMessageCreateBuilder().
					SetEphemeral(true).
					SetContent(refusal).
					Build())
			}
			return next(event)
		}
	}
}

// ownerRefusal returns why userID may not act on the channel's pending purge,
// or an empty string if it may.
func (h *Handler) ownerRefusal(channelID, userID snowflake.ID) string {
	if h.service.Sessions().Running(channelID) {
		return "A purge is already running in this channel."
	}
	pending, ok := h.service.Sessions().Pending(channelID)
	if !ok {
		return "There is no purge waiting for confirmation."
	}
	if pending.UserID != userID {
		return "You cannot interact with purge confirmations of other users."
	}
	return ""
}

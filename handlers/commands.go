package handlers

import (
	"context"
	"log/slog"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"

	"selective-purge/command"
	"selective-purge/purge"
)

var Commands = []discord.ApplicationCommandCreate{
	discord.SlashCommandCreate{
		Name:        "purge",
		Description: "Purge messages starting at a message",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:        "start",
				Description: "ID or link of the oldest message to purge",
			},
			discord.ApplicationCommandOptionString{
				Name:        "filter",
				Description: "A user, self, a type (text, media, photo..), a time window (30m, 2h, 1d) or confirm/cancel/stats",
			},
			discord.ApplicationCommandOptionString{
				Name:        "end",
				Description: "ID or link of the newest message to purge",
			},
		},
	},
	discord.SlashCommandCreate{
		Name:        "purgeself",
		Description: "Purge my own messages starting at a message",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:        "start",
				Description: "ID or link of the oldest message to purge",
				Required:    true,
			},
			discord.ApplicationCommandOptionString{
				Name:        "end",
				Description: "ID or link of the newest message to purge",
			},
		},
	},
	discord.SlashCommandCreate{
		Name:        "clear",
		Description: "Quickly delete a limited number of messages starting at a message",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:        "start",
				Description: "ID or link of the oldest message to delete",
				Required:    true,
			},
		},
	},
	discord.SlashCommandCreate{
		Name:        "purgelog",
		Description: "Show the latest purges of this channel",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionInt{
				Name:        "count",
				Description: "How many entries to show (1-25)",
			},
		},
	},
	discord.MessageCommandCreate{Name: "Purge from here"},
	discord.MessageCommandCreate{Name: "Delete message"},
	discord.MessageCommandCreate{Name: "Exclude message"},
	discord.MessageCommandCreate{Name: "Include message"},
}

// History reads back audit entries.
type History interface {
	Recent(ctx context.Context, channelID snowflake.ID, limit int) ([]purge.AuditEntry, error)
}

func NewHandler(dispatcher *command.Dispatcher, service *purge.Service, history History, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := handler.New()
	handlers := &Handler{
		dispatcher: dispatcher,
		service:    service,
		history:    history,
		logger:     logger.With(slog.String("component", "handlers")),
		Router:     mux,
	}

	mux.Group(func(r handler.Router) {
		r.Use(handlers.MiddlewareManageMessages())

		r.SlashCommand("/purge", handlers.HandlePurge)
		r.SlashCommand("/purgeself", handlers.HandlePurgeSelf)
		r.SlashCommand("/clear", handlers.HandleClear)
		r.SlashCommand("/purgelog", handlers.HandlePurgeLog)

		r.MessageCommand("/Purge from here", handlers.HandlePurgeFrom)
		r.Modal("/purge-from/{anchor}", handlers.HandlePurgeModal)
		r.MessageCommand("/Delete message", handlers.HandleDelete)

		r.Group(func(r handler.Router) {
			r.Use(handlers.MiddlewarePendingOwner())

			r.Route("/purge", func(r handler.Router) {
				r.ButtonComponent("/confirm", handlers.HandleConfirm)
				r.ButtonComponent("/cancel", handlers.HandleCancel)
			})

			r.MessageCommand("/Exclude message", handlers.HandleExclude)
			r.MessageCommand("/Include message", handlers.HandleInclude)
		})
	})
	return handlers
}

type Handler struct {
	dispatcher *command.Dispatcher
	service    *purge.Service
	history    History
	logger     *slog.Logger
	handler.Router
}

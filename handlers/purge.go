package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"

	"selective-purge/command"
)

// Interaction tokens expire after 15 minutes.
const followupTimeout = 14 * time.Minute

const (
	defaultLogCount = 10
	maxLogCount     = 25
)

type dispatchFunc func(context.Context, command.Request) (command.Outcome, error)

func newRequest(guildID *snowflake.ID, channelID, userID snowflake.ID) command.Request {
	req := command.Request{ChannelID: channelID, UserID: userID}
	if guildID != nil {
		req.GuildID = *guildID
	}
	return req
}

func isConfirmOrCancel(token string) bool {
	switch command.Control(strings.ToLower(strings.TrimSpace(token))) {
	case command.ControlConfirm, command.ControlCancel:
		return true
	}
	return false
}

func confirmationRow(b *discord.MessageCreateBuilder) *discord.MessageCreateBuilder {
	return b.AddActionRow(
		discord.NewPrimaryButton("Run purge", "/purge/confirm"),
		discord.NewDangerButton("Cancel purge", "/purge/cancel"))
}

func ephemeral(content string) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetEphemeral(true).
		SetContent(content).
		Build()
}

func (h *Handler) HandlePurge(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	req := newRequest(event.GuildID(), event.Channel().ID(), event.User().ID)
	req.Token = data.String("filter")
	if isConfirmOrCancel(req.Token) {
		if refusal := h.ownerRefusal(req.ChannelID, req.UserID); refusal != "" {
			return event.CreateMessage(ephemeral(refusal))
		}
	}
	var err error
	if req.Anchor, err = parseMessageRef(data.String("start")); err != nil {
		return event.CreateMessage(ephemeral(describeError(err)))
	}
	if req.Upper, err = parseMessageRef(data.String("end")); err != nil {
		return event.CreateMessage(ephemeral(describeError(err)))
	}
	return h.dispatchLater(event, req, h.dispatcher.Dispatch)
}

func (h *Handler) HandlePurgeSelf(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	req := newRequest(event.GuildID(), event.Channel().ID(), event.User().ID)
	req.Token = "self"
	var err error
	if req.Anchor, err = parseMessageRef(data.String("start")); err != nil {
		return event.CreateMessage(ephemeral(describeError(err)))
	}
	if req.Upper, err = parseMessageRef(data.String("end")); err != nil {
		return event.CreateMessage(ephemeral(describeError(err)))
	}
	return h.dispatchLater(event, req, h.dispatcher.Dispatch)
}

func (h *Handler) HandleClear(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	req := newRequest(event.GuildID(), event.Channel().ID(), event.User().ID)
	var err error
	if req.Anchor, err = parseMessageRef(data.String("start")); err != nil {
		return event.CreateMessage(ephemeral(describeError(err)))
	}
	return h.dispatchLater(event, req, h.dispatcher.Clear)
}

func (h *Handler) HandlePurgeFrom(data discord.MessageCommandInteractionData, event *handler.CommandEvent) error {
	return event.Modal(discord.NewModalCreateBuilder().
		SetTitle("Purge from this message").
		SetCustomID("/purge-from/" + data.TargetID().String()).
		AddActionRow(
			discord.NewShortTextInput("filter", "User, self, type or time window (optional)").
				WithRequired(false).
				WithMaxLength(100)).
		Build())
}

func (h *Handler) HandlePurgeModal(event *handler.ModalEvent) error {
	req := newRequest(event.GuildID(), event.Channel().ID(), event.User().ID)
	anchor, err := snowflake.Parse(event.Vars["anchor"])
	if err != nil {
		return event.CreateMessage(ephemeral("That message cannot be purged from."))
	}
	req.Anchor = anchor
	req.Token = event.Data.Text("filter")
	if isConfirmOrCancel(req.Token) {
		if refusal := h.ownerRefusal(req.ChannelID, req.UserID); refusal != "" {
			return event.CreateMessage(ephemeral(refusal))
		}
	}
	if err := event.DeferCreateMessage(false); err != nil {
		return err
	}
	go h.respond(req, h.dispatcher.Dispatch, func(m discord.MessageCreate) error {
		_, err := event.CreateFollowupMessage(m)
		return err
	})
	return nil
}

// dispatchLater acknowledges the command and posts the outcome once run returns.
func (h *Handler) dispatchLater(event *handler.CommandEvent, req command.Request, run dispatchFunc) error {
	if err := event.DeferCreateMessage(false); err != nil {
		return err
	}
	go h.respond(req, run, func(m discord.MessageCreate) error {
		_, err := event.CreateFollowupMessage(m)
		return err
	})
	return nil
}

func (h *Handler) respond(req command.Request, run dispatchFunc, followup func(discord.MessageCreate) error) {
	ctx, cancel := context.WithTimeout(context.Background(), followupTimeout)
	defer cancel()
	out, err := run(ctx, req)
	if err := followup(h.outcomeMessage(req, out, err)); err != nil {
		h.logger.Error("error while responding with a purge outcome", slog.Any("channel.id", req.ChannelID), tint.Err(err))
	}
}

func (h *Handler) outcomeMessage(req command.Request, out command.Outcome, err error) discord.MessageCreate {
	messageBuilder := discord.NewMessageCreateBuilder()
	if err != nil {
		return messageBuilder.SetContent(describeError(err)).Build()
	}
	content := describeOutcome(out)
	if out.Action != command.ActionAwaitingConfirmation {
		return messageBuilder.SetContent(content).Build()
	}
	if req.GuildID != 0 {
		content += fmt.Sprintf("\nStarting at [this message](%s).", discord.MessageURL(req.GuildID, req.ChannelID, req.Anchor))
	}
	return confirmationRow(messageBuilder.SetContent(content)).Build()
}

func (h *Handler) HandleConfirm(_ discord.ButtonInteractionData, event *handler.ComponentEvent) error {
	channelID := event.Channel().ID()
	if err := event.UpdateMessage(discord.NewMessageUpdateBuilder().
		SetContent("Running purge..").
		ClearContainerComponents().
		Build()); err != nil {
		return err
	}
	req := command.Request{ChannelID: channelID, UserID: event.User().ID}
	go h.respond(req, func(ctx context.Context, req command.Request) (command.Outcome, error) {
		return h.dispatcher.Confirm(ctx, req.ChannelID)
	}, func(m discord.MessageCreate) error {
		_, err := event.CreateFollowupMessage(m)
		return err
	})
	return nil
}

func (h *Handler) HandleCancel(_ discord.ButtonInteractionData, event *handler.ComponentEvent) error {
	out := h.dispatcher.Cancel(event.Channel().ID())
	return event.UpdateMessage(discord.NewMessageUpdateBuilder().
		SetContent(describeOutcome(out)).
		ClearContainerComponents().
		Build())
}

func (h *Handler) HandleExclude(data discord.MessageCommandInteractionData, event *handler.CommandEvent) error {
	messageBuilder := discord.NewMessageCreateBuilder()
	jumpURL := data.TargetMessage().JumpURL()
	ok, err := h.service.Sessions().ExcludeMessage(event.Channel().ID(), data.TargetID())
	if err != nil {
		return event.CreateMessage(confirmationRow(messageBuilder.SetContent(describeError(err))).Build())
	}
	if !ok {
		return event.CreateMessage(confirmationRow(messageBuilder.
			SetContentf("[This message](%s) is already excluded.", jumpURL)).
			Build())
	}
	return event.CreateMessage(confirmationRow(messageBuilder.
		SetContentf("Alright, [this message](%s) has been excluded. %s", jumpURL, h.excludedCount(event.Channel().ID()))).
		Build())
}

func (h *Handler) HandleInclude(data discord.MessageCommandInteractionData, event *handler.CommandEvent) error {
	messageBuilder := discord.NewMessageCreateBuilder()
	ok, err := h.service.Sessions().IncludeMessage(event.Channel().ID(), data.TargetID())
	if err != nil {
		return event.CreateMessage(confirmationRow(messageBuilder.SetContent(describeError(err))).Build())
	}
	if !ok {
		return event.CreateMessage(confirmationRow(messageBuilder.
			SetContent("Messages have to be excluded to include them back.")).
			Build())
	}
	return event.CreateMessage(confirmationRow(messageBuilder.
		SetContentf("Alright, [this message](%s) will not be excluded. %s", data.TargetMessage().JumpURL(), h.excludedCount(event.Channel().ID()))).
		Build())
}

func (h *Handler) excludedCount(channelID snowflake.ID) string {
	pending, _ := h.service.Sessions().Pending(channelID)
	return describeExcluded(len(pending.Excluded()))
}

func (h *Handler) HandleDelete(data discord.MessageCommandInteractionData, event *handler.CommandEvent) error {
	target := data.TargetMessage()
	if err := h.service.DeleteSingle(context.Background(), event.Channel().ID(), target.ID, target.Author.ID); err != nil {
		return event.CreateMessage(ephemeral(describeError(err)))
	}
	return event.CreateMessage(ephemeral("Message has been deleted."))
}

func (h *Handler) HandlePurgeLog(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	if h.history == nil {
		return event.CreateMessage(ephemeral("The purge log is disabled."))
	}
	count, ok := data.OptInt("count")
	if !ok || count < 1 {
		count = defaultLogCount
	}
	count = min(count, maxLogCount)
	entries, err := h.history.Recent(context.Background(), event.Channel().ID(), count)
	if err != nil {
		h.logger.Error("error while reading the purge log", slog.Any("channel.id", event.Channel().ID()), tint.Err(err))
		return event.CreateMessage(ephemeral(describeError(err)))
	}
	return event.CreateMessage(ephemeral(describeAudit(entries)))
}

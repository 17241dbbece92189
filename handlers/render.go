package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"selective-purge/command"
	"selective-purge/purge"
)

func formatWindow(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	}
	return fmt.Sprintf("%dm", d/time.Minute)
}

func describeSpec(spec purge.FilterSpec) string {
	var b strings.Builder
	if spec.Type != purge.TypeAny {
		fmt.Fprintf(&b, "**%s** messages", spec.Type)
	} else {
		b.WriteString("all messages")
	}
	switch {
	case spec.SelfOnly:
		b.WriteString(" sent by me")
	case len(spec.Senders) > 0:
		mentions := make([]string, 0, len(spec.Senders))
		for _, id := range spec.Senders.Sorted() {
			mentions = append(mentions, fmt.Sprintf("<@%d>", id))
		}
		b.WriteString(" sent by " + strings.Join(mentions, ", "))
	}
	if spec.Window > 0 {
		fmt.Fprintf(&b, " from the last **%s**", formatWindow(spec.Window))
	}
	return b.String()
}

func describeOutcome(out command.Outcome) string {
	var content string
	switch out.Action {
	case command.ActionPurged, command.ActionConfirmed:
		content = fmt.Sprintf("All messages have been purged. Total count: **%d**", out.Result.Deleted)
		if n := len(out.Result.Affected); n > 0 {
			content += fmt.Sprintf(" from **%d** users", n)
		}
		content += "."
	case command.ActionAwaitingConfirmation:
		content = fmt.Sprintf("About to purge %s. Do you want to run it?", describeSpec(out.Spec))
	case command.ActionCancelled:
		content = "Alright, purge has been canceled."
	case command.ActionNothingPending:
		content = "There is no purge waiting for confirmation."
	case command.ActionStats:
		content = fmt.Sprintf("There are **%d** messages from **%d** users in this range.", out.Stats.Messages, out.Stats.UniqueSenders)
	}
	if out.Unresolved != "" {
		content += fmt.Sprintf("\nCould not find **%s**, so messages of every user are included.", out.Unresolved)
	}
	return content
}

func describeError(err error) string {
	if errors.Is(err, purge.ErrPermission) {
		return "I am missing permissions to read or delete messages in this channel."
	}
	if errors.Is(err, purge.ErrBusy) {
		return "A purge is already running in this channel."
	}
	if errors.Is(err, purge.ErrUsage) {
		return strings.TrimPrefix(err.Error(), purge.ErrUsage.Error()+": ") + "."
	}
	var pe *purge.PurgeError
	if errors.As(err, &pe) {
		content := fmt.Sprintf("There was an error while purging: **%s**.", pe.Err.Error())
		if pe.Partial() {
			content += fmt.Sprintf(" Messages purged before the error: **%d**.", pe.Result.Deleted)
		}
		return content
	}
	return fmt.Sprintf("There was an error while purging: **%s**.", err.Error())
}

func describeExcluded(n int) string {
	switch n {
	case 0:
		return "No messages are excluded."
	case 1:
		return "1 message is excluded."
	}
	return fmt.Sprintf("%d messages are excluded.", n)
}

func describeAudit(entries []purge.AuditEntry) string {
	if len(entries) == 0 {
		return "No purges have been logged in this channel."
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "<t:%d:R> **%s**: %d messages", e.At.Unix(), e.Event, e.Deleted)
		if n := len(e.Affected); n > 0 {
			fmt.Fprintf(&b, " from %d users", n)
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// parseMessageRef accepts a message ID or a message link.
func parseMessageRef(s string) (snowflake.ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	id, err := snowflake.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a message ID or link", purge.ErrUsage, s)
	}
	return id, nil
}

// Package command turns the argument of a purge command into a filter or a
// control action and routes it to the purge service.
package command

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"selective-purge/purge"
)

// Control is a command word that manages a pending purge instead of
// describing one.
type Control string

const (
	ControlNone    Control = ""
	ControlConfirm Control = "confirm"
	ControlCancel  Control = "cancel"
	ControlStats   Control = "stats"
)

const keywordSelf = "self"

var (
	durationPattern = regexp.MustCompile(`^(\d+)([mhd])$`)
	// Anything shaped like a duration that durationPattern rejects is a typo,
	// not a handle.
	durationLike = regexp.MustCompile(`^\d+[a-z]+$`)
)

// Resolution is the outcome of looking up a handle.
type Resolution struct {
	ID    snowflake.ID
	Found bool
}

// Resolver looks up accounts by mention, ID or name.
type Resolver interface {
	ResolveHandle(ctx context.Context, guildID snowflake.ID, handle string) (Resolution, error)
}

// Parsed is the interpretation of one token.
type Parsed struct {
	Control Control
	Spec    purge.FilterSpec
	// Unresolved is set when the token was taken for a handle that did not
	// resolve; ResolveErr holds the lookup failure, if any.
	Unresolved string
	ResolveErr error
}

// ParseDuration parses <integer><m|h|d>.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return 0, fmt.Errorf("%w: invalid time format %q, use 5m, 2h or 1d", purge.ErrUsage, s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: invalid time format %q, use 5m, 2h or 1d", purge.ErrUsage, s)
	}
	unit := time.Minute
	switch m[2] {
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}

// Parse interprets token. Control words come first, then durations, then the
// fixed keywords, then handle resolution; the first match wins. An empty token
// is the empty filter.
func Parse(ctx context.Context, token string, guildID snowflake.ID, resolver Resolver) (Parsed, error) {
	token = strings.TrimSpace(token)
	lower := strings.ToLower(token)
	switch Control(lower) {
	case ControlConfirm, ControlCancel, ControlStats:
		return Parsed{Control: Control(lower)}, nil
	}
	if token == "" {
		return Parsed{}, nil
	}

	if durationLike.MatchString(lower) {
		window, err := ParseDuration(lower)
		if err != nil {
			return Parsed{}, err
		}
		return Parsed{Spec: purge.FilterSpec{Window: window}}, nil
	}

	if lower == keywordSelf {
		return Parsed{Spec: purge.FilterSpec{SelfOnly: true}}, nil
	}
	if tag, ok := purge.ParseTypeTag(lower); ok {
		return Parsed{Spec: purge.FilterSpec{Type: tag}}, nil
	}

	if resolver == nil {
		return Parsed{Unresolved: token}, nil
	}
	res, err := resolver.ResolveHandle(ctx, guildID, token)
	if err != nil || !res.Found {
		return Parsed{Unresolved: token, ResolveErr: err}, nil
	}
	return Parsed{Spec: purge.FilterSpec{Senders: purge.NewSenderSet(res.ID)}}, nil
}

package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"

	"selective-purge/purge"
)

// DefaultClearLimit is how many messages a quick clear removes at most.
const DefaultClearLimit = 50

type Action int

const (
	ActionPurged Action = iota
	ActionAwaitingConfirmation
	ActionConfirmed
	ActionCancelled
	ActionNothingPending
	ActionStats
)

// Request is one purge command.
type Request struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	UserID    snowflake.ID
	Token     string
	// Anchor is the oldest message to purge, inclusive. Zero if the command
	// did not reference one.
	Anchor snowflake.ID
	// Upper optionally stops the purge at this message, inclusive.
	Upper snowflake.ID
}

func (r Request) bounds() purge.Bounds {
	return purge.Bounds{Lower: r.Anchor - 1, Upper: r.Upper}
}

// Outcome describes what a dispatched request did.
type Outcome struct {
	Action Action
	Result purge.Result
	Stats  purge.Stats
	Spec   purge.FilterSpec
	Bounds purge.Bounds
	// Unresolved holds a handle that was ignored because it did not resolve.
	Unresolved string
}

// Dispatcher routes parsed commands to a purge.Service.
type Dispatcher struct {
	service  *purge.Service
	resolver Resolver
	logger   *slog.Logger

	requireConfirmation bool
	strictHandles       bool
	rangeOnly           bool
	clearLimit          int
}

type Option func(*Dispatcher)

// WithConfirmation makes purges wait for an explicit confirm.
func WithConfirmation(enabled bool) Option {
	return func(d *Dispatcher) { d.requireConfirmation = enabled }
}

// WithStrictHandles turns unresolvable handles into usage errors instead of
// purging without a sender filter.
func WithStrictHandles(enabled bool) Option {
	return func(d *Dispatcher) { d.strictHandles = enabled }
}

// WithRangeOnly deletes by ID range without reading history. Filters are not
// available in this mode.
func WithRangeOnly(enabled bool) Option {
	return func(d *Dispatcher) { d.rangeOnly = enabled }
}

func WithClearLimit(limit int) Option {
	return func(d *Dispatcher) { d.clearLimit = limit }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func NewDispatcher(service *purge.Service, resolver Resolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		service:    service,
		resolver:   resolver,
		logger:     slog.Default(),
		clearLimit: DefaultClearLimit,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(slog.String("component", "dispatcher"))
	return d
}

// Dispatch parses req.Token and carries it out.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Outcome, error) {
	parsed, err := Parse(ctx, req.Token, req.GuildID, d.resolver)
	if err != nil {
		return Outcome{}, err
	}

	switch parsed.Control {
	case ControlConfirm:
		return d.Confirm(ctx, req.ChannelID)
	case ControlCancel:
		return d.Cancel(req.ChannelID), nil
	case ControlStats:
		if err := d.checkAnchor(req); err != nil {
			return Outcome{}, err
		}
		stats, err := d.service.Stats(ctx, req.ChannelID, req.bounds())
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: ActionStats, Stats: stats, Bounds: req.bounds()}, nil
	}

	if err := d.checkAnchor(req); err != nil {
		return Outcome{}, err
	}
	out := Outcome{Spec: parsed.Spec, Bounds: req.bounds()}

	if d.rangeOnly {
		return d.dispatchRange(ctx, req, parsed, out)
	}

	if parsed.Unresolved != "" {
		if d.strictHandles {
			if parsed.ResolveErr != nil {
				return Outcome{}, fmt.Errorf("%w: could not look up %q: %v", purge.ErrUsage, parsed.Unresolved, parsed.ResolveErr)
			}
			return Outcome{}, fmt.Errorf("%w: unknown user %q", purge.ErrUsage, parsed.Unresolved)
		}
		attrs := []any{slog.String("handle", parsed.Unresolved), slog.Any("channel.id", req.ChannelID)}
		if parsed.ResolveErr != nil {
			attrs = append(attrs, tint.Err(parsed.ResolveErr))
		}
		d.logger.Warn("handle did not resolve, purging without sender filter", attrs...)
		out.Unresolved = parsed.Unresolved
	}

	if d.requireConfirmation {
		if err := d.service.RequestConfirmation(req.ChannelID, req.UserID, parsed.Spec, out.Bounds); err != nil {
			return Outcome{}, err
		}
		out.Action = ActionAwaitingConfirmation
		return out, nil
	}

	result, err := d.service.Purge(ctx, req.ChannelID, out.Bounds, parsed.Spec)
	out.Action = ActionPurged
	out.Result = result
	return out, err
}

// dispatchRange deletes IDs without reading history, so a filter cannot be
// honored and is refused.
func (d *Dispatcher) dispatchRange(ctx context.Context, req Request, parsed Parsed, out Outcome) (Outcome, error) {
	if !parsed.Spec.IsZero() || parsed.Unresolved != "" {
		return Outcome{}, fmt.Errorf("%w: filters are not available when purging by range", purge.ErrUsage)
	}
	if req.Upper == 0 {
		return Outcome{}, fmt.Errorf("%w: an end message is required", purge.ErrUsage)
	}
	if d.requireConfirmation {
		if err := d.service.RequestRangeConfirmation(req.ChannelID, req.UserID, req.Anchor, req.Upper); err != nil {
			return Outcome{}, err
		}
		out.Action = ActionAwaitingConfirmation
		return out, nil
	}
	result, err := d.service.PurgeRange(ctx, req.ChannelID, req.Anchor, req.Upper)
	out.Action = ActionPurged
	out.Result = result
	return out, err
}

// Confirm runs the channel's pending purge.
func (d *Dispatcher) Confirm(ctx context.Context, channelID snowflake.ID) (Outcome, error) {
	result, ok, err := d.service.Confirm(ctx, channelID)
	if !ok {
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: ActionNothingPending}, nil
	}
	return Outcome{Action: ActionConfirmed, Result: result}, err
}

// Cancel drops the channel's pending purge.
func (d *Dispatcher) Cancel(channelID snowflake.ID) Outcome {
	if !d.service.Cancel(channelID) {
		return Outcome{Action: ActionNothingPending}
	}
	return Outcome{Action: ActionCancelled}
}

// Clear deletes up to the clear limit of messages from req.Anchor on, without
// filters or confirmation.
func (d *Dispatcher) Clear(ctx context.Context, req Request) (Outcome, error) {
	if err := d.checkAnchor(req); err != nil {
		return Outcome{}, err
	}
	result, err := d.service.Clear(ctx, req.ChannelID, req.Anchor-1, d.clearLimit)
	return Outcome{Action: ActionPurged, Result: result, Bounds: purge.Bounds{Lower: req.Anchor - 1}}, err
}

func (d *Dispatcher) checkAnchor(req Request) error {
	if req.Anchor == 0 {
		return fmt.Errorf("%w: choose the message to start from", purge.ErrUsage)
	}
	if req.Upper != 0 && req.Upper < req.Anchor {
		return fmt.Errorf("%w: the end message must be newer than the start message", purge.ErrUsage)
	}
	return d.service.CheckAnchor(req.Anchor)
}

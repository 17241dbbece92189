package purge

import (
	"slices"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

type slot struct {
	mu      sync.Mutex
	pending *Pending
	running bool
}

// Controller holds at most one Pending purge per channel. Every channel has
// its own lock, so channels never wait on each other. The lock is only held
// for bookkeeping; a confirmed purge runs without it and marks the channel
// busy until it returns.
type Controller struct {
	slots sync.Map // snowflake.ID -> *slot
}

func NewController() *Controller {
	return &Controller{}
}

func (c *Controller) slot(channelID snowflake.ID) *slot {
	if s, ok := c.slots.Load(channelID); ok {
		return s.(*slot)
	}
	s, _ := c.slots.LoadOrStore(channelID, &slot{})
	return s.(*slot)
}

// Pending returns a copy of the channel's pending purge.
func (c *Controller) Pending(channelID snowflake.ID) (Pending, bool) {
	s := c.slot(channelID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Pending{}, false
	}
	p := *s.pending
	p.exclude = slices.Clone(p.exclude)
	return p, true
}

// Running reports whether a confirmed purge is still executing in the channel.
func (c *Controller) Running(channelID snowflake.ID) bool {
	s := c.slot(channelID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Request stores p for the channel, replacing any earlier one. It reports
// whether something was replaced, and fails with ErrBusy while a purge runs.
func (c *Controller) Request(channelID snowflake.ID, p Pending) (bool, error) {
	s := c.slot(channelID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false, ErrBusy
	}
	replaced := s.pending != nil
	s.pending = &p
	return replaced, nil
}

// Cancel drops the channel's pending purge. It returns false if there was none.
func (c *Controller) Cancel(channelID snowflake.ID) bool {
	s := c.slot(channelID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return false
	}
	s.pending = nil
	return true
}

// Confirm removes the channel's pending purge and runs fn with it. The channel
// stays busy until fn returns. It returns false without calling fn if nothing
// is pending, and ErrBusy if another confirmed purge is still running.
func (c *Controller) Confirm(channelID snowflake.ID, fn func(Pending) error) (bool, error) {
	s := c.slot(channelID)
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return false, ErrBusy
	}
	if s.pending == nil {
		s.mu.Unlock()
		return false, nil
	}
	p := *s.pending
	s.pending = nil
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()
	return true, fn(p)
}

// ExcludeMessage takes messageID out of the pending purge. It returns false if
// the message is already excluded.
func (c *Controller) ExcludeMessage(channelID, messageID snowflake.ID) (bool, error) {
	s := c.slot(channelID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false, ErrBusy
	}
	if s.pending == nil {
		return false, usageErrorf("there is no purge being set up")
	}
	if !s.pending.Bounds.contains(messageID) {
		return false, usageErrorf("message is out of the specified range")
	}
	if slices.Contains(s.pending.exclude, messageID) {
		return false, nil
	}
	s.pending.exclude = append(s.pending.exclude, messageID)
	return true, nil
}

// IncludeMessage puts an excluded message back into the pending purge. It
// returns false if the message was not excluded.
func (c *Controller) IncludeMessage(channelID, messageID snowflake.ID) (bool, error) {
	s := c.slot(channelID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false, ErrBusy
	}
	if s.pending == nil {
		return false, usageErrorf("there is no purge being set up")
	}
	i := slices.Index(s.pending.exclude, messageID)
	if i < 0 {
		return false, nil
	}
	s.pending.exclude = slices.Delete(s.pending.exclude, i, i+1)
	return true, nil
}

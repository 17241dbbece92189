package purge

import (
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Pending is a purge waiting for its requester to confirm or cancel it.
type Pending struct {
	UserID    snowflake.ID
	Spec      FilterSpec
	Bounds    Bounds
	CreatedAt time.Time
	// Range deletes every ID of Bounds without reading history. Spec is
	// unused in this mode.
	Range bool

	exclude []snowflake.ID
}

// Excluded returns the messages the requester took out of the purge.
func (p *Pending) Excluded() []snowflake.ID {
	return slices.Clone(p.exclude)
}

// Resolved returns the filter to run, with exclusions applied.
func (p *Pending) Resolved() FilterSpec {
	spec := p.Spec
	spec.Excluded = append(slices.Clone(spec.Excluded), p.exclude...)
	return spec
}

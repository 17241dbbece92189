package purge

import (
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

var (
	// ErrUsage is returned when a request lacks required context, such as an
	// anchor message or a well-formed duration. Nothing was deleted.
	ErrUsage = errors.New("usage error")
	// ErrPermission is wrapped by transports when the acting account may not
	// read or delete messages in the channel.
	ErrPermission = errors.New("missing permissions")
	// ErrBusy is returned while a confirmed purge is still running in the
	// channel.
	ErrBusy = errors.New("purge already running")
)

// PurgeError is returned when a delete call fails mid-purge. Result holds what
// the batches before the failure removed.
type PurgeError struct {
	Result Result
	// Resume is the highest message ID confirmed deleted, usable as the lower
	// bound of a follow-up walk. Zero when no batch succeeded.
	Resume snowflake.ID
	Err    error
}

func (e *PurgeError) Error() string {
	return fmt.Sprintf("purge stopped after %d deleted messages: %v", e.Result.Deleted, e.Err)
}

func (e *PurgeError) Unwrap() error { return e.Err }

// Partial reports whether at least one batch went through before the failure.
func (e *PurgeError) Partial() bool {
	return e.Result.Deleted > 0
}

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// Package feeds assembles ranked, cursor-paginated feed pages:
// candidate fetch, scoring, seen-item filtering and pagination.
package feeds

import "errors"

// Error kinds surfaced by the feed service. Handlers map these to HTTP
// statuses; everything else is treated as internal.
var (
	// ErrInvalidArgument covers bad cursors, non-positive limits and
	// unknown feed kinds. Rejected before any store access.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound covers unknown viewers and referenced items.
	ErrNotFound = errors.New("not found")
)

package secstore

import serrors "github.com/mwantia/secstore/data/errors"

// Error kinds returned by the engine. Compare with errors.Is.
var (
	ErrBadPath     = serrors.ErrBadPath
	ErrNotFound    = serrors.ErrNotFound
	ErrNoSpace     = serrors.ErrNoSpace
	ErrNoMemory    = serrors.ErrNoMemory
	ErrOverflow    = serrors.ErrOverflow
	ErrUnavailable = serrors.ErrUnavailable
	ErrFault       = serrors.ErrFault
	ErrNotEmpty    = serrors.ErrNotEmpty
	ErrReadOnly    = serrors.ErrReadOnly
)

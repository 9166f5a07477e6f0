package sim

import "errors"

// Rejection and failure classes surfaced by the engine. The first four are
// expected conditions reported to the caller with no partial state change.
// ErrInvariant marks internal consistency failures that must never be
// swallowed; a step returning it has been aborted, not half-applied.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNoMarketData       = errors.New("no market data")
	ErrInsufficientMargin = errors.New("insufficient margin")
	ErrNotFound           = errors.New("not found")
	ErrInvariant          = errors.New("invariant violation")
)

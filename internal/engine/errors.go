package engine

import "errors"

// Configuration errors returned by registration. Registration is atomic:
// when one of these is returned nothing was registered.
var (
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrCapacity        = errors.New("capacity exceeded")
	ErrDuplicateButton = errors.New("button already registered")
	ErrUnknownButton   = errors.New("unknown button")
	ErrSamePair        = errors.New("pair buttons must differ")
	ErrDuplicatePair   = errors.New("pair already registered")
	ErrStaleHandle     = errors.New("stale or invalid handle")
)

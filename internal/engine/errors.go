package engine

import "errors"

// ErrInvalidRequest marks a calculation request that failed validation.
// No partial computation happens and no audit record is written for these.
var ErrInvalidRequest = errors.New("invalid calculation request")

package workflow

import "errors"

// ErrInvalidTransition is returned when a trigger is not permitted in the
// machine's current state
var ErrInvalidTransition = errors.New("invalid state transition")

package privilege

import "errors"

// ErrUnknownLevel is returned when Acquire is asked for a target that isn't
// registered in the Map.
var ErrUnknownLevel = errors.New("privilege: unknown target level")

// ErrMismatch is returned when, after walking the computed path, the
// device's prompt does not match the target level.
var ErrMismatch = errors.New("privilege: prompt did not match target level after walk")

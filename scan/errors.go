package scan

import (
	"github.com/pkg/errors"
)

// ErrSchemaViolation marks a remote record missing or mistyping a required
// attribute. Fatal for the whole scan: once the row shape is unreliable,
// silently skipping rows would corrupt result completeness.
var ErrSchemaViolation = errors.New("schema violation")

// ErrInvalidState marks misuse of the scan's open/next/close state
// machine by the caller. Always a programming error, never retried.
var ErrInvalidState = errors.New("invalid scan state")

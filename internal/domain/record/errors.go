package record

import (
	"errors"
	"fmt"
)

// Sentinel kinds for record validation. These allow errors.Is from callers.
var (
	ErrInvalidRecord   = errors.New("invalid record")
	ErrDuplicateID     = errors.New("duplicate record id")
	ErrScoreOutOfRange = errors.New("score out of range")
	ErrUnknownStatus   = errors.New("unknown status")
)

// StatusError reports a status value outside the known set.
type StatusError struct {
	Value string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownStatus, e.Value)
}

// Unwrap lets errors.Is match ErrUnknownStatus.
func (e *StatusError) Unwrap() error { return ErrUnknownStatus }

package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrAuthContextIncomplete indicates the caller identity was not resolved.
	ErrAuthContextIncomplete = errors.New("auth context incomplete")
)

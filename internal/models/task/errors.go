package task

import "errors"

var (
	ErrOverlapConflict      = errors.New("period overlaps another period")
	ErrInvalidTimeInput     = errors.New("invalid time input")
	ErrMissingActiveSession = errors.New("active session is missing")
	ErrCorruptedDateData    = errors.New("corrupted date data")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrNotFound             = errors.New("not found")
	ErrInvalidPart          = errors.New("invalid part")
)

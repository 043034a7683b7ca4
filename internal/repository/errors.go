package repository

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrAlreadyExists   = errors.New("record already exists")
	// ErrAlreadyRunning is returned when a write would leave two tasks in progress.
	ErrAlreadyRunning = errors.New("another task is already in progress")
)

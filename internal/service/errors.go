package service

import (
	"errors"
	"fmt"

	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"
	repo "repairTracker/internal/repository"
)

const (
	CodeNotFound          = "NOT_FOUND"
	CodeValidation        = "VALIDATION_ERROR"
	CodeOverlapConflict   = "OVERLAP_CONFLICT"
	CodeInvalidTimeInput  = "INVALID_TIME_INPUT"
	CodeHasActiveTasks    = "HAS_ACTIVE_TASKS"
	CodeDuplicateVIN      = "DUPLICATE_VIN"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeVersionConflict   = "VERSION_CONFLICT"
	CodeInProgress        = "IN_PROGRESS"
	CodeInternal          = "INTERNAL"
)

type RepoType string

const (
	ResourceTask    RepoType = "task"
	ResourceClient  RepoType = "client"
	ResourceVehicle RepoType = "vehicle"
	ResourceSession RepoType = "session"
	ResourcePeriod  RepoType = "period"
	ResourcePart    RepoType = "part"
)

// BusinessError is the only error kind handlers show to users: a stable code,
// a short title and a readable message.
type BusinessError struct {
	Code    string
	Title   string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{Key: key, Payload: payload}
}

func NewBusinessError(code, title, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Title:   title,
		Message: message,
		Details: make(map[string]any),
	}
	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}
	return busErr
}

func NewNotFound(resource RepoType, id string) *BusinessError {
	return &BusinessError{
		Code:    CodeNotFound,
		Title:   "Not found",
		Message: fmt.Sprintf("%s %s was not found", resource, id),
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    CodeValidation,
		Title:   "Invalid input",
		Message: fmt.Sprintf("Invalid value for field '%s': %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
	}
}

func NewHasActiveTasks(resource RepoType, id string, count int) *BusinessError {
	noun := "tasks"
	if count == 1 {
		noun = "task"
	}
	return &BusinessError{
		Code:    CodeHasActiveTasks,
		Title:   "Cannot delete",
		Message: fmt.Sprintf("This %s has %d active %s. Complete or delete them first.", resource, count, noun),
		Details: map[string]any{
			"resource": resource,
			"id":       id,
			"count":    count,
		},
	}
}

func NewDuplicateVIN(vin string, taskID string) *BusinessError {
	return &BusinessError{
		Code:    CodeDuplicateVIN,
		Title:   "Vehicle already in the shop",
		Message: fmt.Sprintf("VIN %s is attached to an active task", vin),
		Details: map[string]any{
			"vin":     vin,
			"task_id": taskID,
		},
	}
}

// classify turns errors from the domain packages and the repository into
// BusinessErrors. Unknown errors are returned unchanged.
func classify(err error, resource RepoType, id string) error {
	if err == nil {
		return nil
	}
	var busErr *BusinessError
	if errors.As(err, &busErr) {
		return busErr
	}
	wrap := func(code, title, message string) error {
		return &BusinessError{Code: code, Title: title, Message: message, Details: map[string]any{}, Err: err}
	}
	switch {
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, task.ErrNotFound):
		nf := NewNotFound(resource, id)
		nf.Err = err
		return nf
	case errors.Is(err, task.ErrOverlapConflict):
		return wrap(CodeOverlapConflict, "Time overlap", err.Error())
	case errors.Is(err, task.ErrInvalidTimeInput):
		return wrap(CodeInvalidTimeInput, "Invalid time", err.Error())
	case errors.Is(err, task.ErrInvalidTransition):
		return wrap(CodeInvalidTransition, "Action not allowed", err.Error())
	case errors.Is(err, task.ErrInvalidPart):
		return wrap(CodeValidation, "Invalid part", err.Error())
	case errors.Is(err, garage.ErrInvalidVIN):
		return wrap(CodeValidation, "Invalid VIN", err.Error())
	case errors.Is(err, repo.ErrVersionConflict), errors.Is(err, repo.ErrAlreadyRunning):
		return wrap(CodeVersionConflict, "Task changed", "The task was changed by someone else, reload and try again")
	}
	return err
}

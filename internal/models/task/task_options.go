package task

import (
	"time"

	"github.com/google/uuid"
)

// TaskOption mutates a task in place; a batch of options forms one patch.
type TaskOption func(*Task)

// Patch is applied by the repository to the stored task with the given id,
// only if the stored version still equals Version.
type Patch struct {
	ID      uuid.UUID
	Version int
	Options []TaskOption
}

func NewPatch(t *Task, options ...TaskOption) Patch {
	return Patch{ID: t.ID, Version: t.Version, Options: options}
}

func (p Patch) Apply(t *Task) {
	for _, opt := range p.Options {
		if opt != nil {
			opt(t)
		}
	}
}

func WithStatus(status Status) TaskOption {
	if status == "" {
		return nil
	}
	return func(t *Task) {
		t.Status = status
	}
}

func WithStartTime(start *time.Time) TaskOption {
	return func(t *Task) {
		if start == nil {
			t.StartTime = nil
			return
		}
		st := *start
		t.StartTime = &st
	}
}

func WithActiveSession(id *uuid.UUID) TaskOption {
	return func(t *Task) {
		if id == nil {
			t.ActiveSessionID = nil
			return
		}
		sid := *id
		t.ActiveSessionID = &sid
	}
}

func WithTotalTime(seconds int64) TaskOption {
	return func(t *Task) {
		t.TotalTime = seconds
	}
}

func WithNeedsFollowUp(v bool) TaskOption {
	return func(t *Task) {
		t.NeedsFollowUp = v
	}
}

func WithSessions(sessions []*WorkSession) TaskOption {
	copied := CloneSessions(sessions)
	return func(t *Task) {
		t.Sessions = CloneSessions(copied)
	}
}

func WithSnapshot(customerName, vin string) TaskOption {
	return func(t *Task) {
		t.CustomerName = customerName
		t.CarVIN = vin
	}
}

// WithTimerState copies every field the timer engine touches from src.
func WithTimerState(src *Task) TaskOption {
	return func(t *Task) {
		t.Status = src.Status
		WithStartTime(src.StartTime)(t)
		WithActiveSession(src.ActiveSessionID)(t)
		WithTotalTime(src.TotalTime)(t)
		WithNeedsFollowUp(src.NeedsFollowUp)(t)
		t.Sessions = CloneSessions(src.Sessions)
	}
}

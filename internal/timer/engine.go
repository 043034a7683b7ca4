// Package timer holds the task lifecycle state machine: starting, pausing,
// resuming, stopping and completing a task, and the work periods those
// transitions close. All operations are synchronous mutations of one
// in-memory task; persistence and the single-active-timer rule across tasks
// belong to the service layer.
package timer

import (
	"fmt"
	"strings"
	"time"

	"repairTracker/internal/models/task"

	"github.com/google/uuid"
)

type Engine struct {
	newID func() uuid.UUID
}

func NewEngine(newID func() uuid.UUID) *Engine {
	if newID == nil {
		newID = uuid.New
	}
	return &Engine{newID: newID}
}

// Result reports what a transition did besides changing the status.
type Result struct {
	From           task.Status
	To             task.Status
	ClosedPeriod   *task.WorkPeriod
	Elapsed        int64
	SessionCreated bool
	// SessionHealed is set when ActiveSessionID pointed to a session that no longer exists.
	SessionHealed bool
	// MissingStart is set when a running task had no start anchor; elapsed is then 0.
	MissingStart bool
}

type Completion struct {
	Description   string
	Parts         []task.Part
	NeedsFollowUp bool
}

// Start moves a pending task to in-progress.
func (e *Engine) Start(t *task.Task, now time.Time) (Result, error) {
	return e.begin(t, now, task.StatusPending)
}

// Resume moves a paused task back to in-progress, reusing the active session.
func (e *Engine) Resume(t *task.Task, now time.Time) (Result, error) {
	return e.begin(t, now, task.StatusPaused)
}

// Restart reopens a completed task; a fresh session is opened because completion
// cleared the active session.
func (e *Engine) Restart(t *task.Task, now time.Time) (Result, error) {
	return e.begin(t, now, task.StatusCompleted)
}

// Run starts, resumes or restarts depending on the current status.
func (e *Engine) Run(t *task.Task, now time.Time) (Result, error) {
	return e.begin(t, now, task.StatusPending, task.StatusPaused, task.StatusCompleted)
}

func (e *Engine) begin(t *task.Task, now time.Time, from ...task.Status) (Result, error) {
	res := Result{From: t.Status, To: task.StatusInProgress}
	if !statusIn(t.Status, from) {
		return res, transitionError(t.Status, task.StatusInProgress)
	}

	_, created, healed := e.ensureActiveSession(t, now)
	res.SessionCreated = created
	res.SessionHealed = healed

	start := now
	t.StartTime = &start
	t.Status = task.StatusInProgress
	return res, nil
}

// Pause closes the running period and moves the task to paused.
func (e *Engine) Pause(t *task.Task, now time.Time) (Result, error) {
	res := Result{From: t.Status, To: task.StatusPaused}
	if t.Status != task.StatusInProgress {
		return res, transitionError(t.Status, task.StatusPaused)
	}
	e.closeRunningPeriod(t, now, &res)
	t.Status = task.StatusPaused
	return res, nil
}

// Stop closes the running period, if any, ahead of completion. A stopped task
// that is never completed stays paused.
func (e *Engine) Stop(t *task.Task, now time.Time) (Result, error) {
	res := Result{From: t.Status, To: task.StatusPaused}
	switch t.Status {
	case task.StatusInProgress:
		e.closeRunningPeriod(t, now, &res)
		t.Status = task.StatusPaused
	case task.StatusPaused:
	default:
		return res, transitionError(t.Status, task.StatusCompleted)
	}
	return res, nil
}

// Complete attaches the description and parts to the active session (or the latest
// session with periods) and closes the task's timing.
func (e *Engine) Complete(t *task.Task, in Completion, now time.Time) (Result, error) {
	res := Result{From: t.Status, To: task.StatusCompleted}
	if t.Status != task.StatusInProgress && t.Status != task.StatusPaused {
		return res, transitionError(t.Status, task.StatusCompleted)
	}
	for _, p := range in.Parts {
		if err := ValidatePart(p); err != nil {
			return res, err
		}
	}

	if t.Status == task.StatusInProgress {
		e.closeRunningPeriod(t, now, &res)
	}

	target := t.ActiveSession()
	if target == nil {
		target = t.LastSessionWithPeriods()
	}
	if target == nil {
		target = task.NewSession(e.newID(), now)
		t.Sessions = append(t.Sessions, target)
		res.SessionCreated = true
	}

	if desc := strings.TrimSpace(in.Description); desc != "" {
		target.Description = desc
	}
	target.Parts = append(target.Parts, in.Parts...)
	done := now
	target.CompletedAt = &done

	t.Status = task.StatusCompleted
	t.StartTime = nil
	t.ActiveSessionID = nil
	t.NeedsFollowUp = in.NeedsFollowUp
	t.TotalTime = t.SumPeriodSeconds()
	return res, nil
}

func (e *Engine) MarkBilled(t *task.Task) (Result, error) {
	return settle(t, task.StatusCompleted, task.StatusBilled)
}

func (e *Engine) MarkPaid(t *task.Task) (Result, error) {
	return settle(t, task.StatusBilled, task.StatusPaid)
}

func settle(t *task.Task, from, to task.Status) (Result, error) {
	res := Result{From: t.Status, To: to}
	if t.Status != from {
		return res, transitionError(t.Status, to)
	}
	t.Status = to
	return res, nil
}

// closeRunningPeriod appends [startTime, now] to the active session and adds its
// floored length to TotalTime. Without a start anchor nothing is appended.
func (e *Engine) closeRunningPeriod(t *task.Task, now time.Time, res *Result) {
	if t.StartTime == nil {
		res.MissingStart = true
		return
	}

	session, created, healed := e.ensureActiveSession(t, *t.StartTime)
	res.SessionCreated = res.SessionCreated || created
	res.SessionHealed = res.SessionHealed || healed

	period := task.NewPeriod(e.newID(), *t.StartTime, now)
	session.Periods = append(session.Periods, period)
	session.SortPeriods()

	t.TotalTime += period.Duration
	t.StartTime = nil
	res.ClosedPeriod = period
	res.Elapsed = period.Duration
}

// ensureActiveSession returns the session receiving periods, creating one lazily.
func (e *Engine) ensureActiveSession(t *task.Task, now time.Time) (*task.WorkSession, bool, bool) {
	if s := t.ActiveSession(); s != nil {
		return s, false, false
	}
	healed := t.ActiveSessionID != nil

	s := task.NewSession(e.newID(), now)
	t.Sessions = append(t.Sessions, s)
	id := s.ID
	t.ActiveSessionID = &id
	return s, true, healed
}

func ValidatePart(p task.Part) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is empty", task.ErrInvalidPart)
	}
	if p.Quantity < 1 {
		return fmt.Errorf("%w: quantity %d is below 1", task.ErrInvalidPart, p.Quantity)
	}
	if p.Price < 0 || p.Price != p.Price {
		return fmt.Errorf("%w: price must be a non-negative number", task.ErrInvalidPart)
	}
	return nil
}

func statusIn(s task.Status, set []task.Status) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func transitionError(from, to task.Status) error {
	return fmt.Errorf("%w: %s -> %s", task.ErrInvalidTransition, from, to)
}

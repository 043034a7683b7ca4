package task

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusBilled     Status = "billed"
	StatusPaid       Status = "paid"
)

// IsActive reports whether work on the task is still open: pending, running or paused.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusPaused
}

// IsCompleted reports whether the task reached completion (completed, billed or paid).
func (s Status) IsCompleted() bool {
	return s == StatusCompleted || s == StatusBilled || s == StatusPaid
}

// IsSettled reports whether the task has been invoiced.
func (s Status) IsSettled() bool {
	return s == StatusBilled || s == StatusPaid
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusPaused, StatusCompleted, StatusBilled, StatusPaid:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusPaused, StatusCompleted},
	StatusPaused:     {StatusInProgress, StatusCompleted},
	StatusCompleted:  {StatusInProgress, StatusBilled},
	StatusBilled:     {StatusPaid},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Task struct {
	ID              uuid.UUID      `json:"id" yaml:"id" db:"id"`
	ClientID        uuid.UUID      `json:"client_id" yaml:"client_id" db:"client_id"`
	VehicleID       uuid.UUID      `json:"vehicle_id" yaml:"vehicle_id" db:"vehicle_id"`
	CustomerName    string         `json:"customer_name" yaml:"customer_name" db:"customer_name"`
	CarVIN          string         `json:"car_vin" yaml:"car_vin" db:"car_vin"`
	Status          Status         `json:"status" yaml:"status" db:"status"`
	TotalTime       int64          `json:"total_time" yaml:"total_time" db:"total_time"`
	NeedsFollowUp   bool           `json:"needs_follow_up" yaml:"needs_follow_up" db:"needs_follow_up"`
	Sessions        []*WorkSession `json:"sessions" yaml:"sessions" db:"sessions"`
	CreatedAt       time.Time      `json:"created_at" yaml:"created_at" db:"created_at"`
	StartTime       *time.Time     `json:"start_time,omitempty" yaml:"start_time,omitempty" db:"start_time"`
	ActiveSessionID *uuid.UUID     `json:"active_session_id,omitempty" yaml:"active_session_id,omitempty" db:"active_session_id"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty" yaml:"updated_at,omitempty" db:"updated_at"`
	Version         int            `json:"version" yaml:"version" db:"version"`
}

type WorkSession struct {
	ID          uuid.UUID     `json:"id" yaml:"id"`
	CreatedAt   time.Time     `json:"created_at" yaml:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Periods     []*WorkPeriod `json:"periods" yaml:"periods"`
	Parts       []Part        `json:"parts" yaml:"parts"`
}

// WorkPeriod is one closed timed interval. Duration is always derived from the bounds.
type WorkPeriod struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	StartTime time.Time `json:"start_time" yaml:"start_time"`
	EndTime   time.Time `json:"end_time" yaml:"end_time"`
	Duration  int64     `json:"duration" yaml:"duration"`
}

type Part struct {
	Name        string  `json:"name" yaml:"name"`
	Quantity    int     `json:"quantity" yaml:"quantity"`
	Price       float64 `json:"price" yaml:"price"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// ElapsedSeconds truncates the wall-clock difference to whole seconds and never goes negative.
func ElapsedSeconds(start, end time.Time) int64 {
	if !end.After(start) {
		return 0
	}
	return int64(end.Sub(start) / time.Second)
}

func NewPeriod(id uuid.UUID, start, end time.Time) *WorkPeriod {
	p := &WorkPeriod{ID: id, StartTime: start, EndTime: end}
	p.Recompute()
	return p
}

// Recompute restores start <= end and re-derives Duration from the bounds.
func (p *WorkPeriod) Recompute() {
	if p.EndTime.Before(p.StartTime) {
		p.EndTime = p.StartTime
	}
	p.Duration = ElapsedSeconds(p.StartTime, p.EndTime)
}

func NewSession(id uuid.UUID, createdAt time.Time) *WorkSession {
	return &WorkSession{
		ID:        id,
		CreatedAt: createdAt,
		Periods:   []*WorkPeriod{},
		Parts:     []Part{},
	}
}

func (s *WorkSession) Seconds() int64 {
	var total int64
	for _, p := range s.Periods {
		total += p.Duration
	}
	return total
}

// IsBlank reports a session with nothing worth keeping: no periods, no parts, no description.
func (s *WorkSession) IsBlank() bool {
	return len(s.Periods) == 0 && len(s.Parts) == 0 && strings.TrimSpace(s.Description) == ""
}

func (s *WorkSession) Period(id uuid.UUID) (*WorkPeriod, int) {
	for i, p := range s.Periods {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

func (s *WorkSession) SortPeriods() {
	sort.SliceStable(s.Periods, func(i, j int) bool {
		return s.Periods[i].StartTime.Before(s.Periods[j].StartTime)
	})
}

func (t *Task) Session(id uuid.UUID) *WorkSession {
	for _, s := range t.Sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ActiveSession returns the session currently receiving periods, if it still exists.
func (t *Task) ActiveSession() *WorkSession {
	if t.ActiveSessionID == nil {
		return nil
	}
	return t.Session(*t.ActiveSessionID)
}

// LastSessionWithPeriods returns the most recent session that holds at least one period.
func (t *Task) LastSessionWithPeriods() *WorkSession {
	for i := len(t.Sessions) - 1; i >= 0; i-- {
		if len(t.Sessions[i].Periods) > 0 {
			return t.Sessions[i]
		}
	}
	return nil
}

// LastClosedPeriod returns the period that ended most recently across all sessions.
func (t *Task) LastClosedPeriod() *WorkPeriod {
	var last *WorkPeriod
	for _, s := range t.Sessions {
		for _, p := range s.Periods {
			if last == nil || p.EndTime.After(last.EndTime) {
				last = p
			}
		}
	}
	return last
}

func (t *Task) SumPeriodSeconds() int64 {
	var total int64
	for _, s := range t.Sessions {
		total += s.Seconds()
	}
	return total
}

func (t *Task) IsRunning() bool {
	return t.Status == StatusInProgress
}

func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.StartTime != nil {
		st := *t.StartTime
		c.StartTime = &st
	}
	if t.ActiveSessionID != nil {
		id := *t.ActiveSessionID
		c.ActiveSessionID = &id
	}
	if t.UpdatedAt != nil {
		u := *t.UpdatedAt
		c.UpdatedAt = &u
	}
	c.Sessions = CloneSessions(t.Sessions)
	return &c
}

func CloneSessions(sessions []*WorkSession) []*WorkSession {
	out := make([]*WorkSession, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Clone())
	}
	return out
}

func (s *WorkSession) Clone() *WorkSession {
	c := *s
	if s.CompletedAt != nil {
		done := *s.CompletedAt
		c.CompletedAt = &done
	}
	c.Periods = make([]*WorkPeriod, 0, len(s.Periods))
	for _, p := range s.Periods {
		pc := *p
		c.Periods = append(c.Periods, &pc)
	}
	c.Parts = append([]Part{}, s.Parts...)
	return &c
}

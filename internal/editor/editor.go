// Package editor implements validated edits of a task's session list: period
// times and dates, adding and deleting periods, sessions and parts, and the
// save step that drops blank sessions and recomputes the task's total time.
//
// Rejected edits leave the session untouched and return an error wrapping one
// of the task package sentinels.
package editor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"repairTracker/internal/models/task"

	"github.com/google/uuid"
)

type Field string

const (
	FieldStart Field = "start"
	FieldEnd   Field = "end"
)

const (
	defaultStartHour = 9
	closingHour      = 18
	defaultLength    = time.Hour
)

type Editor struct {
	newID func() uuid.UUID
}

func New(newID func() uuid.UUID) *Editor {
	if newID == nil {
		newID = uuid.New
	}
	return &Editor{newID: newID}
}

// ParseClock parses "hh:mm" on a 24-hour clock.
func ParseClock(value string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q is not hh:mm", task.ErrInvalidTimeInput, value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour %q", task.ErrInvalidTimeInput, parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%w: minute %q", task.ErrInvalidTimeInput, parts[1])
	}
	return hour, minute, nil
}

// EditPeriodTime replaces the hour and minute of one bound, keeping its date.
func (e *Editor) EditPeriodTime(s *task.WorkSession, periodID uuid.UUID, field Field, hhmm string) error {
	p, _ := s.Period(periodID)
	if p == nil {
		return fmt.Errorf("period %s: %w", periodID, task.ErrNotFound)
	}
	hour, minute, err := ParseClock(hhmm)
	if err != nil {
		return err
	}

	start, end := p.StartTime, p.EndTime
	switch field {
	case FieldStart:
		start = atClock(start, hour, minute)
	case FieldEnd:
		end = atClock(end, hour, minute)
	default:
		return fmt.Errorf("%w: unknown field %q", task.ErrInvalidTimeInput, field)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end %s is before start %s", task.ErrInvalidTimeInput, end.Format("15:04"), start.Format("15:04"))
	}

	if other := conflictSameDay(s, p.ID, start, end); other != nil {
		return overlapError(other)
	}

	p.StartTime, p.EndTime = start, end
	p.Recompute()
	s.SortPeriods()
	return nil
}

// EditPeriodDate moves a period to another calendar day keeping both times of
// day and the day distance between start and end. No overlap check is made.
func (e *Editor) EditPeriodDate(s *task.WorkSession, periodID uuid.UUID, date time.Time) error {
	p, _ := s.Period(periodID)
	if p == nil {
		return fmt.Errorf("period %s: %w", periodID, task.ErrNotFound)
	}
	spanDays := daysBetween(p.StartTime, p.EndTime)

	p.StartTime = onDate(p.StartTime, date)
	p.EndTime = onDate(p.EndTime, date.AddDate(0, 0, spanDays))
	p.Recompute()
	s.SortPeriods()
	return nil
}

func (e *Editor) DeletePeriod(s *task.WorkSession, periodID uuid.UUID) error {
	_, i := s.Period(periodID)
	if i < 0 {
		return fmt.Errorf("period %s: %w", periodID, task.ErrNotFound)
	}
	s.Periods = append(s.Periods[:i], s.Periods[i+1:]...)
	return nil
}

func (e *Editor) DeleteSession(t *task.Task, sessionID uuid.UUID) error {
	for i, s := range t.Sessions {
		if s.ID == sessionID {
			t.Sessions = append(t.Sessions[:i], t.Sessions[i+1:]...)
			if t.ActiveSessionID != nil && *t.ActiveSessionID == sessionID {
				t.ActiveSessionID = nil
			}
			return nil
		}
	}
	return fmt.Errorf("session %s: %w", sessionID, task.ErrNotFound)
}

func (e *Editor) DeletePart(s *task.WorkSession, index int) error {
	if index < 0 || index >= len(s.Parts) {
		return fmt.Errorf("part #%d: %w", index, task.ErrNotFound)
	}
	s.Parts = append(s.Parts[:index], s.Parts[index+1:]...)
	return nil
}

func (e *Editor) AddPart(s *task.WorkSession, p task.Part) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || p.Quantity < 1 || p.Price < 0 || math.IsNaN(p.Price) {
		return fmt.Errorf("%w: name, quantity >= 1 and price >= 0 are required", task.ErrInvalidPart)
	}
	s.Parts = append(s.Parts, p)
	return nil
}

// UpdatePartQuantity ignores values below 1 and reports whether it applied the change.
func (e *Editor) UpdatePartQuantity(s *task.WorkSession, index, quantity int) bool {
	if index < 0 || index >= len(s.Parts) || quantity < 1 {
		return false
	}
	s.Parts[index].Quantity = quantity
	return true
}

// UpdatePartPrice ignores negative values and reports whether it applied the change.
func (e *Editor) UpdatePartPrice(s *task.WorkSession, index int, price float64) bool {
	if index < 0 || index >= len(s.Parts) || price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return false
	}
	s.Parts[index].Price = price
	return true
}

// AddPeriodToSession appends a one-hour period after the latest end in the
// session (rounded up to the next whole hour when it has minutes) or at 09:00
// on the session's day.
func (e *Editor) AddPeriodToSession(s *task.WorkSession) (*task.WorkPeriod, error) {
	var start time.Time
	if len(s.Periods) > 0 {
		latest := s.Periods[0].EndTime
		for _, p := range s.Periods[1:] {
			if p.EndTime.After(latest) {
				latest = p.EndTime
			}
		}
		start = ceilHour(latest)
	} else {
		start = atClock(s.CreatedAt, defaultStartHour, 0)
	}
	end := start.Add(defaultLength)

	for _, other := range s.Periods {
		if overlaps(start, end, other.StartTime, other.EndTime) {
			return nil, overlapError(other)
		}
	}

	p := task.NewPeriod(e.newID(), start, end)
	s.Periods = append(s.Periods, p)
	s.SortPeriods()
	return p, nil
}

// AddNewSession appends a session holding one default period placed after the
// latest period recorded today. An overlap is returned as a warning next to the
// created session; the session is kept either way.
func (e *Editor) AddNewSession(t *task.Task, now time.Time) (*task.WorkSession, error) {
	hour := defaultStartHour
	var today []*task.WorkPeriod
	latestEnd := -1
	for _, s := range t.Sessions {
		for _, p := range s.Periods {
			if !sameDay(p.StartTime, now) {
				continue
			}
			today = append(today, p)
			if h := p.EndTime.In(now.Location()).Hour(); h > latestEnd {
				latestEnd = h
			}
		}
	}
	if latestEnd >= 0 {
		hour = latestEnd + 1
		if hour >= closingHour {
			hour = defaultStartHour
		}
	}

	start := atClock(now, hour, 0)
	end := start.Add(defaultLength)

	s := task.NewSession(e.newID(), now)
	s.Periods = append(s.Periods, task.NewPeriod(e.newID(), start, end))
	t.Sessions = append(t.Sessions, s)

	for _, other := range today {
		if overlaps(start, end, other.StartTime, other.EndTime) {
			return s, overlapError(other)
		}
	}
	return s, nil
}

// Save drops blank sessions and recomputes TotalTime from the periods that
// remain. A dropped active session is forgotten; the timer engine opens a new
// one when the next period closes.
func (e *Editor) Save(t *task.Task) *task.Task {
	kept := make([]*task.WorkSession, 0, len(t.Sessions))
	for _, s := range t.Sessions {
		if s.IsBlank() {
			continue
		}
		kept = append(kept, s)
	}
	t.Sessions = kept
	if t.ActiveSessionID != nil && t.Session(*t.ActiveSessionID) == nil {
		t.ActiveSessionID = nil
	}
	t.TotalTime = t.SumPeriodSeconds()
	return t
}

// overlaps treats periods as half-open; identical intervals always conflict.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aStart.Equal(bStart) && aEnd.Equal(bEnd) {
		return true
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func conflictSameDay(s *task.WorkSession, skip uuid.UUID, start, end time.Time) *task.WorkPeriod {
	for _, other := range s.Periods {
		if other.ID == skip || !sameDay(other.StartTime, start) {
			continue
		}
		if overlaps(start, end, other.StartTime, other.EndTime) {
			return other
		}
	}
	return nil
}

func overlapError(other *task.WorkPeriod) error {
	return fmt.Errorf("%w: %s-%s on %s", task.ErrOverlapConflict,
		other.StartTime.Format("15:04"), other.EndTime.Format("15:04"), other.StartTime.Format("2006-01-02"))
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func atClock(day time.Time, hour, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location())
}

func onDate(clock, date time.Time) time.Time {
	y, m, d := date.In(clock.Location()).Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), clock.Location())
}

// ceilHour moves t to the next whole hour when its minutes are nonzero and
// otherwise keeps it.
func ceilHour(t time.Time) time.Time {
	if t.Minute() == 0 {
		return t
	}
	return atClock(t, t.Hour(), 0).Add(time.Hour)
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

package task

import (
	"fmt"
	"time"
)

// Fix describes one in-place correction made by Repair.
type Fix struct {
	SessionID string
	PeriodID  string
	Field     string
	Fallback  string
}

func (f Fix) String() string {
	return fmt.Sprintf("session=%s period=%s field=%s fallback=%s", f.SessionID, f.PeriodID, f.Field, f.Fallback)
}

// Repair replaces zero timestamps with the best available fallback (session date,
// then task creation, then now), restores start <= end and re-derives every
// period duration. Null sessions and periods are dropped. Historical data
// stays viewable instead of failing to load.
func Repair(t *Task, now time.Time) []Fix {
	var fixes []Fix

	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
		fixes = append(fixes, Fix{Field: "task.created_at", Fallback: "now"})
	}
	if t.Sessions == nil {
		t.Sessions = []*WorkSession{}
	}
	t.Sessions, fixes = dropNilSessions(t.Sessions, fixes)

	for _, s := range t.Sessions {
		if s.Periods == nil {
			s.Periods = []*WorkPeriod{}
		}
		s.Periods, fixes = dropNilPeriods(s, fixes)
		if s.Parts == nil {
			s.Parts = []Part{}
		}
		if s.CreatedAt.IsZero() {
			fallback := "task.created_at"
			s.CreatedAt = t.CreatedAt
			if earliest, ok := earliestStart(s); ok {
				s.CreatedAt = earliest
				fallback = "earliest_period"
			}
			fixes = append(fixes, Fix{SessionID: s.ID.String(), Field: "session.created_at", Fallback: fallback})
		}

		for _, p := range s.Periods {
			if p.StartTime.IsZero() {
				p.StartTime = s.CreatedAt
				fixes = append(fixes, Fix{SessionID: s.ID.String(), PeriodID: p.ID.String(), Field: "period.start_time", Fallback: "session.created_at"})
			}
			if p.EndTime.IsZero() {
				p.EndTime = p.StartTime
				fixes = append(fixes, Fix{SessionID: s.ID.String(), PeriodID: p.ID.String(), Field: "period.end_time", Fallback: "period.start_time"})
			}
			before := p.Duration
			p.Recompute()
			if before != p.Duration {
				fixes = append(fixes, Fix{SessionID: s.ID.String(), PeriodID: p.ID.String(), Field: "period.duration", Fallback: "recomputed"})
			}
		}
		s.SortPeriods()
	}

	if t.Status != StatusInProgress && t.StartTime != nil {
		t.StartTime = nil
		fixes = append(fixes, Fix{Field: "task.start_time", Fallback: "cleared"})
	}
	return fixes
}

func dropNilSessions(sessions []*WorkSession, fixes []Fix) ([]*WorkSession, []Fix) {
	kept := sessions[:0]
	for _, s := range sessions {
		if s == nil {
			fixes = append(fixes, Fix{Field: "session", Fallback: "dropped"})
			continue
		}
		kept = append(kept, s)
	}
	return kept, fixes
}

func dropNilPeriods(s *WorkSession, fixes []Fix) ([]*WorkPeriod, []Fix) {
	kept := s.Periods[:0]
	for _, p := range s.Periods {
		if p == nil {
			fixes = append(fixes, Fix{SessionID: s.ID.String(), Field: "period", Fallback: "dropped"})
			continue
		}
		kept = append(kept, p)
	}
	return kept, fixes
}

func earliestStart(s *WorkSession) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, p := range s.Periods {
		if p.StartTime.IsZero() {
			continue
		}
		if !found || p.StartTime.Before(earliest) {
			earliest = p.StartTime
			found = true
		}
	}
	return earliest, found
}

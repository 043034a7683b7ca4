package editor_test

import (
	"testing"
	"time"

	"repairTracker/internal/editor"
	"repairTracker/internal/models/task"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC)

func at(d time.Time, hour, minute int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location())
}

func period(start, end time.Time) *task.WorkPeriod {
	return task.NewPeriod(uuid.New(), start, end)
}

func sessionWith(periods ...*task.WorkPeriod) *task.WorkSession {
	s := task.NewSession(uuid.New(), at(day, 8, 0))
	s.Periods = append(s.Periods, periods...)
	return s
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{in: "09:30", h: 9, m: 30},
		{in: " 23:59 ", h: 23, m: 59},
		{in: "0:05", h: 0, m: 5},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12:5", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
		{in: "1:2:3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := editor.ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, task.ErrInvalidTimeInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.h, h)
			assert.Equal(t, tt.m, m)
		})
	}
}

func TestEditPeriodTime_OverlapRejected(t *testing.T) {
	a := period(at(day, 9, 0), at(day, 10, 0))
	b := period(at(day, 11, 0), at(day, 12, 0))
	s := sessionWith(a, b)
	before := s.Clone()

	err := editor.New(nil).EditPeriodTime(s, b.ID, editor.FieldStart, "09:30")
	assert.ErrorIs(t, err, task.ErrOverlapConflict)
	assert.Empty(t, cmp.Diff(before, s))
}

func TestEditPeriodTime_Cases(t *testing.T) {
	tests := []struct {
		name    string
		field   editor.Field
		value   string
		wantErr error
		start   time.Time
		end     time.Time
	}{
		{name: "move start later", field: editor.FieldStart, value: "11:15", start: at(day, 11, 15), end: at(day, 12, 0)},
		{name: "extend end", field: editor.FieldEnd, value: "13:45", start: at(day, 11, 0), end: at(day, 13, 45)},
		{name: "touching neighbour is fine", field: editor.FieldStart, value: "10:00", start: at(day, 10, 0), end: at(day, 12, 0)},
		{name: "end before start", field: editor.FieldEnd, value: "10:30", wantErr: task.ErrInvalidTimeInput},
		{name: "bad input", field: editor.FieldEnd, value: "25:00", wantErr: task.ErrInvalidTimeInput},
		{name: "containment", field: editor.FieldStart, value: "08:30", wantErr: task.ErrOverlapConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := period(at(day, 9, 0), at(day, 10, 0))
			b := period(at(day, 11, 0), at(day, 12, 0))
			s := sessionWith(a, b)

			err := editor.New(nil).EditPeriodTime(s, b.ID, tt.field, tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, at(day, 11, 0), b.StartTime)
				assert.Equal(t, at(day, 12, 0), b.EndTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, b.StartTime)
			assert.Equal(t, tt.end, b.EndTime)
			assert.Equal(t, int64(tt.end.Sub(tt.start)/time.Second), b.Duration)
		})
	}
}

func TestEditPeriodTime_OtherDayIgnored(t *testing.T) {
	a := period(at(day, 9, 0), at(day, 10, 0))
	next := day.AddDate(0, 0, 1)
	b := period(at(next, 11, 0), at(next, 12, 0))
	s := sessionWith(a, b)

	require.NoError(t, editor.New(nil).EditPeriodTime(s, b.ID, editor.FieldStart, "09:00"))
	assert.Equal(t, at(next, 9, 0), b.StartTime)
}

func TestEditPeriodTime_ExactMatchConflicts(t *testing.T) {
	a := period(at(day, 9, 0), at(day, 10, 0))
	b := period(at(day, 9, 0), at(day, 9, 0))
	s := sessionWith(a, b)

	err := editor.New(nil).EditPeriodTime(s, b.ID, editor.FieldEnd, "10:00")
	assert.ErrorIs(t, err, task.ErrOverlapConflict)
}

func TestEditPeriodTime_ResortsPeriods(t *testing.T) {
	a := period(at(day, 9, 0), at(day, 10, 0))
	b := period(at(day, 7, 0), at(day, 8, 0))
	s := sessionWith(a, b)

	require.NoError(t, editor.New(nil).EditPeriodTime(s, b.ID, editor.FieldEnd, "08:30"))
	assert.Equal(t, b.ID, s.Periods[0].ID)
	assert.Equal(t, int64(5400), b.Duration)
}

func TestEditPeriodDate_KeepsTimesAndSpan(t *testing.T) {
	p := period(at(day, 22, 0), at(day.AddDate(0, 0, 1), 1, 30))
	s := sessionWith(p)
	target := time.Date(2025, 5, 1, 15, 0, 0, 0, time.UTC)

	require.NoError(t, editor.New(nil).EditPeriodDate(s, p.ID, target))
	assert.Equal(t, time.Date(2025, 5, 1, 22, 0, 0, 0, time.UTC), p.StartTime)
	assert.Equal(t, time.Date(2025, 5, 2, 1, 30, 0, 0, time.UTC), p.EndTime)
	assert.Equal(t, int64(3.5*3600), p.Duration)
}

func TestEditPeriodDate_NoOverlapCheck(t *testing.T) {
	other := day.AddDate(0, 0, 3)
	a := period(at(other, 9, 0), at(other, 10, 0))
	b := period(at(day, 9, 0), at(day, 10, 0))
	s := sessionWith(a, b)

	require.NoError(t, editor.New(nil).EditPeriodDate(s, b.ID, other))
	assert.Equal(t, at(other, 9, 0), b.StartTime)
}

func TestDeletes(t *testing.T) {
	e := editor.New(nil)
	a := period(at(day, 9, 0), at(day, 10, 0))
	s := sessionWith(a)
	s.Parts = []task.Part{{Name: "a", Quantity: 1}, {Name: "b", Quantity: 1}}
	tk := &task.Task{Sessions: []*task.WorkSession{s}}
	id := s.ID
	tk.ActiveSessionID = &id

	require.NoError(t, e.DeletePart(s, 0))
	assert.Equal(t, "b", s.Parts[0].Name)
	assert.ErrorIs(t, e.DeletePart(s, 5), task.ErrNotFound)

	require.NoError(t, e.DeletePeriod(s, a.ID))
	assert.Empty(t, s.Periods)
	assert.ErrorIs(t, e.DeletePeriod(s, a.ID), task.ErrNotFound)

	require.NoError(t, e.DeleteSession(tk, s.ID))
	assert.Empty(t, tk.Sessions)
	assert.Nil(t, tk.ActiveSessionID)
	assert.ErrorIs(t, e.DeleteSession(tk, s.ID), task.ErrNotFound)
}

func TestAddPeriodToSession(t *testing.T) {
	t.Run("rounds up to next hour", func(t *testing.T) {
		s := sessionWith(period(at(day, 13, 0), at(day, 14, 30)))
		p, err := editor.New(nil).AddPeriodToSession(s)
		require.NoError(t, err)
		assert.Equal(t, at(day, 15, 0), p.StartTime)
		assert.Equal(t, at(day, 16, 0), p.EndTime)
		assert.Equal(t, int64(3600), p.Duration)
		assert.Len(t, s.Periods, 2)
	})

	t.Run("whole hour end is kept", func(t *testing.T) {
		s := sessionWith(period(at(day, 13, 0), at(day, 14, 0)))
		p, err := editor.New(nil).AddPeriodToSession(s)
		require.NoError(t, err)
		assert.Equal(t, at(day, 14, 0), p.StartTime)
	})

	t.Run("empty session defaults to nine", func(t *testing.T) {
		s := sessionWith()
		p, err := editor.New(nil).AddPeriodToSession(s)
		require.NoError(t, err)
		assert.Equal(t, at(day, 9, 0), p.StartTime)
	})

	t.Run("occupied slot rejected", func(t *testing.T) {
		s := sessionWith(period(at(day, 15, 0), at(day, 15, 30)), period(at(day, 13, 0), at(day, 14, 30)))
		_, err := editor.New(nil).AddPeriodToSession(s)
		assert.ErrorIs(t, err, task.ErrOverlapConflict)
		assert.Len(t, s.Periods, 2)
	})

	t.Run("latest end wins over latest start", func(t *testing.T) {
		s := sessionWith(period(at(day, 13, 0), at(day, 15, 30)), period(at(day, 14, 0), at(day, 14, 30)))
		p, err := editor.New(nil).AddPeriodToSession(s)
		require.NoError(t, err)
		assert.Equal(t, at(day, 16, 0), p.StartTime)
		assert.Len(t, s.Periods, 3)
	})

	t.Run("seconds alone do not round up", func(t *testing.T) {
		end := at(day, 14, 0).Add(20 * time.Second)
		s := sessionWith(period(at(day, 13, 0), end))
		p, err := editor.New(nil).AddPeriodToSession(s)
		require.NoError(t, err)
		assert.Equal(t, end, p.StartTime)
	})
}

func TestAddNewSession(t *testing.T) {
	now := at(day, 12, 0)

	t.Run("after latest end today", func(t *testing.T) {
		s := sessionWith(period(at(day, 9, 0), at(day, 10, 20)))
		tk := &task.Task{Sessions: []*task.WorkSession{s}}

		created, err := editor.New(nil).AddNewSession(tk, now)
		require.NoError(t, err)
		require.Len(t, created.Periods, 1)
		assert.Equal(t, at(day, 11, 0), created.Periods[0].StartTime)
		assert.Equal(t, at(day, 12, 0), created.Periods[0].EndTime)
		assert.Len(t, tk.Sessions, 2)
	})

	t.Run("resets to nine after closing", func(t *testing.T) {
		s := sessionWith(period(at(day, 16, 0), at(day, 17, 10)))
		tk := &task.Task{Sessions: []*task.WorkSession{s}}

		created, err := editor.New(nil).AddNewSession(tk, now)
		require.NoError(t, err)
		assert.Equal(t, at(day, 9, 0), created.Periods[0].StartTime)
	})

	t.Run("conflict is a warning", func(t *testing.T) {
		s := sessionWith(period(at(day, 9, 0), at(day, 9, 30)), period(at(day, 16, 0), at(day, 17, 10)))
		tk := &task.Task{Sessions: []*task.WorkSession{s}}

		created, err := editor.New(nil).AddNewSession(tk, now)
		assert.ErrorIs(t, err, task.ErrOverlapConflict)
		require.NotNil(t, created)
		assert.Len(t, tk.Sessions, 2)
	})

	t.Run("other days do not count", func(t *testing.T) {
		yesterday := day.AddDate(0, 0, -1)
		s := sessionWith(period(at(yesterday, 13, 0), at(yesterday, 14, 0)))
		tk := &task.Task{Sessions: []*task.WorkSession{s}}

		created, err := editor.New(nil).AddNewSession(tk, now)
		require.NoError(t, err)
		assert.Equal(t, at(day, 9, 0), created.Periods[0].StartTime)
	})
}

func TestParts(t *testing.T) {
	e := editor.New(nil)
	s := sessionWith()

	require.NoError(t, e.AddPart(s, task.Part{Name: " rotor ", Quantity: 2, Price: 55}))
	assert.Equal(t, "rotor", s.Parts[0].Name)
	assert.ErrorIs(t, e.AddPart(s, task.Part{Name: "", Quantity: 1}), task.ErrInvalidPart)
	assert.ErrorIs(t, e.AddPart(s, task.Part{Name: "x", Quantity: 0}), task.ErrInvalidPart)
	assert.ErrorIs(t, e.AddPart(s, task.Part{Name: "x", Quantity: 1, Price: -1}), task.ErrInvalidPart)

	assert.False(t, e.UpdatePartQuantity(s, 0, 0))
	assert.False(t, e.UpdatePartQuantity(s, 0, -3))
	assert.Equal(t, 2, s.Parts[0].Quantity)
	assert.True(t, e.UpdatePartQuantity(s, 0, 3))
	assert.Equal(t, 3, s.Parts[0].Quantity)

	assert.False(t, e.UpdatePartPrice(s, 0, -0.01))
	assert.Equal(t, 55.0, s.Parts[0].Price)
	assert.True(t, e.UpdatePartPrice(s, 0, 0))
	assert.Equal(t, 0.0, s.Parts[0].Price)
	assert.False(t, e.UpdatePartPrice(s, 7, 1))
}

func TestSave(t *testing.T) {
	e := editor.New(nil)
	withPeriod := sessionWith(period(at(day, 9, 0), at(day, 10, 0)))
	blank := sessionWith()
	whitespace := sessionWith()
	whitespace.Description = "   "
	described := sessionWith()
	described.Description = "diagnosed noise"
	activeBlank := sessionWith()

	tk := &task.Task{
		Sessions:  []*task.WorkSession{withPeriod, blank, whitespace, described, activeBlank},
		TotalTime: 999,
	}
	id := activeBlank.ID
	tk.ActiveSessionID = &id

	e.Save(tk)
	require.Len(t, tk.Sessions, 2)
	assert.Equal(t, withPeriod.ID, tk.Sessions[0].ID)
	assert.Equal(t, described.ID, tk.Sessions[1].ID)
	assert.Nil(t, tk.ActiveSessionID, "a dropped active session is forgotten")
	assert.Equal(t, int64(3600), tk.TotalTime)

	once := tk.Clone()
	e.Save(tk)
	assert.Empty(t, cmp.Diff(once, tk))
}

package task_test

import (
	"testing"
	"time"

	"repairTracker/internal/models/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corrupted = `[
  {
    "id": "7d4f3a50-5d7b-4c1b-9a53-0f1c2a3b4c5d",
    "created_at": "not a date",
    "periods": [
      {"id": "0b6e2f1c-7a9d-4e11-8f3a-2c4d5e6f7a8b", "start_time": "2025-03-04T10:00:00Z", "end_time": "garbage", "duration": 900},
      {"id": "1c7f3a2d-8b0e-4f22-9a4b-3d5e6f7a8b9c", "start_time": "", "end_time": "2025-03-04 12:30:00", "duration": 5}
    ],
    "parts": null
  },
  {
    "id": "2d8a4b3e-9c1f-4a33-8b5c-4e6f7a8b9c0d",
    "created_at": 12345,
    "completed_at": "2025-03-05",
    "periods": [],
    "description": "only words"
  }
]`

func TestDecodeSessions_Lenient(t *testing.T) {
	sessions, err := task.DecodeSessions([]byte(corrupted))
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	first := sessions[0]
	assert.True(t, first.CreatedAt.IsZero())
	require.Len(t, first.Periods, 2)
	assert.Equal(t, time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), first.Periods[0].StartTime)
	assert.True(t, first.Periods[0].EndTime.IsZero())
	assert.True(t, first.Periods[1].StartTime.IsZero())
	assert.Equal(t, time.Date(2025, 3, 4, 12, 30, 0, 0, time.UTC), first.Periods[1].EndTime)
	assert.NotNil(t, first.Parts)

	second := sessions[1]
	assert.True(t, second.CreatedAt.IsZero())
	require.NotNil(t, second.CompletedAt)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), *second.CompletedAt)
	assert.NotNil(t, second.Periods)
}

func TestDecodeSessions_Empty(t *testing.T) {
	for _, in := range []string{"", "null", "[]"} {
		sessions, err := task.DecodeSessions([]byte(in))
		require.NoError(t, err, in)
		assert.NotNil(t, sessions)
		assert.Empty(t, sessions)
	}

	_, err := task.DecodeSessions([]byte(`{"not":"a list"}`))
	assert.Error(t, err)
}

func TestEncodeDecodeKeepsGraph(t *testing.T) {
	sessions, err := task.DecodeSessions([]byte(corrupted))
	require.NoError(t, err)
	task.Repair(&task.Task{Sessions: sessions, CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}, time.Now())

	raw, err := task.EncodeSessions(sessions)
	require.NoError(t, err)
	again, err := task.DecodeSessions(raw)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, sessions[0].Periods[1].StartTime.UTC(), again[0].Periods[1].StartTime.UTC())
	assert.Equal(t, sessions[0].Periods[0].Duration, again[0].Periods[0].Duration)
}

func TestRepair_Fallbacks(t *testing.T) {
	sessions, err := task.DecodeSessions([]byte(corrupted))
	require.NoError(t, err)
	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, 3, 20, 8, 0, 0, 0, time.UTC)
	stale := now
	tk := &task.Task{Status: task.StatusPaused, CreatedAt: created, Sessions: sessions, StartTime: &stale}

	fixes := task.Repair(tk, now)
	require.NotEmpty(t, fixes)

	first := tk.Sessions[0]
	assert.Equal(t, time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), first.CreatedAt, "earliest valid period start")
	for _, p := range first.Periods {
		assert.False(t, p.StartTime.IsZero())
		assert.False(t, p.EndTime.Before(p.StartTime))
		assert.Equal(t, task.ElapsedSeconds(p.StartTime, p.EndTime), p.Duration)
	}
	assert.True(t, first.Periods[0].StartTime.Before(first.Periods[1].StartTime) || first.Periods[0].StartTime.Equal(first.Periods[1].StartTime))

	assert.Equal(t, created, tk.Sessions[1].CreatedAt, "no periods falls back to task creation")
	assert.Nil(t, tk.StartTime, "start anchor only survives while running")

	fields := map[string]int{}
	for _, f := range fixes {
		fields[f.Field]++
		assert.NotEmpty(t, f.String())
	}
	assert.Equal(t, 2, fields["session.created_at"])
	assert.Equal(t, 1, fields["period.start_time"])
	assert.Equal(t, 1, fields["period.end_time"])
	assert.Equal(t, 1, fields["task.start_time"])
}

func TestRepair_ZeroTaskCreatedAt(t *testing.T) {
	now := time.Date(2025, 3, 20, 8, 0, 0, 0, time.UTC)
	tk := &task.Task{Status: task.StatusPending}

	fixes := task.Repair(tk, now)
	require.Len(t, fixes, 1)
	assert.Equal(t, now, tk.CreatedAt)
	assert.NotNil(t, tk.Sessions)
}

func TestRepair_CleanTaskUntouched(t *testing.T) {
	start := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	sessions, err := task.DecodeSessions([]byte(`[{"id":"7d4f3a50-5d7b-4c1b-9a53-0f1c2a3b4c5d","created_at":"2025-03-04T09:00:00Z","periods":[{"id":"0b6e2f1c-7a9d-4e11-8f3a-2c4d5e6f7a8b","start_time":"2025-03-04T10:00:00Z","end_time":"2025-03-04T10:30:00Z","duration":1800}],"parts":[]}]`))
	require.NoError(t, err)
	tk := &task.Task{Status: task.StatusInProgress, CreatedAt: start, StartTime: &start, Sessions: sessions}

	assert.Empty(t, task.Repair(tk, time.Now()))
	assert.NotNil(t, tk.StartTime)
}

func TestRepair_DropsNullEntries(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		sessions int
		periods  int
		field    string
	}{
		{name: "null session", raw: `[null]`, sessions: 0, field: "session"},
		{
			name:     "null period",
			raw:      `[{"id":"7d4f3a50-5d7b-4c1b-9a53-0f1c2a3b4c5d","created_at":"2025-03-04T09:00:00Z","periods":[null,{"id":"0b6e2f1c-7a9d-4e11-8f3a-2c4d5e6f7a8b","start_time":"2025-03-04T10:00:00Z","end_time":"2025-03-04T10:30:00Z","duration":1800}]}]`,
			sessions: 1,
			periods:  1,
			field:    "period",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, err := task.DecodeSessions([]byte(tt.raw))
			require.NoError(t, err)
			tk := &task.Task{Status: task.StatusPaused, CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Sessions: sessions}

			var fixes []task.Fix
			require.NotPanics(t, func() { fixes = task.Repair(tk, time.Now()) })

			require.Len(t, tk.Sessions, tt.sessions)
			if tt.sessions > 0 {
				assert.Len(t, tk.Sessions[0].Periods, tt.periods)
			}
			require.Len(t, fixes, 1)
			assert.Equal(t, tt.field, fixes[0].Field)
			assert.Equal(t, "dropped", fixes[0].Fallback)
		})
	}
}

package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts the layouts stored by earlier versions; ok is false when
// none of them matches.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// storedTime decodes a timestamp without failing the surrounding document.
// Unparsable values decode to the zero time and are fixed later by Repair.
type storedTime struct {
	t   time.Time
	set bool
}

func (st *storedTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	st.set = true
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	st.t, _ = ParseTimestamp(s)
	return nil
}

func (p *WorkPeriod) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        uuid.UUID  `json:"id"`
		StartTime storedTime `json:"start_time"`
		EndTime   storedTime `json:"end_time"`
		Duration  int64      `json:"duration"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode period: %w", err)
	}
	p.ID = raw.ID
	p.StartTime = raw.StartTime.t
	p.EndTime = raw.EndTime.t
	p.Duration = raw.Duration
	return nil
}

func (s *WorkSession) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          uuid.UUID     `json:"id"`
		CreatedAt   storedTime    `json:"created_at"`
		CompletedAt storedTime    `json:"completed_at"`
		Description string        `json:"description"`
		Periods     []*WorkPeriod `json:"periods"`
		Parts       []Part        `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	s.ID = raw.ID
	s.CreatedAt = raw.CreatedAt.t
	s.CompletedAt = nil
	if raw.CompletedAt.set && !raw.CompletedAt.t.IsZero() {
		done := raw.CompletedAt.t
		s.CompletedAt = &done
	}
	s.Description = raw.Description
	s.Periods = raw.Periods
	if s.Periods == nil {
		s.Periods = []*WorkPeriod{}
	}
	s.Parts = raw.Parts
	if s.Parts == nil {
		s.Parts = []Part{}
	}
	return nil
}

func DecodeSessions(data []byte) ([]*WorkSession, error) {
	if len(data) == 0 {
		return []*WorkSession{}, nil
	}
	var sessions []*WorkSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*WorkSession{}
	}
	return sessions, nil
}

func EncodeSessions(sessions []*WorkSession) ([]byte, error) {
	if sessions == nil {
		sessions = []*WorkSession{}
	}
	return json.Marshal(sessions)
}

// Package billing derives labor and parts costs from the task graph. Every
// surface that shows money (staff API, invoice PDF, client portal) goes through
// these functions so that the same data always produces the same totals.
package billing

import (
	"fmt"
	"time"

	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"

	"github.com/google/uuid"
)

const secondsPerHour = 3600.0

// HourlyRate returns the client's own rate when set, otherwise the default.
func HourlyRate(c *garage.Client, defaultRate float64) float64 {
	if c != nil && c.HourlyRate != nil {
		return *c.HourlyRate
	}
	return defaultRate
}

func LaborCost(seconds int64, rate float64) float64 {
	return float64(seconds) / secondsPerHour * rate
}

func SessionLaborCost(s *task.WorkSession, rate float64) float64 {
	return LaborCost(s.Seconds(), rate)
}

func SessionPartsCost(s *task.WorkSession) float64 {
	var total float64
	for _, p := range s.Parts {
		total += p.Price * float64(p.Quantity)
	}
	return total
}

// TaskLaborCost uses the persisted TotalTime, not a live re-sum of periods.
func TaskLaborCost(t *task.Task, rate float64) float64 {
	return LaborCost(t.TotalTime, rate)
}

func TaskPartsCost(t *task.Task) float64 {
	var total float64
	for _, s := range t.Sessions {
		total += SessionPartsCost(s)
	}
	return total
}

type Totals struct {
	Seconds int64   `json:"seconds" yaml:"seconds"`
	Labor   float64 `json:"labor" yaml:"labor"`
	Parts   float64 `json:"parts" yaml:"parts"`
	Total   float64 `json:"total" yaml:"total"`
}

func (t Totals) add(o Totals) Totals {
	t.Seconds += o.Seconds
	t.Labor += o.Labor
	t.Parts += o.Parts
	t.Total = t.Labor + t.Parts
	return t
}

func SessionTotals(s *task.WorkSession, rate float64) Totals {
	labor := SessionLaborCost(s, rate)
	parts := SessionPartsCost(s)
	return Totals{Seconds: s.Seconds(), Labor: labor, Parts: parts, Total: labor + parts}
}

func TaskTotals(t *task.Task, rate float64) Totals {
	labor := TaskLaborCost(t, rate)
	parts := TaskPartsCost(t)
	return Totals{Seconds: t.TotalTime, Labor: labor, Parts: parts, Total: labor + parts}
}

// Rollup sums task totals; vehicle and client summaries are rollups over
// different task selections.
func Rollup(tasks []*task.Task, rate float64) Totals {
	var sum Totals
	for _, t := range tasks {
		sum = sum.add(TaskTotals(t, rate))
	}
	return sum
}

type TaskLine struct {
	TaskID uuid.UUID   `json:"task_id" yaml:"task_id"`
	Status task.Status `json:"status" yaml:"status"`
	Totals Totals      `json:"totals" yaml:"totals"`
}

type VehicleSummary struct {
	VehicleID uuid.UUID  `json:"vehicle_id" yaml:"vehicle_id"`
	VIN       string     `json:"vin" yaml:"vin"`
	Label     string     `json:"label" yaml:"label"`
	Tasks     []TaskLine `json:"tasks" yaml:"tasks"`
	Totals    Totals     `json:"totals" yaml:"totals"`
}

type ClientSummary struct {
	ClientID   uuid.UUID        `json:"client_id" yaml:"client_id"`
	Name       string           `json:"name" yaml:"name"`
	HourlyRate float64          `json:"hourly_rate" yaml:"hourly_rate"`
	Vehicles   []VehicleSummary `json:"vehicles" yaml:"vehicles"`
	Totals     Totals           `json:"totals" yaml:"totals"`
}

func SummarizeVehicle(v *garage.Vehicle, tasks []*task.Task, rate float64) VehicleSummary {
	vs := VehicleSummary{VehicleID: v.ID, VIN: v.VIN, Label: v.Label(), Tasks: []TaskLine{}}
	var own []*task.Task
	for _, t := range tasks {
		if t.VehicleID != v.ID {
			continue
		}
		own = append(own, t)
		vs.Tasks = append(vs.Tasks, TaskLine{TaskID: t.ID, Status: t.Status, Totals: TaskTotals(t, rate)})
	}
	vs.Totals = Rollup(own, rate)
	return vs
}

// SummarizeClient rolls the client's tasks up per vehicle and overall. Tasks
// whose vehicle is gone still count toward the client total.
func SummarizeClient(c *garage.Client, vehicles []*garage.Vehicle, tasks []*task.Task, defaultRate float64) ClientSummary {
	rate := HourlyRate(c, defaultRate)
	cs := ClientSummary{ClientID: c.ID, Name: c.Name, HourlyRate: rate, Vehicles: []VehicleSummary{}}

	var own []*task.Task
	for _, t := range tasks {
		if t.ClientID == c.ID {
			own = append(own, t)
		}
	}
	for _, v := range vehicles {
		if v.ClientID != c.ID {
			continue
		}
		cs.Vehicles = append(cs.Vehicles, SummarizeVehicle(v, own, rate))
	}
	cs.Totals = Rollup(own, rate)
	return cs
}

// CurrentSeconds is the display value of a task's clock: the live running
// period while in progress, the last closed period while paused, and the
// accumulated total otherwise.
func CurrentSeconds(t *task.Task, now time.Time) int64 {
	switch t.Status {
	case task.StatusInProgress:
		if t.StartTime == nil {
			return 0
		}
		return task.ElapsedSeconds(*t.StartTime, now)
	case task.StatusPaused:
		if p := t.LastClosedPeriod(); p != nil {
			return p.Duration
		}
		return 0
	default:
		return t.TotalTime
	}
}

// FormatDuration renders seconds as HH:MM:SS; hours are not wrapped at 24.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	h := int64(d / time.Hour)
	m := int64(d%time.Hour) / int64(time.Minute)
	s := int64(d%time.Minute) / int64(time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func Hours(seconds int64) float64 {
	return float64(seconds) / secondsPerHour
}

package dto

import (
	"time"

	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"
	"repairTracker/internal/service"
	"repairTracker/internal/timer"
)

type ClientRequest struct {
	Name       string   `json:"name"`
	Email      *string  `json:"email,omitempty"`
	Phone      *string  `json:"phone,omitempty"`
	HourlyRate *float64 `json:"hourly_rate,omitempty"`
}

func (r ClientRequest) Input() service.ClientInput {
	return service.ClientInput{Name: r.Name, Email: r.Email, Phone: r.Phone, HourlyRate: r.HourlyRate}
}

type VehicleRequest struct {
	VIN      string  `json:"vin"`
	Make     *string `json:"make,omitempty"`
	Model    *string `json:"model,omitempty"`
	Year     *int    `json:"year,omitempty"`
	Color    *string `json:"color,omitempty"`
	StartNow bool    `json:"start_now"`
}

func (r VehicleRequest) Input() service.VehicleInput {
	return service.VehicleInput{VIN: r.VIN, Make: r.Make, Model: r.Model, Year: r.Year, Color: r.Color}
}

type NewJobRequest struct {
	StartNow bool `json:"start_now"`
}

type PartRequest struct {
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
}

func (p PartRequest) Part() task.Part {
	return task.Part{Name: p.Name, Quantity: p.Quantity, Price: p.Price, Description: p.Description}
}

type CompleteRequest struct {
	Description   string        `json:"description"`
	Parts         []PartRequest `json:"parts"`
	NeedsFollowUp bool          `json:"needs_follow_up"`
}

func (r CompleteRequest) Completion() timer.Completion {
	c := timer.Completion{Description: r.Description, NeedsFollowUp: r.NeedsFollowUp}
	for _, p := range r.Parts {
		c.Parts = append(c.Parts, p.Part())
	}
	return c
}

type PartUpdateRequest struct {
	Quantity *int     `json:"quantity,omitempty"`
	Price    *float64 `json:"price,omitempty"`
}

// PeriodRequest edits one bound's time of day ("field" + "time") or moves the
// whole period to another day ("date", YYYY-MM-DD).
type PeriodRequest struct {
	Field string `json:"field,omitempty"`
	Time  string `json:"time,omitempty"`
	Date  string `json:"date,omitempty"`
}

type SettingsRequest struct {
	DefaultHourlyRate float64 `json:"default_hourly_rate"`
	Currency          string  `json:"currency"`
	BusinessName      string  `json:"business_name"`
}

func (r SettingsRequest) Settings() garage.Settings {
	return garage.Settings{DefaultHourlyRate: r.DefaultHourlyRate, Currency: r.Currency, BusinessName: r.BusinessName}
}

type TaskResponse struct {
	*task.Task
	Running bool `json:"running"`
}

func FromTask(t *task.Task) *TaskResponse {
	if t == nil {
		return nil
	}
	return &TaskResponse{Task: t, Running: t.IsRunning()}
}

func FromTaskList(tasks []*task.Task) []*TaskResponse {
	result := make([]*TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}

type TaskEnvelope struct {
	Task    *TaskResponse    `json:"task"`
	Notices []service.Notice `json:"notices,omitempty"`
}

type VehicleCreatedResponse struct {
	Vehicle *garage.Vehicle  `json:"vehicle"`
	Task    *TaskResponse    `json:"task"`
	Notices []service.Notice `json:"notices,omitempty"`
}

type PortalTokenResponse struct {
	Token     string    `json:"token"`
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AttachmentResponse struct {
	Name  string `json:"name"`
	Bytes int64  `json:"bytes"`
}

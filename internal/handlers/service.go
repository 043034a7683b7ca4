package handlers

import (
	"context"
	"io"
	"time"

	"repairTracker/internal/billing"
	"repairTracker/internal/editor"
	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"
	"repairTracker/internal/service"
	"repairTracker/internal/timer"

	"github.com/google/uuid"
)

// Service is the part of service.TaskService the API uses.
type Service interface {
	HealthCheck(ctx context.Context) error

	GetSettings(ctx context.Context) (garage.Settings, error)
	UpdateSettings(ctx context.Context, st garage.Settings) (garage.Settings, error)

	CreateClient(ctx context.Context, in service.ClientInput) (*garage.Client, error)
	UpdateClient(ctx context.Context, id uuid.UUID, in service.ClientInput) (*garage.Client, error)
	GetClient(ctx context.Context, id uuid.UUID) (*garage.Client, error)
	ListClients(ctx context.Context) ([]*garage.Client, error)
	DeleteClient(ctx context.Context, id uuid.UUID) error
	ClientSummary(ctx context.Context, id uuid.UUID) (billing.ClientSummary, error)
	ClientView(ctx context.Context, id uuid.UUID) (*service.ClientView, error)

	AddVehicle(ctx context.Context, clientID uuid.UUID, in service.VehicleInput, startNow bool) (*garage.Vehicle, *task.Task, []service.Notice, error)
	NewJob(ctx context.Context, vehicleID uuid.UUID, startNow bool) (*task.Task, []service.Notice, error)
	UpdateVehicle(ctx context.Context, id uuid.UUID, in service.VehicleInput) (*garage.Vehicle, error)
	GetVehicle(ctx context.Context, id uuid.UUID) (*garage.Vehicle, error)
	ListVehicles(ctx context.Context, clientID *uuid.UUID) ([]*garage.Vehicle, error)
	DeleteVehicle(ctx context.Context, id uuid.UUID) error
	VehicleSummary(ctx context.Context, id uuid.UUID) (billing.VehicleSummary, error)

	ListTasks(ctx context.Context, filter service.TaskFilter) ([]*task.Task, error)
	ActiveTask(ctx context.Context) (*task.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	RefreshTaskSnapshot(ctx context.Context, id uuid.UUID) (*task.Task, error)

	StartTask(ctx context.Context, id uuid.UUID) (*task.Task, []service.Notice, error)
	ResumeTask(ctx context.Context, id uuid.UUID) (*task.Task, []service.Notice, error)
	RestartTask(ctx context.Context, id uuid.UUID) (*task.Task, []service.Notice, error)
	PauseTask(ctx context.Context, id uuid.UUID) (*task.Task, error)
	StopTask(ctx context.Context, id uuid.UUID) (*task.Task, error)
	CompleteTask(ctx context.Context, id uuid.UUID, in timer.Completion) (*task.Task, error)
	MarkBilled(ctx context.Context, id uuid.UUID) (*task.Task, []service.Notice, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (*task.Task, error)

	Timer(ctx context.Context, id uuid.UUID) (service.TimerView, error)
	TaskCost(ctx context.Context, id uuid.UUID) (service.TaskCost, error)
	Invoice(ctx context.Context, id uuid.UUID) (billing.Invoice, error)

	AddSession(ctx context.Context, taskID uuid.UUID) (*task.Task, []service.Notice, error)
	DeleteSession(ctx context.Context, taskID, sessionID uuid.UUID) (*task.Task, error)
	AddPeriod(ctx context.Context, taskID, sessionID uuid.UUID) (*task.Task, error)
	EditPeriodTime(ctx context.Context, taskID, sessionID, periodID uuid.UUID, field editor.Field, hhmm string) (*task.Task, error)
	EditPeriodDate(ctx context.Context, taskID, sessionID, periodID uuid.UUID, date time.Time) (*task.Task, error)
	DeletePeriod(ctx context.Context, taskID, sessionID, periodID uuid.UUID) (*task.Task, error)
	AddPart(ctx context.Context, taskID, sessionID uuid.UUID, part task.Part) (*task.Task, error)
	UpdatePart(ctx context.Context, taskID, sessionID uuid.UUID, index int, upd service.PartUpdate) (*task.Task, error)
	DeletePart(ctx context.Context, taskID, sessionID uuid.UUID, index int) (*task.Task, error)
}

var _ Service = (*service.TaskService)(nil)

type PortalTokens interface {
	Issue(clientID uuid.UUID) (string, time.Time, error)
	Parse(raw string) (uuid.UUID, error)
}

type Attachments interface {
	Save(ctx context.Context, taskID uuid.UUID, name string, r io.Reader) (int64, error)
	List(ctx context.Context, taskID uuid.UUID) ([]string, error)
}

type Backups interface {
	Backup(ctx context.Context) (string, error)
	Restore(ctx context.Context, r io.Reader) error
}

type InvoiceRenderer func(billing.Invoice) ([]byte, error)

type Option func(*Handler)

// WithPortal enables /portal and portal-token issuing.
func WithPortal(tokens PortalTokens) Option {
	return func(h *Handler) {
		h.tokens = tokens
	}
}

func WithAttachments(a Attachments) Option {
	return func(h *Handler) {
		h.files = a
	}
}

func WithBackups(b Backups) Option {
	return func(h *Handler) {
		h.backups = b
	}
}

func WithInvoiceRenderer(render InvoiceRenderer) Option {
	return func(h *Handler) {
		h.render = render
	}
}

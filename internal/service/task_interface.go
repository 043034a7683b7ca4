package service

import (
	"context"

	"repairTracker/internal/billing"
	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"

	"github.com/google/uuid"
)

type TaskRepository interface {
	HealthCheck(context.Context) error
	Create(context.Context, *task.Task) error
	// Update stores the task when the stored version equals t.Version.
	Update(context.Context, *task.Task) error
	GetByID(context.Context, uuid.UUID) (*task.Task, error)
	GetAll(context.Context) ([]*task.Task, error)
	Delete(context.Context, uuid.UUID) error
	// BatchUpdate applies every patch or none of them.
	BatchUpdate(context.Context, []task.Patch) error
	ReplaceAll(context.Context, []*task.Task) error
}

type GarageRepository interface {
	CreateClient(context.Context, *garage.Client) error
	UpdateClient(context.Context, *garage.Client) error
	GetClient(context.Context, uuid.UUID) (*garage.Client, error)
	ListClients(context.Context) ([]*garage.Client, error)
	DeleteClient(context.Context, uuid.UUID) error

	CreateVehicle(context.Context, *garage.Vehicle) error
	UpdateVehicle(context.Context, *garage.Vehicle) error
	GetVehicle(context.Context, uuid.UUID) (*garage.Vehicle, error)
	ListVehicles(context.Context) ([]*garage.Vehicle, error)
	DeleteVehicle(context.Context, uuid.UUID) error

	GetSettings(context.Context) (garage.Settings, error)
	SaveSettings(context.Context, garage.Settings) error
	ReplaceGarage(context.Context, []*garage.Client, []*garage.Vehicle, garage.Settings) error
}

// Storage is what the repository constructors in internal/repository return.
type Storage interface {
	TaskRepository
	GarageRepository
}

// InvoiceExporter receives an invoice whenever a task is marked billed.
type InvoiceExporter interface {
	ExportInvoice(context.Context, billing.Invoice) error
}

// AttachmentStore holds photos and other files linked to a task.
type AttachmentStore interface {
	DeleteTaskAttachments(ctx context.Context, taskID uuid.UUID) error
}

package service

import (
	"context"
	"fmt"

	"repairTracker/internal/logger"
	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"

	"go.uber.org/zap"
)

// Dataset is every stored collection at one point in time.
type Dataset struct {
	Settings garage.Settings
	Clients  []*garage.Client
	Vehicles []*garage.Vehicle
	Tasks    []*task.Task
}

// ExportData reads all collections under the writer lock so the dataset is
// consistent.
func (s *TaskService) ExportData(ctx context.Context) (*Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.garageSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if d.Tasks, err = s.loadAll(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// ImportData replaces every collection with d. Null tasks are skipped, dates
// are repaired and a dataset with more than one running task is rejected. If
// the tasks cannot be written the previous garage records are put back.
func (s *TaskService) ImportData(ctx context.Context, d *Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]*task.Task, 0, len(d.Tasks))
	running := 0
	for _, t := range d.Tasks {
		if t == nil {
			logger.Warn("Service: skipped null task in restore data")
			continue
		}
		s.repair(t)
		if t.IsRunning() {
			running++
		}
		tasks = append(tasks, t)
	}
	if running > 1 {
		return NewValidationError("tasks", fmt.Sprintf("%d tasks are in progress, at most one is allowed", running))
	}

	prev, err := s.garageSnapshot(ctx)
	if err != nil {
		return err
	}
	if err := s.garage.ReplaceGarage(ctx, d.Clients, d.Vehicles, d.Settings); err != nil {
		logger.Error("Service: restore of garage records failed", err)
		return fmt.Errorf("replace garage: %w", err)
	}
	if err := s.tasks.ReplaceAll(ctx, tasks); err != nil {
		logger.Error("Service: restore of tasks failed", err)
		if rerr := s.garage.ReplaceGarage(ctx, prev.Clients, prev.Vehicles, prev.Settings); rerr != nil {
			logger.Error("Service: failed to put back garage records", rerr)
		}
		return fmt.Errorf("replace tasks: %w", err)
	}
	logger.Info("Service: data restored",
		zap.Int("clients", len(d.Clients)),
		zap.Int("vehicles", len(d.Vehicles)),
		zap.Int("tasks", len(tasks)))
	return nil
}

func (s *TaskService) garageSnapshot(ctx context.Context) (*Dataset, error) {
	st, err := s.settings(ctx)
	if err != nil {
		return nil, err
	}
	clients, err := s.garage.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	vehicles, err := s.garage.ListVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return &Dataset{Settings: st, Clients: clients, Vehicles: vehicles}, nil
}

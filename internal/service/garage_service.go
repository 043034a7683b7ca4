package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"repairTracker/internal/billing"
	"repairTracker/internal/logger"
	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ClientInput struct {
	Name       string
	Email      *string
	Phone      *string
	HourlyRate *float64
}

func (in ClientInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return NewValidationError("name", "must not be empty")
	}
	if in.HourlyRate != nil && (*in.HourlyRate < 0 || math.IsNaN(*in.HourlyRate) || math.IsInf(*in.HourlyRate, 0)) {
		return NewValidationError("hourly_rate", "must be a non-negative number")
	}
	return nil
}

func (in ClientInput) apply(c *garage.Client) {
	c.Name = strings.TrimSpace(in.Name)
	c.Email = trimmed(in.Email)
	c.Phone = trimmed(in.Phone)
	c.HourlyRate = in.HourlyRate
}

type VehicleInput struct {
	VIN   string
	Make  *string
	Model *string
	Year  *int
	Color *string
}

func (in VehicleInput) apply(v *garage.Vehicle, vin string) {
	v.VIN = vin
	v.Make = trimmed(in.Make)
	v.Model = trimmed(in.Model)
	v.Year = in.Year
	v.Color = trimmed(in.Color)
}

func (s *TaskService) CreateClient(ctx context.Context, in ClientInput) (*garage.Client, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := &garage.Client{ID: s.newID(), CreatedAt: s.now()}
	in.apply(c)

	if err := s.garage.CreateClient(ctx, c); err != nil {
		return nil, classify(err, ResourceClient, c.ID.String())
	}
	logger.Info("Service: client created", zap.String("client_id", c.ID.String()))
	return c, nil
}

// UpdateClient changes the client record only; task snapshots keep the old
// name until RefreshTaskSnapshot is called.
func (s *TaskService) UpdateClient(ctx context.Context, id uuid.UUID, in ClientInput) (*garage.Client, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c, err := s.garage.GetClient(ctx, id)
	if err != nil {
		return nil, classify(err, ResourceClient, id.String())
	}
	in.apply(c)
	if err := s.garage.UpdateClient(ctx, c); err != nil {
		return nil, classify(err, ResourceClient, id.String())
	}
	return c, nil
}

func (s *TaskService) GetClient(ctx context.Context, id uuid.UUID) (*garage.Client, error) {
	c, err := s.garage.GetClient(ctx, id)
	if err != nil {
		return nil, classify(err, ResourceClient, id.String())
	}
	return c, nil
}

func (s *TaskService) ListClients(ctx context.Context) ([]*garage.Client, error) {
	return s.garage.ListClients(ctx)
}

// DeleteClient is refused while the client has pending, running or paused
// tasks. Otherwise the client, its vehicles and its remaining tasks go.
func (s *TaskService) DeleteClient(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.garage.GetClient(ctx, id); err != nil {
		return classify(err, ResourceClient, id.String())
	}
	owned, err := s.tasksWhere(ctx, func(t *task.Task) bool { return t.ClientID == id })
	if err != nil {
		return err
	}
	if n := countActive(owned); n > 0 {
		logger.Info("Service: client delete blocked", zap.String("client_id", id.String()), zap.Int("active_tasks", n))
		return NewHasActiveTasks(ResourceClient, id.String(), n)
	}

	if err := s.deleteTasks(ctx, owned); err != nil {
		return err
	}
	if err := s.garage.DeleteClient(ctx, id); err != nil {
		s.restoreTasks(ctx, owned)
		return classify(err, ResourceClient, id.String())
	}
	s.purgeAttachments(ctx, owned)
	logger.Info("Service: client deleted", zap.String("client_id", id.String()), zap.Int("tasks", len(owned)))
	return nil
}

// AddVehicle registers a vehicle for the client and opens its first task,
// pending or, with startNow, running through the auto-pause protocol. If the
// task cannot be opened the vehicle is removed again.
func (s *TaskService) AddVehicle(ctx context.Context, clientID uuid.UUID, in VehicleInput, startNow bool) (*garage.Vehicle, *task.Task, []Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.garage.GetClient(ctx, clientID)
	if err != nil {
		return nil, nil, nil, classify(err, ResourceClient, clientID.String())
	}
	vin, err := garage.NormalizeVIN(in.VIN)
	if err != nil {
		return nil, nil, nil, NewValidationError("vin", err.Error())
	}
	if err := s.checkVINFree(ctx, vin, uuid.Nil); err != nil {
		return nil, nil, nil, err
	}

	v := &garage.Vehicle{ID: s.newID(), ClientID: clientID}
	in.apply(v, vin)
	if err := s.garage.CreateVehicle(ctx, v); err != nil {
		return nil, nil, nil, classify(err, ResourceVehicle, v.ID.String())
	}
	logger.Info("Service: vehicle added", zap.String("vehicle_id", v.ID.String()), zap.String("vin", vin))

	t, notices, err := s.openTaskLocked(ctx, client, v, startNow)
	if err != nil {
		if derr := s.garage.DeleteVehicle(ctx, v.ID); derr != nil {
			logger.Error("Service: failed to remove vehicle after aborted add", derr, zap.String("vehicle_id", v.ID.String()))
		}
		return nil, nil, nil, err
	}
	return v, t, notices, nil
}

// NewJob opens another task for a vehicle that is back in the shop.
func (s *TaskService) NewJob(ctx context.Context, vehicleID uuid.UUID, startNow bool) (*task.Task, []Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.garage.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, nil, classify(err, ResourceVehicle, vehicleID.String())
	}
	client, err := s.garage.GetClient(ctx, v.ClientID)
	if err != nil {
		return nil, nil, classify(err, ResourceClient, v.ClientID.String())
	}
	if err := s.checkVINFree(ctx, v.VIN, uuid.Nil); err != nil {
		return nil, nil, err
	}
	return s.openTaskLocked(ctx, client, v, startNow)
}

func (s *TaskService) openTaskLocked(ctx context.Context, c *garage.Client, v *garage.Vehicle, startNow bool) (*task.Task, []Notice, error) {
	t := &task.Task{
		ID:           s.newID(),
		ClientID:     c.ID,
		VehicleID:    v.ID,
		CustomerName: c.Name,
		CarVIN:       v.VIN,
		Status:       task.StatusPending,
		Sessions:     []*task.WorkSession{},
		CreatedAt:    s.now(),
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		logger.Error("Service: failed to create task", err, zap.String("vehicle_id", v.ID.String()))
		return nil, nil, classify(err, ResourceTask, t.ID.String())
	}
	logger.Info("Service: task created", zap.String("task_id", t.ID.String()), zap.String("vehicle_id", v.ID.String()))
	if !startNow {
		return t, nil, nil
	}
	started, notices, err := s.beginLocked(ctx, t.ID, "start", s.engine.Start)
	if err != nil {
		if derr := s.tasks.Delete(ctx, t.ID); derr != nil {
			logger.Error("Service: failed to remove task after aborted start", derr, zap.String("task_id", t.ID.String()))
		}
		return nil, nil, err
	}
	return started, notices, nil
}

func (s *TaskService) UpdateVehicle(ctx context.Context, id uuid.UUID, in VehicleInput) (*garage.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.garage.GetVehicle(ctx, id)
	if err != nil {
		return nil, classify(err, ResourceVehicle, id.String())
	}
	vin, err := garage.NormalizeVIN(in.VIN)
	if err != nil {
		return nil, NewValidationError("vin", err.Error())
	}
	if vin != v.VIN {
		if err := s.checkVINFree(ctx, vin, id); err != nil {
			return nil, err
		}
	}
	in.apply(v, vin)
	if err := s.garage.UpdateVehicle(ctx, v); err != nil {
		return nil, classify(err, ResourceVehicle, id.String())
	}
	return v, nil
}

func (s *TaskService) GetVehicle(ctx context.Context, id uuid.UUID) (*garage.Vehicle, error) {
	v, err := s.garage.GetVehicle(ctx, id)
	if err != nil {
		return nil, classify(err, ResourceVehicle, id.String())
	}
	return v, nil
}

// ListVehicles returns every vehicle, or only the client's when clientID is set.
func (s *TaskService) ListVehicles(ctx context.Context, clientID *uuid.UUID) ([]*garage.Vehicle, error) {
	all, err := s.garage.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}
	if clientID == nil {
		return all, nil
	}
	out := make([]*garage.Vehicle, 0, len(all))
	for _, v := range all {
		if v.ClientID == *clientID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *TaskService) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.garage.GetVehicle(ctx, id); err != nil {
		return classify(err, ResourceVehicle, id.String())
	}
	owned, err := s.tasksWhere(ctx, func(t *task.Task) bool { return t.VehicleID == id })
	if err != nil {
		return err
	}
	if n := countActive(owned); n > 0 {
		return NewHasActiveTasks(ResourceVehicle, id.String(), n)
	}
	if err := s.deleteTasks(ctx, owned); err != nil {
		return err
	}
	if err := s.garage.DeleteVehicle(ctx, id); err != nil {
		s.restoreTasks(ctx, owned)
		return classify(err, ResourceVehicle, id.String())
	}
	s.purgeAttachments(ctx, owned)
	logger.Info("Service: vehicle deleted", zap.String("vehicle_id", id.String()))
	return nil
}

// RefreshTaskSnapshot copies the current client name and VIN onto the task.
func (s *TaskService) RefreshTaskSnapshot(ctx context.Context, taskID uuid.UUID) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	c, err := s.garage.GetClient(ctx, t.ClientID)
	if err != nil {
		return nil, classify(err, ResourceClient, t.ClientID.String())
	}
	v, err := s.garage.GetVehicle(ctx, t.VehicleID)
	if err != nil {
		return nil, classify(err, ResourceVehicle, t.VehicleID.String())
	}
	task.WithSnapshot(c.Name, v.VIN)(t)
	if err := s.tasks.Update(ctx, t); err != nil {
		return nil, classify(err, ResourceTask, taskID.String())
	}
	return t, nil
}

func (s *TaskService) GetSettings(ctx context.Context) (garage.Settings, error) {
	return s.settings(ctx)
}

func (s *TaskService) UpdateSettings(ctx context.Context, st garage.Settings) (garage.Settings, error) {
	st.Currency = strings.ToUpper(strings.TrimSpace(st.Currency))
	st.BusinessName = strings.TrimSpace(st.BusinessName)
	switch {
	case st.DefaultHourlyRate < 0 || math.IsNaN(st.DefaultHourlyRate) || math.IsInf(st.DefaultHourlyRate, 0):
		return garage.Settings{}, NewValidationError("default_hourly_rate", "must be a non-negative number")
	case st.Currency == "":
		return garage.Settings{}, NewValidationError("currency", "must not be empty")
	}
	if err := s.garage.SaveSettings(ctx, st); err != nil {
		return garage.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return st, nil
}

// SeedSettings stores st when the stored settings are still the built-in
// defaults, so configured values apply on first start only.
func (s *TaskService) SeedSettings(ctx context.Context, st garage.Settings) error {
	current, err := s.settings(ctx)
	if err != nil {
		return err
	}
	if current != garage.DefaultSettings() || st == current {
		return nil
	}
	_, err = s.UpdateSettings(ctx, st)
	return err
}

func (s *TaskService) ClientSummary(ctx context.Context, id uuid.UUID) (billing.ClientSummary, error) {
	c, err := s.garage.GetClient(ctx, id)
	if err != nil {
		return billing.ClientSummary{}, classify(err, ResourceClient, id.String())
	}
	vehicles, err := s.garage.ListVehicles(ctx)
	if err != nil {
		return billing.ClientSummary{}, err
	}
	tasks, err := s.loadAll(ctx)
	if err != nil {
		return billing.ClientSummary{}, err
	}
	st, err := s.settings(ctx)
	if err != nil {
		return billing.ClientSummary{}, err
	}
	return billing.SummarizeClient(c, vehicles, tasks, st.DefaultHourlyRate), nil
}

func (s *TaskService) VehicleSummary(ctx context.Context, id uuid.UUID) (billing.VehicleSummary, error) {
	v, err := s.garage.GetVehicle(ctx, id)
	if err != nil {
		return billing.VehicleSummary{}, classify(err, ResourceVehicle, id.String())
	}
	tasks, err := s.loadAll(ctx)
	if err != nil {
		return billing.VehicleSummary{}, err
	}
	st, err := s.settings(ctx)
	if err != nil {
		return billing.VehicleSummary{}, err
	}
	rate := billing.HourlyRate(s.clientOrNil(ctx, v.ClientID), st.DefaultHourlyRate)
	return billing.SummarizeVehicle(v, tasks, rate), nil
}

// ClientView is the read-only data behind the client portal.
type ClientView struct {
	BusinessName string                `json:"business_name"`
	Currency     string                `json:"currency"`
	Client       *garage.Client        `json:"client"`
	Vehicles     []*garage.Vehicle     `json:"vehicles"`
	Tasks        []*task.Task          `json:"tasks"`
	Summary      billing.ClientSummary `json:"summary"`
}

func (s *TaskService) ClientView(ctx context.Context, clientID uuid.UUID) (*ClientView, error) {
	summary, err := s.ClientSummary(ctx, clientID)
	if err != nil {
		return nil, err
	}
	c, err := s.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.ListVehicles(ctx, &clientID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.ListTasks(ctx, TaskFilter{ClientID: &clientID})
	if err != nil {
		return nil, err
	}
	st, err := s.settings(ctx)
	if err != nil {
		return nil, err
	}
	return &ClientView{
		BusinessName: st.BusinessName,
		Currency:     st.Currency,
		Client:       c,
		Vehicles:     vehicles,
		Tasks:        tasks,
		Summary:      summary,
	}, nil
}

// checkVINFree fails when vin belongs to a task that is not yet billed. Tasks
// of skipVehicle are ignored.
func (s *TaskService) checkVINFree(ctx context.Context, vin string, skipVehicle uuid.UUID) error {
	all, err := s.loadAll(ctx)
	if err != nil {
		return err
	}
	for _, t := range all {
		if t.VehicleID == skipVehicle || t.Status.IsSettled() {
			continue
		}
		if strings.EqualFold(t.CarVIN, vin) {
			return NewDuplicateVIN(vin, t.ID.String())
		}
	}
	return nil
}

func (s *TaskService) tasksWhere(ctx context.Context, keep func(*task.Task) bool) ([]*task.Task, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*task.Task
	for _, t := range all {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func countActive(tasks []*task.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Status.IsActive() {
			n++
		}
	}
	return n
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

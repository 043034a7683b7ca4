package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"repairTracker/internal/billing"
	"repairTracker/internal/editor"
	"repairTracker/internal/logger"
	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"
	repo "repairTracker/internal/repository"
	"repairTracker/internal/timer"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	NoticeAutoPaused     = "auto_paused"
	NoticeOverlapWarning = "overlap_warning"
	NoticeExportFailed   = "export_failed"
)

// Notice is a non-blocking message for the user; the operation that produced
// it succeeded.
type Notice struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// TaskService is the single writer of the task collection. Every mutation runs
// under mu, re-reads current state and is persisted with a version check, so
// at most one task is ever in progress.
type TaskService struct {
	mu sync.Mutex

	tasks  TaskRepository
	garage GarageRepository

	engine *timer.Engine
	editor *editor.Editor

	now         func() time.Time
	newID       func() uuid.UUID
	invoices    InvoiceExporter
	attachments AttachmentStore
}

func NewTaskService(tasks TaskRepository, garage GarageRepository, opts ...Option) *TaskService {
	s := &TaskService{
		tasks:  tasks,
		garage: garage,
		now:    time.Now,
		newID:  uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = timer.NewEngine(s.newID)
	s.editor = editor.New(s.newID)
	return s
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	return s.tasks.HealthCheck(ctx)
}

type TaskFilter struct {
	Status    task.Status
	ClientID  *uuid.UUID
	VehicleID *uuid.UUID
}

func (f TaskFilter) match(t *task.Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.ClientID != nil && t.ClientID != *f.ClientID {
		return false
	}
	if f.VehicleID != nil && t.VehicleID != *f.VehicleID {
		return false
	}
	return true
}

func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	return s.load(ctx, id)
}

func (s *TaskService) ListTasks(ctx context.Context, filter TaskFilter) ([]*task.Task, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*task.Task, 0, len(all))
	for _, t := range all {
		if filter.match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ActiveTask returns the task whose timer is running, or nil.
func (s *TaskService) ActiveTask(ctx context.Context) (*task.Task, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if t.IsRunning() {
			return t, nil
		}
	}
	return nil, nil
}

func (s *TaskService) StartTask(ctx context.Context, id uuid.UUID) (*task.Task, []Notice, error) {
	return s.begin(ctx, id, "start", s.engine.Start)
}

func (s *TaskService) ResumeTask(ctx context.Context, id uuid.UUID) (*task.Task, []Notice, error) {
	return s.begin(ctx, id, "resume", s.engine.Resume)
}

func (s *TaskService) RestartTask(ctx context.Context, id uuid.UUID) (*task.Task, []Notice, error) {
	return s.begin(ctx, id, "restart", s.engine.Restart)
}

func (s *TaskService) PauseTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	return s.transition(ctx, id, "pause", s.engine.Pause)
}

// StopTask closes the running period ahead of completion.
func (s *TaskService) StopTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	return s.transition(ctx, id, "stop", s.engine.Stop)
}

func (s *TaskService) CompleteTask(ctx context.Context, id uuid.UUID, in timer.Completion) (*task.Task, error) {
	return s.transition(ctx, id, "complete", func(t *task.Task, now time.Time) (timer.Result, error) {
		return s.engine.Complete(t, in, now)
	})
}

// MarkBilled moves the task to billed and hands the invoice to the exporter.
// An export failure does not undo the status change; it comes back as a notice.
func (s *TaskService) MarkBilled(ctx context.Context, id uuid.UUID) (*task.Task, []Notice, error) {
	t, err := s.transition(ctx, id, "bill", func(t *task.Task, _ time.Time) (timer.Result, error) {
		return s.engine.MarkBilled(t)
	})
	if err != nil {
		return nil, nil, err
	}
	if s.invoices == nil {
		return t, nil, nil
	}

	inv, err := s.invoiceFor(ctx, t)
	if err == nil {
		err = s.invoices.ExportInvoice(ctx, inv)
	}
	if err != nil {
		logger.Error("Service: invoice export failed", err, zap.String("task_id", id.String()))
		return t, []Notice{{
			Kind:    NoticeExportFailed,
			Title:   "Invoice not exported",
			Message: "The task was marked billed but the invoice could not be generated",
		}}, nil
	}
	logger.Info("Service: invoice exported", zap.String("task_id", id.String()), zap.String("number", inv.Number))
	return t, nil, nil
}

func (s *TaskService) MarkPaid(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	return s.transition(ctx, id, "pay", func(t *task.Task, _ time.Time) (timer.Result, error) {
		return s.engine.MarkPaid(t)
	})
}

// DeleteTask removes a task that is not running, together with its attachments.
func (s *TaskService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if t.IsRunning() {
		return NewBusinessError(CodeInProgress, "Task is running",
			"Pause or complete the task before deleting it",
			ToDetail("task_id", id.String()))
	}
	if err := s.deleteTasks(ctx, []*task.Task{t}); err != nil {
		return err
	}
	s.purgeAttachments(ctx, []*task.Task{t})
	return nil
}

type TimerView struct {
	TaskID    uuid.UUID   `json:"task_id"`
	Status    task.Status `json:"status"`
	Running   bool        `json:"running"`
	Seconds   int64       `json:"seconds"`
	Display   string      `json:"display"`
	TotalTime int64       `json:"total_time"`
	StartTime *time.Time  `json:"start_time,omitempty"`
}

// Timer reports the clock value to display for a task at request time.
func (s *TaskService) Timer(ctx context.Context, id uuid.UUID) (TimerView, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return TimerView{}, err
	}
	seconds := billing.CurrentSeconds(t, s.now())
	return TimerView{
		TaskID:    t.ID,
		Status:    t.Status,
		Running:   t.IsRunning(),
		Seconds:   seconds,
		Display:   billing.FormatDuration(seconds),
		TotalTime: t.TotalTime,
		StartTime: t.StartTime,
	}, nil
}

type SessionCost struct {
	SessionID uuid.UUID      `json:"session_id"`
	Totals    billing.Totals `json:"totals"`
}

type TaskCost struct {
	TaskID     uuid.UUID      `json:"task_id"`
	HourlyRate float64        `json:"hourly_rate"`
	Currency   string         `json:"currency"`
	Sessions   []SessionCost  `json:"sessions"`
	Totals     billing.Totals `json:"totals"`
}

func (s *TaskService) TaskCost(ctx context.Context, id uuid.UUID) (TaskCost, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return TaskCost{}, err
	}
	st, err := s.settings(ctx)
	if err != nil {
		return TaskCost{}, err
	}
	rate := billing.HourlyRate(s.clientOrNil(ctx, t.ClientID), st.DefaultHourlyRate)

	cost := TaskCost{
		TaskID:     t.ID,
		HourlyRate: rate,
		Currency:   st.Currency,
		Sessions:   make([]SessionCost, 0, len(t.Sessions)),
		Totals:     billing.TaskTotals(t, rate),
	}
	for _, ws := range t.Sessions {
		cost.Sessions = append(cost.Sessions, SessionCost{SessionID: ws.ID, Totals: billing.SessionTotals(ws, rate)})
	}
	return cost, nil
}

// Invoice builds the invoice document for any task, billed or not.
func (s *TaskService) Invoice(ctx context.Context, id uuid.UUID) (billing.Invoice, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return billing.Invoice{}, err
	}
	return s.invoiceFor(ctx, t)
}

func (s *TaskService) invoiceFor(ctx context.Context, t *task.Task) (billing.Invoice, error) {
	st, err := s.settings(ctx)
	if err != nil {
		return billing.Invoice{}, err
	}
	var vehicle *garage.Vehicle
	if v, err := s.garage.GetVehicle(ctx, t.VehicleID); err == nil {
		vehicle = v
	}
	return billing.BuildInvoice(t, s.clientOrNil(ctx, t.ClientID), vehicle, st, s.now()), nil
}

// begin runs a transition into in-progress. Any other running task is paused
// at the same instant and both writes go to the store as one batch, the
// paused task first so the store never sees two running tasks.
func (s *TaskService) begin(ctx context.Context, id uuid.UUID, op string, fn func(*task.Task, time.Time) (timer.Result, error)) (*task.Task, []Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginLocked(ctx, id, op, fn)
}

func (s *TaskService) beginLocked(ctx context.Context, id uuid.UUID, op string, fn func(*task.Task, time.Time) (timer.Result, error)) (*task.Task, []Notice, error) {
	target, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	res, err := fn(target, now)
	if err != nil {
		return nil, nil, classify(err, ResourceTask, id.String())
	}
	s.logResult(target, op, res)

	var (
		patches []task.Patch
		notices []Notice
	)
	for _, other := range all {
		if other.ID == id || !other.IsRunning() {
			continue
		}
		paused, err := s.engine.Pause(other, now)
		if err != nil {
			return nil, nil, classify(err, ResourceTask, other.ID.String())
		}
		s.logResult(other, "auto-pause", paused)
		patches = append(patches, task.NewPatch(other, task.WithTimerState(other)))
		notices = append(notices, Notice{
			Kind:  NoticeAutoPaused,
			Title: "Timer paused",
			Message: fmt.Sprintf("%s (%s) was paused after %s",
				other.CustomerName, other.CarVIN, billing.FormatDuration(paused.Elapsed)),
		})
	}
	patches = append(patches, task.NewPatch(target, task.WithTimerState(target)))

	if err := s.tasks.BatchUpdate(ctx, patches); err != nil {
		logger.Error("Service: failed to store timer change", err,
			zap.String("task_id", id.String()), zap.String("op", op), zap.Int("patches", len(patches)))
		return nil, nil, classify(err, ResourceTask, id.String())
	}

	fresh, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return fresh, notices, nil
}

func (s *TaskService) transition(ctx context.Context, id uuid.UUID, op string, fn func(*task.Task, time.Time) (timer.Result, error)) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := fn(t, s.now())
	if err != nil {
		return nil, classify(err, ResourceTask, id.String())
	}
	s.logResult(t, op, res)

	if err := s.tasks.Update(ctx, t); err != nil {
		logger.Error("Service: failed to store task", err, zap.String("task_id", id.String()), zap.String("op", op))
		return nil, classify(err, ResourceTask, id.String())
	}
	return t, nil
}

func (s *TaskService) logResult(t *task.Task, op string, res timer.Result) {
	fields := []zap.Field{
		zap.String("task_id", t.ID.String()),
		zap.String("op", op),
		zap.String("from", string(res.From)),
		zap.String("to", string(res.To)),
	}
	if res.SessionHealed {
		logger.Warn("Service: active session was missing, opened a new one",
			append(fields, zap.Error(task.ErrMissingActiveSession))...)
	}
	if res.MissingStart {
		logger.Warn("Service: running task had no start time, closed with zero elapsed",
			append(fields, zap.Error(task.ErrCorruptedDateData))...)
	}
	if res.ClosedPeriod != nil {
		fields = append(fields, zap.Int64("elapsed", res.Elapsed))
	}
	logger.Info("Service: task transition", fields...)
}

// load reads one task and repairs unreadable dates in place.
func (s *TaskService) load(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Info("Service: task not found", zap.String("target_id", id.String()))
		}
		return nil, classify(err, ResourceTask, id.String())
	}
	s.repair(t)
	return t, nil
}

func (s *TaskService) loadAll(ctx context.Context) ([]*task.Task, error) {
	all, err := s.tasks.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	for _, t := range all {
		s.repair(t)
	}
	return all, nil
}

func (s *TaskService) repair(t *task.Task) {
	for _, fix := range task.Repair(t, s.now()) {
		logger.Warn("Service: repaired stored date",
			zap.Error(task.ErrCorruptedDateData),
			zap.String("task_id", t.ID.String()),
			zap.String("field", fix.Field),
			zap.String("session_id", fix.SessionID),
			zap.String("period_id", fix.PeriodID),
			zap.String("fallback", fix.Fallback))
	}
}

// deleteTasks removes the task rows one by one. When a delete fails the rows
// already removed are written back, so the caller sees all or nothing.
func (s *TaskService) deleteTasks(ctx context.Context, tasks []*task.Task) error {
	for i, t := range tasks {
		if err := s.tasks.Delete(ctx, t.ID); err != nil {
			s.restoreTasks(ctx, tasks[:i])
			return classify(err, ResourceTask, t.ID.String())
		}
		logger.Info("Service: task deleted", zap.String("task_id", t.ID.String()))
	}
	return nil
}

// restoreTasks re-creates rows removed by a delete that could not finish.
func (s *TaskService) restoreTasks(ctx context.Context, tasks []*task.Task) {
	for _, t := range tasks {
		if err := s.tasks.Create(ctx, t); err != nil {
			logger.Error("Service: failed to restore task after aborted delete", err, zap.String("task_id", t.ID.String()))
		}
	}
}

// purgeAttachments runs once the task rows are gone. Failures are logged only.
func (s *TaskService) purgeAttachments(ctx context.Context, tasks []*task.Task) {
	if s.attachments == nil {
		return
	}
	for _, t := range tasks {
		if err := s.attachments.DeleteTaskAttachments(ctx, t.ID); err != nil {
			logger.Error("Service: failed to delete attachments", err, zap.String("task_id", t.ID.String()))
		}
	}
}

func (s *TaskService) clientOrNil(ctx context.Context, id uuid.UUID) *garage.Client {
	c, err := s.garage.GetClient(ctx, id)
	if err != nil {
		return nil
	}
	return c
}

func (s *TaskService) settings(ctx context.Context) (garage.Settings, error) {
	st, err := s.garage.GetSettings(ctx)
	if err != nil {
		return garage.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return st, nil
}

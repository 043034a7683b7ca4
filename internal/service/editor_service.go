package service

import (
	"context"
	"strconv"
	"time"

	"repairTracker/internal/editor"
	"repairTracker/internal/logger"
	"repairTracker/internal/models/task"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PartUpdate carries optional new values; invalid ones are ignored.
type PartUpdate struct {
	Quantity *int
	Price    *float64
}

func (s *TaskService) EditPeriodTime(ctx context.Context, taskID, sessionID, periodID uuid.UUID, field editor.Field, hhmm string) (*task.Task, error) {
	t, _, err := s.edit(ctx, taskID, func(t *task.Task) ([]Notice, error) {
		ws, err := sessionOf(t, sessionID)
		if err != nil {
			return nil, err
		}
		return nil, classify(s.editor.EditPeriodTime(ws, periodID, field, hhmm), ResourcePeriod, periodID.String())
	})
	return t, err
}

func (s *TaskService) EditPeriodDate(ctx context.Context, taskID, sessionID, periodID uuid.UUID, date time.Time) (*task.Task, error) {
	t, _, err := s.edit(ctx, taskID, func(t *task.Task) ([]Notice, error) {
		ws, err := sessionOf(t, sessionID)
		if err != nil {
			return nil, err
		}
		return nil, classify(s.editor.EditPeriodDate(ws, periodID, date), ResourcePeriod, periodID.String())
	})
	return t, err
}

func (s *TaskService) DeletePeriod(ctx context.Context, taskID, sessionID, periodID uuid.UUID) (*task.Task, error) {
	t, _, err := s.edit(ctx, taskID, func(t *task.Task) ([]Notice, error) {
		ws, err := sessionOf(t, sessionID)
		if err != nil {
			return nil, err
		}
		return nil, classify(s.editor.DeletePeriod(ws, periodID), ResourcePeriod, periodID.String())
	})
	return t, err
}

func (s *TaskService) DeleteSession(ctx context.Context, taskID, sessionID uuid.UUID) (*task.Task, error) {
	t, _, err := s.edit(ctx, taskID, func(t *task.Task) ([]Notice, error) {
		return nil, classify(s.editor.DeleteSession(t, sessionID), ResourceSession, sessionID.String())
	})
	return t, err
}

func (s *TaskService) AddPeriod(ctx context.Context, taskID, sessionID uuid.UUID) (*task.Task, error) {
	t, _, err := s.edit(ctx, taskID, func(t *task.Task) ([]Notice, error) {
		ws, err := sessionOf(t, sessionID)
		if err != nil {
			return nil, err
		}
		_, err = s.editor.AddPeriodToSession(ws)
		return nil, classify(err, ResourceSession, sessionID.String())
	})
	return t, err
}

// AddSession always keeps the new session; an overlap with today's periods is
// returned as a notice.
func (s *TaskService) AddSession(ctx context.Context, taskID uuid.UUID) (*task.Task, []Notice, error) {
	return s.edit(ctx, taskID, func(t *task.Task) ([]Notice, error) {
		_, warn := s.editor.AddNewSession(t, s.now())
		if warn == nil {
			return nil, nil
		}
		logger.Info("Service: new session overlaps today's work", zap.String("task_id", taskID.String()), zap.Error(warn))
		return []Notice{{Kind: NoticeOverlapWarning, Title: "Time overlap", Message: warn.Error()}}, nil
	})
}

func (s *TaskService) AddPart(ctx context.Context, taskID, sessionID uuid.UUID, part task.Part) (*task.Task, error) {
	t, _, err := s.edit(ctx, taskID, func(t *task.Task) ([]Notice, error) {
		ws, err := sessionOf(t, sessionID)
		if err != nil {
			return nil, err
		}
		return nil, classify(s.editor.AddPart(ws, part), ResourcePart, sessionID.String())
	})
	return t, err
}

func (s *TaskService) DeletePart(ctx context.Context, taskID, sessionID uuid.UUID, index int) (*task.Task, error) {
	t, _, err := s.edit(ctx, taskID, func(t *task.Task) ([]Notice, error) {
		ws, err := sessionOf(t, sessionID)
		if err != nil {
			return nil, err
		}
		return nil, classify(s.editor.DeletePart(ws, index), ResourcePart, partRef(sessionID, index))
	})
	return t, err
}

// UpdatePart applies the valid values in upd and silently keeps the current
// value for the rest.
func (s *TaskService) UpdatePart(ctx context.Context, taskID, sessionID uuid.UUID, index int, upd PartUpdate) (*task.Task, error) {
	t, _, err := s.edit(ctx, taskID, func(t *task.Task) ([]Notice, error) {
		ws, err := sessionOf(t, sessionID)
		if err != nil {
			return nil, err
		}
		if index < 0 || index >= len(ws.Parts) {
			return nil, NewNotFound(ResourcePart, partRef(sessionID, index))
		}
		if upd.Quantity != nil && !s.editor.UpdatePartQuantity(ws, index, *upd.Quantity) {
			logger.Debug("Service: ignored invalid part quantity", zap.Int("quantity", *upd.Quantity))
		}
		if upd.Price != nil && !s.editor.UpdatePartPrice(ws, index, *upd.Price) {
			logger.Debug("Service: ignored invalid part price", zap.Float64("price", *upd.Price))
		}
		return nil, nil
	})
	return t, err
}

// edit loads the task, applies fn, runs the editor save step and stores the
// result. A rejected edit stores nothing.
func (s *TaskService) edit(ctx context.Context, taskID uuid.UUID, fn func(*task.Task) ([]Notice, error)) (*task.Task, []Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	notices, err := fn(t)
	if err != nil {
		logger.Info("Service: edit rejected", zap.String("task_id", taskID.String()), zap.Error(err))
		return nil, nil, err
	}
	s.editor.Save(t)

	if err := s.tasks.Update(ctx, t); err != nil {
		logger.Error("Service: failed to store edited task", err, zap.String("task_id", taskID.String()))
		return nil, nil, classify(err, ResourceTask, taskID.String())
	}
	return t, notices, nil
}

func sessionOf(t *task.Task, sessionID uuid.UUID) (*task.WorkSession, error) {
	ws := t.Session(sessionID)
	if ws == nil {
		return nil, NewNotFound(ResourceSession, sessionID.String())
	}
	return ws, nil
}

func partRef(sessionID uuid.UUID, index int) string {
	return sessionID.String() + "#" + strconv.Itoa(index)
}

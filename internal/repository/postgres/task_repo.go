package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"repairTracker/internal/logger"
	"repairTracker/internal/models/task"
	repo "repairTracker/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const taskColumns = `id, client_id, vehicle_id, customer_name, car_vin, status, total_time,
	needs_follow_up, sessions, created_at, start_time, active_session_id, updated_at, version`

func scanTask(row pgx.Row) (*task.Task, error) {
	var (
		t        task.Task
		status   string
		sessions []byte
	)
	err := row.Scan(&t.ID, &t.ClientID, &t.VehicleID, &t.CustomerName, &t.CarVIN, &status, &t.TotalTime,
		&t.NeedsFollowUp, &sessions, &t.CreatedAt, &t.StartTime, &t.ActiveSessionID, &t.UpdatedAt, &t.Version)
	if err != nil {
		return nil, err
	}
	t.Status = task.Status(status)
	t.Sessions, err = task.DecodeSessions(sessions)
	if err != nil {
		return nil, fmt.Errorf("task %s sessions: %w", t.ID, err)
	}
	return &t, nil
}

func insertTask(ctx context.Context, q querier, t *task.Task) error {
	sessions, err := task.EncodeSessions(t.Sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	_, err = q.Exec(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID, t.ClientID, t.VehicleID, t.CustomerName, t.CarVIN, string(t.Status), t.TotalTime,
		t.NeedsFollowUp, string(sessions), t.CreatedAt, t.StartTime, t.ActiveSessionID, t.UpdatedAt, t.Version)
	return translate(err)
}

// updateTask writes t when the stored version still equals t.Version.
func updateTask(ctx context.Context, q querier, t *task.Task) error {
	sessions, err := task.EncodeSessions(t.Sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	err = q.QueryRow(ctx, `UPDATE tasks
			SET client_id = $1,
				vehicle_id = $2,
				customer_name = $3,
				car_vin = $4,
				status = $5,
				total_time = $6,
				needs_follow_up = $7,
				sessions = $8,
				start_time = $9,
				active_session_id = $10,
				updated_at = NOW(),
				version = version + 1
			WHERE id = $11 AND version = $12
			RETURNING updated_at, version`,
		t.ClientID, t.VehicleID, t.CustomerName, t.CarVIN, string(t.Status), t.TotalTime,
		t.NeedsFollowUp, string(sessions), t.StartTime, t.ActiveSessionID, t.ID, t.Version,
	).Scan(&t.UpdatedAt, &t.Version)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return translate(err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, t.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("task %s: %w", t.ID, repo.ErrNotFound)
	}
	logger.Warn("Repository: version conflict on update",
		zap.String("task_id", t.ID.String()),
		zap.Int("expected_version", t.Version))
	return repo.ErrVersionConflict
}

func (s *Storage) Create(ctx context.Context, t *task.Task) error {
	start := time.Now()
	defer warnIfSlow("create task", start)

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	if err := insertTask(ctx, s.pool, t); err != nil {
		logger.Error("Repository: failed to create task", err, zap.String("task_id", t.ID.String()))
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *Storage) Update(ctx context.Context, t *task.Task) error {
	start := time.Now()
	defer warnIfSlow("update task", start)

	if err := updateTask(ctx, s.pool, t); err != nil {
		if errors.Is(err, repo.ErrVersionConflict) || errors.Is(err, repo.ErrNotFound) {
			return err
		}
		logger.Error("Repository: failed to update task", err, zap.String("task_id", t.ID.String()))
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	start := time.Now()
	defer warnIfSlow("get task", start)

	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, repo.ErrNotFound)
		}
		logger.Error("Repository: failed to get task", err, zap.String("task_id", id.String()))
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *Storage) GetAll(ctx context.Context) ([]*task.Task, error) {
	start := time.Now()
	defer warnIfSlow("list tasks", start)

	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY seq`)
	if err != nil {
		logger.Error("Repository: failed to list tasks", err)
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Warn("Repository: skipping unreadable task row", zap.Error(err))
			continue
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (s *Storage) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	defer warnIfSlow("delete task", start)

	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		logger.Error("Repository: failed to delete task", err, zap.String("task_id", id.String()))
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", id, repo.ErrNotFound)
	}
	return nil
}

// BatchUpdate locks every target row, checks its version and applies the
// patches in order inside one transaction.
func (s *Storage) BatchUpdate(ctx context.Context, patches []task.Patch) error {
	start := time.Now()
	defer warnIfSlow("batch update", start)

	return s.withTx(ctx, func(tx pgx.Tx) error {
		for _, p := range patches {
			t, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, p.ID))
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("task %s: %w", p.ID, repo.ErrNotFound)
				}
				return fmt.Errorf("lock task %s: %w", p.ID, err)
			}
			if t.Version != p.Version {
				logger.Warn("Repository: version conflict in batch",
					zap.String("task_id", p.ID.String()),
					zap.Int("expected_version", p.Version),
					zap.Int("stored_version", t.Version))
				return repo.ErrVersionConflict
			}
			p.Apply(t)
			if err := updateTask(ctx, tx, t); err != nil {
				return fmt.Errorf("update task %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (s *Storage) ReplaceAll(ctx context.Context, tasks []*task.Task) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM tasks`); err != nil {
			return fmt.Errorf("clear tasks: %w", err)
		}
		for _, t := range tasks {
			c := t.Clone()
			if c.Version == 0 {
				c.Version = 1
			}
			if err := insertTask(ctx, tx, c); err != nil {
				return fmt.Errorf("insert task %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

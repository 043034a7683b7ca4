package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"repairTracker/internal/logger"
	"repairTracker/internal/models/task"
	repo "repairTracker/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const taskColumns = `id, client_id, vehicle_id, customer_name, car_vin, status, total_time,
	needs_follow_up, sessions, created_at, start_time, active_session_id, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask decodes a row leniently: unreadable timestamps come back as zero
// values for task.Repair to fill in.
func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t                                   task.Task
		sessions, createdAt                 string
		startTime, activeSession, updatedAt sql.NullString
	)
	err := row.Scan(&t.ID, &t.ClientID, &t.VehicleID, &t.CustomerName, &t.CarVIN, &t.Status, &t.TotalTime,
		&t.NeedsFollowUp, &sessions, &createdAt, &startTime, &activeSession, &updatedAt, &t.Version)
	if err != nil {
		return nil, err
	}

	t.Sessions, err = task.DecodeSessions([]byte(sessions))
	if err != nil {
		return nil, fmt.Errorf("task %s sessions: %w", t.ID, err)
	}
	t.CreatedAt, _ = task.ParseTimestamp(createdAt)
	if startTime.Valid {
		if st, ok := task.ParseTimestamp(startTime.String); ok {
			t.StartTime = &st
		}
	}
	if updatedAt.Valid {
		if ut, ok := task.ParseTimestamp(updatedAt.String); ok {
			t.UpdatedAt = &ut
		}
	}
	if activeSession.Valid {
		if id, err := uuid.Parse(activeSession.String); err == nil {
			t.ActiveSessionID = &id
		}
	}
	return &t, nil
}

func activeSessionValue(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func insertTask(ctx context.Context, q dbtx, t *task.Task) error {
	sessions, err := task.EncodeSessions(t.Sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.ClientID.String(), t.VehicleID.String(), t.CustomerName, t.CarVIN, string(t.Status), t.TotalTime,
		t.NeedsFollowUp, string(sessions), formatTime(t.CreatedAt), nullTime(t.StartTime),
		activeSessionValue(t.ActiveSessionID), nullTime(t.UpdatedAt), t.Version)
	return mapConstraint(err)
}

// updateTask writes t if the stored version equals t.Version and bumps it.
func updateTask(ctx context.Context, q dbtx, t *task.Task, now time.Time) error {
	sessions, err := task.EncodeSessions(t.Sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	res, err := q.ExecContext(ctx, `UPDATE tasks SET
			client_id = ?, vehicle_id = ?, customer_name = ?, car_vin = ?, status = ?, total_time = ?,
			needs_follow_up = ?, sessions = ?, start_time = ?, active_session_id = ?, updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		t.ClientID.String(), t.VehicleID.String(), t.CustomerName, t.CarVIN, string(t.Status), t.TotalTime,
		t.NeedsFollowUp, string(sessions), nullTime(t.StartTime), activeSessionValue(t.ActiveSessionID),
		formatTime(now), t.ID.String(), t.Version)
	if err != nil {
		return mapConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE id = ?`, t.ID.String()).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("task %s: %w", t.ID, repo.ErrNotFound)
		}
		logger.Warn("Repository: version conflict on update",
			zap.String("task_id", t.ID.String()),
			zap.Int("expected_version", t.Version))
		return repo.ErrVersionConflict
	}
	t.Version++
	t.UpdatedAt = &now
	return nil
}

func (s *Storage) Create(ctx context.Context, t *task.Task) error {
	start := time.Now()
	defer warnIfSlow("create task", start)

	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	if err := insertTask(ctx, s.db, t); err != nil {
		if errors.Is(err, repo.ErrAlreadyRunning) {
			return err
		}
		if _, getErr := s.GetByID(ctx, t.ID); getErr == nil {
			return fmt.Errorf("task %s: %w", t.ID, repo.ErrAlreadyExists)
		}
		logger.Error("Repository: failed to create task", err, zap.String("task_id", t.ID.String()))
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *Storage) Update(ctx context.Context, t *task.Task) error {
	start := time.Now()
	defer warnIfSlow("update task", start)

	if err := updateTask(ctx, s.db, t, s.now()); err != nil {
		if errors.Is(err, repo.ErrVersionConflict) || errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrAlreadyRunning) {
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

	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY rowid`)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id.String())
	if err != nil {
		logger.Error("Repository: failed to delete task", err, zap.String("task_id", id.String()))
		return fmt.Errorf("delete task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("task %s: %w", id, repo.ErrNotFound)
	}
	return nil
}

// BatchUpdate applies all patches in one transaction; any conflict rolls back all of them.
func (s *Storage) BatchUpdate(ctx context.Context, patches []task.Patch) error {
	start := time.Now()
	defer warnIfSlow("batch update", start)

	now := s.now()
	return s.withTx(ctx, func(tx dbtx) error {
		for _, p := range patches {
			t, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, p.ID.String()))
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("task %s: %w", p.ID, repo.ErrNotFound)
				}
				return fmt.Errorf("load task %s: %w", p.ID, err)
			}
			if t.Version != p.Version {
				logger.Warn("Repository: version conflict in batch",
					zap.String("task_id", p.ID.String()),
					zap.Int("expected_version", p.Version),
					zap.Int("stored_version", t.Version))
				return repo.ErrVersionConflict
			}
			p.Apply(t)
			if err := updateTask(ctx, tx, t, now); err != nil {
				return fmt.Errorf("update task %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (s *Storage) ReplaceAll(ctx context.Context, tasks []*task.Task) error {
	return s.withTx(ctx, func(tx dbtx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
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

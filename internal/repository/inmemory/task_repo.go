package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"repairTracker/internal/logger"
	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"
	repo "repairTracker/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Storage keeps every collection in process memory. Values are cloned on the
// way in and out so callers never share pointers with the store.
type Storage struct {
	mtx *sync.RWMutex

	tasks   map[uuid.UUID]*task.Task
	taskIDs []uuid.UUID

	clients    map[uuid.UUID]*garage.Client
	clientIDs  []uuid.UUID
	vehicles   map[uuid.UUID]*garage.Vehicle
	vehicleIDs []uuid.UUID
	settings   *garage.Settings

	now func() time.Time
}

func New() *Storage {
	return &Storage{
		mtx:      &sync.RWMutex{},
		tasks:    make(map[uuid.UUID]*task.Task),
		clients:  make(map[uuid.UUID]*garage.Client),
		vehicles: make(map[uuid.UUID]*garage.Vehicle),
		now:      time.Now,
	}
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: in-memory storage is healthy")
	return nil
}

func (s *Storage) Create(ctx context.Context, t *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("task %s: %w", t.ID, repo.ErrAlreadyExists)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	s.tasks[t.ID] = t.Clone()
	s.taskIDs = append(s.taskIDs, t.ID)
	return nil
}

// Update stores t only if the stored version still equals t.Version; on success
// t carries the new version and update time.
func (s *Storage) Update(ctx context.Context, t *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	stored, ok := s.tasks[t.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", t.ID, repo.ErrNotFound)
	}
	if stored.Version != t.Version {
		logger.Warn("Repository: version conflict on update",
			zap.String("task_id", t.ID.String()),
			zap.Int("expected_version", t.Version),
			zap.Int("stored_version", stored.Version))
		return repo.ErrVersionConflict
	}

	now := s.now()
	t.UpdatedAt = &now
	t.Version++
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, repo.ErrNotFound)
	}
	return t.Clone(), nil
}

func (s *Storage) GetAll(ctx context.Context) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make([]*task.Task, 0, len(s.taskIDs))
	for _, id := range s.taskIDs {
		out = append(out, s.tasks[id].Clone())
	}
	return out, nil
}

func (s *Storage) Delete(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, repo.ErrNotFound)
	}
	delete(s.tasks, id)
	s.taskIDs = without(s.taskIDs, id)
	return nil
}

// BatchUpdate applies every patch or none of them.
func (s *Storage) BatchUpdate(ctx context.Context, patches []task.Patch) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	staged := make([]*task.Task, 0, len(patches))
	for _, p := range patches {
		stored, ok := s.tasks[p.ID]
		if !ok {
			return fmt.Errorf("task %s: %w", p.ID, repo.ErrNotFound)
		}
		if stored.Version != p.Version {
			logger.Warn("Repository: version conflict in batch",
				zap.String("task_id", p.ID.String()),
				zap.Int("expected_version", p.Version),
				zap.Int("stored_version", stored.Version))
			return repo.ErrVersionConflict
		}
		next := stored.Clone()
		p.Apply(next)
		staged = append(staged, next)
	}

	now := s.now()
	for _, t := range staged {
		updated := now
		t.UpdatedAt = &updated
		t.Version++
		s.tasks[t.ID] = t
	}
	return nil
}

func (s *Storage) ReplaceAll(ctx context.Context, tasks []*task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.tasks = make(map[uuid.UUID]*task.Task, len(tasks))
	s.taskIDs = make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		c := t.Clone()
		if c.Version == 0 {
			c.Version = 1
		}
		if _, dup := s.tasks[c.ID]; !dup {
			s.taskIDs = append(s.taskIDs, c.ID)
		}
		s.tasks[c.ID] = c
	}
	return nil
}

func without(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

package inmemory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"
	"repairTracker/internal/repository"
	"repairTracker/internal/repository/inmemory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(status task.Status) *task.Task {
	return &task.Task{
		ID:           uuid.New(),
		ClientID:     uuid.New(),
		VehicleID:    uuid.New(),
		CustomerName: "Test Client",
		CarVIN:       "1HGCM82633A004352",
		Status:       status,
		Sessions:     []*task.WorkSession{},
	}
}

func TestStorage_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := inmemory.New()

	tk := newTask(task.StatusPending)
	require.NoError(t, s.Create(ctx, tk))
	assert.False(t, tk.CreatedAt.IsZero())
	assert.Equal(t, 1, tk.Version)

	got, err := s.GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.CustomerName, got.CustomerName)

	assert.ErrorIs(t, s.Create(ctx, tk), repository.ErrAlreadyExists)

	_, err = s.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStorage_Isolation(t *testing.T) {
	ctx := context.Background()
	s := inmemory.New()

	tk := newTask(task.StatusPending)
	tk.Sessions = append(tk.Sessions, task.NewSession(uuid.New(), time.Now()))
	require.NoError(t, s.Create(ctx, tk))

	tk.Sessions[0].Description = "mutated after create"
	got, err := s.GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Sessions[0].Description)

	got.Status = task.StatusPaid
	again, err := s.GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, again.Status)
}

func TestStorage_UpdateCAS(t *testing.T) {
	ctx := context.Background()
	s := inmemory.New()
	tk := newTask(task.StatusPending)
	require.NoError(t, s.Create(ctx, tk))

	stale, err := s.GetByID(ctx, tk.ID)
	require.NoError(t, err)

	tk.Status = task.StatusInProgress
	require.NoError(t, s.Update(ctx, tk))
	assert.Equal(t, 2, tk.Version)
	require.NotNil(t, tk.UpdatedAt)

	stale.Status = task.StatusPaid
	assert.ErrorIs(t, s.Update(ctx, stale), repository.ErrVersionConflict)

	got, err := s.GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, got.Status)

	assert.ErrorIs(t, s.Update(ctx, newTask(task.StatusPending)), repository.ErrNotFound)
}

func TestStorage_BatchUpdate(t *testing.T) {
	ctx := context.Background()
	s := inmemory.New()
	a := newTask(task.StatusInProgress)
	b := newTask(task.StatusPaused)
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	t.Run("all applied", func(t *testing.T) {
		err := s.BatchUpdate(ctx, []task.Patch{
			task.NewPatch(a, task.WithStatus(task.StatusPaused)),
			task.NewPatch(b, task.WithStatus(task.StatusInProgress)),
		})
		require.NoError(t, err)

		gotA, _ := s.GetByID(ctx, a.ID)
		gotB, _ := s.GetByID(ctx, b.ID)
		assert.Equal(t, task.StatusPaused, gotA.Status)
		assert.Equal(t, task.StatusInProgress, gotB.Status)
		assert.Equal(t, 2, gotA.Version)
		assert.Equal(t, 2, gotB.Version)
	})

	t.Run("none applied on conflict", func(t *testing.T) {
		fresh, _ := s.GetByID(ctx, a.ID)
		err := s.BatchUpdate(ctx, []task.Patch{
			task.NewPatch(fresh, task.WithStatus(task.StatusInProgress)),
			{ID: b.ID, Version: 1, Options: []task.TaskOption{task.WithStatus(task.StatusPaused)}},
		})
		assert.ErrorIs(t, err, repository.ErrVersionConflict)

		gotA, _ := s.GetByID(ctx, a.ID)
		assert.Equal(t, task.StatusPaused, gotA.Status)
		assert.Equal(t, 2, gotA.Version)
	})

	t.Run("none applied on missing task", func(t *testing.T) {
		fresh, _ := s.GetByID(ctx, a.ID)
		err := s.BatchUpdate(ctx, []task.Patch{
			task.NewPatch(fresh, task.WithStatus(task.StatusInProgress)),
			{ID: uuid.New(), Version: 1},
		})
		assert.ErrorIs(t, err, repository.ErrNotFound)
		gotA, _ := s.GetByID(ctx, a.ID)
		assert.Equal(t, task.StatusPaused, gotA.Status)
	})
}

func TestStorage_DeleteAndReplaceAll(t *testing.T) {
	ctx := context.Background()
	s := inmemory.New()
	a, b, c := newTask(task.StatusPending), newTask(task.StatusPaid), newTask(task.StatusBilled)
	for _, tk := range []*task.Task{a, b, c} {
		require.NoError(t, s.Create(ctx, tk))
	}

	require.NoError(t, s.Delete(ctx, b.ID))
	assert.ErrorIs(t, s.Delete(ctx, b.ID), repository.ErrNotFound)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, c.ID, all[1].ID)

	replacement := newTask(task.StatusCompleted)
	require.NoError(t, s.ReplaceAll(ctx, []*task.Task{replacement}))
	all, err = s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, replacement.ID, all[0].ID)
	assert.Equal(t, 1, all[0].Version)
}

func TestStorage_ConcurrentUpdatesSerialize(t *testing.T) {
	ctx := context.Background()
	s := inmemory.New()
	tk := newTask(task.StatusPending)
	require.NoError(t, s.Create(ctx, tk))

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cp, err := s.GetByID(ctx, tk.ID)
			if err != nil {
				return
			}
			cp.Version = 1
			if s.Update(ctx, cp) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestStorage_Garage(t *testing.T) {
	ctx := context.Background()
	s := inmemory.New()

	settings, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, garage.DefaultSettings(), settings)

	rate := 65.0
	client := &garage.Client{ID: uuid.New(), Name: "Dana", HourlyRate: &rate}
	require.NoError(t, s.CreateClient(ctx, client))
	assert.False(t, client.CreatedAt.IsZero())

	orphan := &garage.Vehicle{ID: uuid.New(), ClientID: uuid.New(), VIN: "JH4KA7561PC008269"}
	assert.ErrorIs(t, s.CreateVehicle(ctx, orphan), repository.ErrNotFound)

	v := &garage.Vehicle{ID: uuid.New(), ClientID: client.ID, VIN: "JH4KA7561PC008269"}
	require.NoError(t, s.CreateVehicle(ctx, v))

	rate = 1
	got, err := s.GetClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, 65.0, *got.HourlyRate)

	got.Name = "Dana K."
	require.NoError(t, s.UpdateClient(ctx, got))
	clients, err := s.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Dana K.", clients[0].Name)

	require.NoError(t, s.DeleteClient(ctx, client.ID))
	_, err = s.GetVehicle(ctx, v.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	custom := garage.Settings{DefaultHourlyRate: 40, Currency: "EUR", BusinessName: "Shop"}
	require.NoError(t, s.SaveSettings(ctx, custom))
	settings, err = s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, custom, settings)
}

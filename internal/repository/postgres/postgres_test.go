package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"
	"repairTracker/internal/repository"
	"repairTracker/internal/repository/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresTestSuite struct {
	suite.Suite
	container  testcontainers.Container
	storage    *postgres.Storage
	connString string
	ctx        context.Context
}

func (s *PostgresTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(s.ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(s.ctx, "5432")
	s.Require().NoError(err)
	s.connString = fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	s.Require().NoError(postgres.Migrate(s.connString))
	// a second run must be a no-op
	s.Require().NoError(postgres.Migrate(s.connString))

	s.storage, err = postgres.New(s.ctx, s.connString, postgres.PoolConfig{MaxConns: 4})
	s.Require().NoError(err)
}

func (s *PostgresTestSuite) TearDownSuite() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresTestSuite) SetupTest() {
	conn, err := pgx.Connect(s.ctx, s.connString)
	s.Require().NoError(err)
	defer conn.Close(s.ctx)

	_, err = conn.Exec(s.ctx, `TRUNCATE tasks, vehicles, clients, settings`)
	s.Require().NoError(err)
}

func newTask(status task.Status) *task.Task {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	session := task.NewSession(uuid.New(), start)
	session.Periods = append(session.Periods, task.NewPeriod(uuid.New(), start, start.Add(time.Hour)))
	return &task.Task{
		ID:           uuid.New(),
		ClientID:     uuid.New(),
		VehicleID:    uuid.New(),
		CustomerName: "Jane Doe",
		CarVIN:       "1HGCM82633A004352",
		Status:       status,
		TotalTime:    3600,
		Sessions:     []*task.WorkSession{session},
	}
}

func (s *PostgresTestSuite) TestCreateAndGet() {
	tk := newTask(task.StatusPending)
	s.Require().NoError(s.storage.Create(s.ctx, tk))

	got, err := s.storage.GetByID(s.ctx, tk.ID)
	s.Require().NoError(err)
	s.Equal(task.StatusPending, got.Status)
	s.Equal(1, got.Version)
	s.Require().Len(got.Sessions, 1)
	s.Equal(int64(3600), got.Sessions[0].Periods[0].Duration)

	s.ErrorIs(s.storage.Create(s.ctx, tk), repository.ErrAlreadyExists)

	_, err = s.storage.GetByID(s.ctx, uuid.New())
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *PostgresTestSuite) TestUpdateCAS() {
	tk := newTask(task.StatusPending)
	s.Require().NoError(s.storage.Create(s.ctx, tk))
	stale := tk.Clone()

	tk.Status = task.StatusInProgress
	now := time.Now()
	tk.StartTime = &now
	s.Require().NoError(s.storage.Update(s.ctx, tk))
	s.Equal(2, tk.Version)
	s.NotNil(tk.UpdatedAt)

	s.ErrorIs(s.storage.Update(s.ctx, stale), repository.ErrVersionConflict)
	s.ErrorIs(s.storage.Update(s.ctx, newTask(task.StatusPending)), repository.ErrNotFound)
}

func (s *PostgresTestSuite) TestSingleRunningIndex() {
	a := newTask(task.StatusInProgress)
	s.Require().NoError(s.storage.Create(s.ctx, a))

	b := newTask(task.StatusInProgress)
	s.ErrorIs(s.storage.Create(s.ctx, b), repository.ErrAlreadyRunning)
}

func (s *PostgresTestSuite) TestBatchUpdateHandsOverTimer() {
	running := newTask(task.StatusInProgress)
	next := newTask(task.StatusPending)
	s.Require().NoError(s.storage.Create(s.ctx, running))
	s.Require().NoError(s.storage.Create(s.ctx, next))

	s.Require().NoError(s.storage.BatchUpdate(s.ctx, []task.Patch{
		task.NewPatch(running, task.WithStatus(task.StatusPaused)),
		task.NewPatch(next, task.WithStatus(task.StatusInProgress)),
	}))

	gotRunning, err := s.storage.GetByID(s.ctx, running.ID)
	s.Require().NoError(err)
	gotNext, err := s.storage.GetByID(s.ctx, next.ID)
	s.Require().NoError(err)
	s.Equal(task.StatusPaused, gotRunning.Status)
	s.Equal(task.StatusInProgress, gotNext.Status)
}

func (s *PostgresTestSuite) TestBatchUpdateRollsBack() {
	a := newTask(task.StatusPending)
	b := newTask(task.StatusPending)
	s.Require().NoError(s.storage.Create(s.ctx, a))
	s.Require().NoError(s.storage.Create(s.ctx, b))

	err := s.storage.BatchUpdate(s.ctx, []task.Patch{
		task.NewPatch(a, task.WithStatus(task.StatusInProgress)),
		{ID: b.ID, Version: 99, Options: []task.TaskOption{task.WithStatus(task.StatusPaused)}},
	})
	s.ErrorIs(err, repository.ErrVersionConflict)

	got, err := s.storage.GetByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(task.StatusPending, got.Status)
	s.Equal(1, got.Version)
}

func (s *PostgresTestSuite) TestGetAllDeleteReplaceAll() {
	first, second := newTask(task.StatusPending), newTask(task.StatusCompleted)
	s.Require().NoError(s.storage.Create(s.ctx, first))
	s.Require().NoError(s.storage.Create(s.ctx, second))

	all, err := s.storage.GetAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(first.ID, all[0].ID)

	s.Require().NoError(s.storage.Delete(s.ctx, first.ID))
	s.ErrorIs(s.storage.Delete(s.ctx, first.ID), repository.ErrNotFound)

	restored := newTask(task.StatusPaid)
	s.Require().NoError(s.storage.ReplaceAll(s.ctx, []*task.Task{restored}))
	all, err = s.storage.GetAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(restored.ID, all[0].ID)
}

func (s *PostgresTestSuite) TestGarage() {
	rate := 120.0
	c := &garage.Client{ID: uuid.New(), Name: "Acme Fleet", HourlyRate: &rate}
	s.Require().NoError(s.storage.CreateClient(s.ctx, c))

	v := &garage.Vehicle{ID: uuid.New(), ClientID: c.ID, VIN: "1HGCM82633A004352"}
	s.Require().NoError(s.storage.CreateVehicle(s.ctx, v))

	orphan := &garage.Vehicle{ID: uuid.New(), ClientID: uuid.New(), VIN: "1HGCM82633A004353"}
	s.ErrorIs(s.storage.CreateVehicle(s.ctx, orphan), repository.ErrNotFound)

	got, err := s.storage.GetClient(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.HourlyRate)
	s.InDelta(120.0, *got.HourlyRate, 1e-9)

	st, err := s.storage.GetSettings(s.ctx)
	s.Require().NoError(err)
	s.Equal(garage.DefaultSettings(), st)

	want := garage.Settings{DefaultHourlyRate: 75, Currency: "EUR", BusinessName: "Garage"}
	s.Require().NoError(s.storage.SaveSettings(s.ctx, want))
	st, err = s.storage.GetSettings(s.ctx)
	s.Require().NoError(err)
	s.Equal(want, st)

	s.Require().NoError(s.storage.DeleteClient(s.ctx, c.ID))
	_, err = s.storage.GetVehicle(s.ctx, v.ID)
	s.ErrorIs(err, repository.ErrNotFound)
}

func TestPostgresTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresTestSuite))
}

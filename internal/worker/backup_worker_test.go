package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"repairTracker/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockBackuper struct {
	mock.Mock
}

func (m *MockBackuper) Backup(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func TestNewBackupWorker_Interval(t *testing.T) {
	custom := time.Minute
	zero := time.Duration(0)

	assert.Equal(t, 6*time.Hour, worker.NewBackupWorker(nil, nil).Interval())
	assert.Equal(t, 6*time.Hour, worker.NewBackupWorker(nil, &zero).Interval())
	assert.Equal(t, time.Minute, worker.NewBackupWorker(nil, &custom).Interval())
}

func TestBackupWorker_Run(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "success", want: true},
		{name: "failure is reported", err: errors.New("disk full"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := new(MockBackuper)
			b.On("Backup", mock.Anything).Return("backup-x.yaml", tt.err).Once()

			w := worker.NewBackupWorker(b, nil)
			assert.Equal(t, tt.want, w.Run(context.Background()))
			b.AssertExpectations(t)
		})
	}
}

func TestBackupWorker_StartRunsOnTicksUntilCancelled(t *testing.T) {
	b := new(MockBackuper)
	ran := make(chan struct{}, 8)
	b.On("Backup", mock.Anything).Return("backup-x.yaml", nil).Run(func(mock.Arguments) {
		select {
		case ran <- struct{}{}:
		default:
		}
	})

	interval := 10 * time.Millisecond
	w := worker.NewBackupWorker(b, &interval)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-ran:
		case <-time.After(2 * time.Second):
			t.Fatal("backup did not run")
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

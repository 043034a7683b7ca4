package worker

import (
	"context"
	"time"

	"repairTracker/internal/logger"

	"go.uber.org/zap"
)

const defaultInterval = 6 * time.Hour

type Backuper interface {
	Backup(ctx context.Context) (string, error)
}

// BackupWorker takes a snapshot on every tick until its context is cancelled.
type BackupWorker struct {
	backuper Backuper
	interval time.Duration
}

func NewBackupWorker(b Backuper, interval *time.Duration) *BackupWorker {
	intervalToSet := defaultInterval
	if interval != nil && *interval > 0 {
		intervalToSet = *interval
	}
	return &BackupWorker{
		backuper: b,
		interval: intervalToSet,
	}
}

func (w *BackupWorker) Interval() time.Duration {
	return w.interval
}

func (w *BackupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("Worker: backup worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ticker.C:
			w.Run(ctx)
		case <-ctx.Done():
			logger.Info("Worker: backup worker stopping")
			return
		}
	}
}

// Run takes one snapshot. Failures are logged and retried on the next tick.
func (w *BackupWorker) Run(ctx context.Context) bool {
	start := time.Now()
	name, err := w.backuper.Backup(ctx)
	if err != nil {
		logger.Warn("Worker: backup failed", zap.Error(err), zap.Duration("ms", time.Since(start)))
		return false
	}
	logger.Info("Worker: backup finished", zap.String("name", name), zap.Duration("ms", time.Since(start)))
	return true
}

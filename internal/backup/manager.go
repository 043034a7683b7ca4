package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"repairTracker/internal/logger"
	"repairTracker/internal/service"

	"go.uber.org/zap"
)

// DataSource is implemented by service.TaskService.
type DataSource interface {
	ExportData(ctx context.Context) (*service.Dataset, error)
	ImportData(ctx context.Context, d *service.Dataset) error
}

type Manager struct {
	src   DataSource
	sinks []Sink
	now   func() time.Time
}

func NewManager(src DataSource, sinks ...Sink) *Manager {
	return &Manager{src: src, sinks: sinks, now: time.Now}
}

// Backup writes one snapshot to every sink. It fails when any sink fails,
// after trying all of them.
func (m *Manager) Backup(ctx context.Context) (string, error) {
	if len(m.sinks) == 0 {
		return "", errors.New("no backup destination configured")
	}
	start := time.Now()

	data, err := m.src.ExportData(ctx)
	if err != nil {
		return "", fmt.Errorf("export data: %w", err)
	}
	ts := m.now()
	var buf bytes.Buffer
	if err := Encode(&buf, NewSnapshot(data, ts)); err != nil {
		return "", err
	}

	name := Name(ts)
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Put(ctx, name, buf.Bytes()); err != nil {
			logger.Error("Backup: sink failed", err, zap.String("name", name), zap.String("sink", fmt.Sprintf("%T", sink)))
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return name, err
	}

	logger.Info("Backup: snapshot written",
		zap.String("name", name),
		zap.Int("bytes", buf.Len()),
		zap.Int("tasks", len(data.Tasks)),
		zap.Duration("ms", time.Since(start)))
	return name, nil
}

// Restore replaces all stored data with the snapshot read from r.
func (m *Manager) Restore(ctx context.Context, r io.Reader) error {
	snap, err := Decode(r)
	if err != nil {
		return err
	}
	if err := m.src.ImportData(ctx, snap.Dataset()); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	logger.Info("Backup: snapshot restored", zap.Time("created_at", snap.CreatedAt))
	return nil
}

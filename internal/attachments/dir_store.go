// Package attachments keeps per-task files such as vehicle photos.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"repairTracker/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrInvalidName = errors.New("invalid attachment name")

// DirStore keeps the files of each task in <root>/<taskID>/.
type DirStore struct {
	root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

func (d *DirStore) taskDir(taskID uuid.UUID) string {
	return filepath.Join(d.root, taskID.String())
}

// Save stores r under name, replacing a file with the same name.
func (d *DirStore) Save(ctx context.Context, taskID uuid.UUID, name string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	dir := d.taskDir(taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create attachment dir: %w", err)
	}

	f, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create attachment: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return 0, fmt.Errorf("write attachment: %w", err)
	}
	if err := os.Rename(f.Name(), filepath.Join(dir, name)); err != nil {
		os.Remove(f.Name())
		return 0, fmt.Errorf("write attachment: %w", err)
	}
	return n, nil
}

func (d *DirStore) List(ctx context.Context, taskID uuid.UUID) ([]string, error) {
	entries, err := os.ReadDir(d.taskDir(taskID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (d *DirStore) DeleteTaskAttachments(ctx context.Context, taskID uuid.UUID) error {
	if err := os.RemoveAll(d.taskDir(taskID)); err != nil {
		return fmt.Errorf("delete attachments of %s: %w", taskID, err)
	}
	logger.Debug("Attachments: removed", zap.String("task_id", taskID.String()))
	return nil
}

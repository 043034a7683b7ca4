// Package backup writes point-in-time YAML snapshots of every stored
// collection and restores them.
package backup

import (
	"errors"
	"fmt"
	"io"
	"time"

	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"
	"repairTracker/internal/service"

	"gopkg.in/yaml.v3"
)

const FormatVersion = 1

var ErrUnsupportedFormat = errors.New("unsupported backup format")

type Snapshot struct {
	FormatVersion int               `yaml:"format_version"`
	CreatedAt     time.Time         `yaml:"created_at"`
	Settings      garage.Settings   `yaml:"settings"`
	Clients       []*garage.Client  `yaml:"clients"`
	Vehicles      []*garage.Vehicle `yaml:"vehicles"`
	Tasks         []*task.Task      `yaml:"tasks"`
}

func NewSnapshot(d *service.Dataset, createdAt time.Time) *Snapshot {
	return &Snapshot{
		FormatVersion: FormatVersion,
		CreatedAt:     createdAt.UTC(),
		Settings:      d.Settings,
		Clients:       d.Clients,
		Vehicles:      d.Vehicles,
		Tasks:         d.Tasks,
	}
}

func (s *Snapshot) Dataset() *service.Dataset {
	return &service.Dataset{
		Settings: s.Settings,
		Clients:  nonNil(s.Clients),
		Vehicles: nonNil(s.Vehicles),
		Tasks:    nonNil(s.Tasks),
	}
}

func Encode(w io.Writer, s *Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, s.FormatVersion)
	}
	return &s, nil
}

// Name is the object name a snapshot taken at ts is stored under; names sort
// by time.
func Name(ts time.Time) string {
	return "backup-" + ts.UTC().Format("20060102T150405Z") + ".yaml"
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

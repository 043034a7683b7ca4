package inmemory

import (
	"context"
	"fmt"

	"repairTracker/internal/models/garage"
	repo "repairTracker/internal/repository"

	"github.com/google/uuid"
)

func (s *Storage) CreateClient(ctx context.Context, c *garage.Client) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.clients[c.ID]; ok {
		return fmt.Errorf("client %s: %w", c.ID, repo.ErrAlreadyExists)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.clients[c.ID] = cloneClient(c)
	s.clientIDs = append(s.clientIDs, c.ID)
	return nil
}

func (s *Storage) UpdateClient(ctx context.Context, c *garage.Client) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.clients[c.ID]; !ok {
		return fmt.Errorf("client %s: %w", c.ID, repo.ErrNotFound)
	}
	s.clients[c.ID] = cloneClient(c)
	return nil
}

func (s *Storage) GetClient(ctx context.Context, id uuid.UUID) (*garage.Client, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	c, ok := s.clients[id]
	if !ok {
		return nil, fmt.Errorf("client %s: %w", id, repo.ErrNotFound)
	}
	return cloneClient(c), nil
}

func (s *Storage) ListClients(ctx context.Context) ([]*garage.Client, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make([]*garage.Client, 0, len(s.clientIDs))
	for _, id := range s.clientIDs {
		out = append(out, cloneClient(s.clients[id]))
	}
	return out, nil
}

// DeleteClient removes the client together with its vehicles.
func (s *Storage) DeleteClient(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.clients[id]; !ok {
		return fmt.Errorf("client %s: %w", id, repo.ErrNotFound)
	}
	for _, vid := range append([]uuid.UUID(nil), s.vehicleIDs...) {
		if s.vehicles[vid].ClientID == id {
			delete(s.vehicles, vid)
			s.vehicleIDs = without(s.vehicleIDs, vid)
		}
	}
	delete(s.clients, id)
	s.clientIDs = without(s.clientIDs, id)
	return nil
}

func (s *Storage) CreateVehicle(ctx context.Context, v *garage.Vehicle) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.clients[v.ClientID]; !ok {
		return fmt.Errorf("client %s: %w", v.ClientID, repo.ErrNotFound)
	}
	if _, ok := s.vehicles[v.ID]; ok {
		return fmt.Errorf("vehicle %s: %w", v.ID, repo.ErrAlreadyExists)
	}
	s.vehicles[v.ID] = cloneVehicle(v)
	s.vehicleIDs = append(s.vehicleIDs, v.ID)
	return nil
}

func (s *Storage) UpdateVehicle(ctx context.Context, v *garage.Vehicle) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.vehicles[v.ID]; !ok {
		return fmt.Errorf("vehicle %s: %w", v.ID, repo.ErrNotFound)
	}
	s.vehicles[v.ID] = cloneVehicle(v)
	return nil
}

func (s *Storage) GetVehicle(ctx context.Context, id uuid.UUID) (*garage.Vehicle, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	v, ok := s.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("vehicle %s: %w", id, repo.ErrNotFound)
	}
	return cloneVehicle(v), nil
}

func (s *Storage) ListVehicles(ctx context.Context) ([]*garage.Vehicle, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make([]*garage.Vehicle, 0, len(s.vehicleIDs))
	for _, id := range s.vehicleIDs {
		out = append(out, cloneVehicle(s.vehicles[id]))
	}
	return out, nil
}

func (s *Storage) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.vehicles[id]; !ok {
		return fmt.Errorf("vehicle %s: %w", id, repo.ErrNotFound)
	}
	delete(s.vehicles, id)
	s.vehicleIDs = without(s.vehicleIDs, id)
	return nil
}

// GetSettings falls back to the defaults until settings are first saved.
func (s *Storage) GetSettings(ctx context.Context) (garage.Settings, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if s.settings == nil {
		return garage.DefaultSettings(), nil
	}
	return *s.settings, nil
}

func (s *Storage) SaveSettings(ctx context.Context, settings garage.Settings) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.settings = &settings
	return nil
}

// ReplaceGarage swaps clients, vehicles and settings in one step.
func (s *Storage) ReplaceGarage(ctx context.Context, clients []*garage.Client, vehicles []*garage.Vehicle, settings garage.Settings) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.clients = make(map[uuid.UUID]*garage.Client, len(clients))
	s.clientIDs = make([]uuid.UUID, 0, len(clients))
	for _, c := range clients {
		s.clients[c.ID] = cloneClient(c)
		s.clientIDs = append(s.clientIDs, c.ID)
	}
	s.vehicles = make(map[uuid.UUID]*garage.Vehicle, len(vehicles))
	s.vehicleIDs = make([]uuid.UUID, 0, len(vehicles))
	for _, v := range vehicles {
		s.vehicles[v.ID] = cloneVehicle(v)
		s.vehicleIDs = append(s.vehicleIDs, v.ID)
	}
	s.settings = &settings
	return nil
}

func cloneClient(c *garage.Client) *garage.Client {
	out := *c
	out.Email = cloneString(c.Email)
	out.Phone = cloneString(c.Phone)
	if c.HourlyRate != nil {
		rate := *c.HourlyRate
		out.HourlyRate = &rate
	}
	return &out
}

func cloneVehicle(v *garage.Vehicle) *garage.Vehicle {
	out := *v
	out.Make = cloneString(v.Make)
	out.Model = cloneString(v.Model)
	out.Color = cloneString(v.Color)
	if v.Year != nil {
		year := *v.Year
		out.Year = &year
	}
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

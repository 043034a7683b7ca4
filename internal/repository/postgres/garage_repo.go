package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"repairTracker/internal/logger"
	"repairTracker/internal/models/garage"
	repo "repairTracker/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	clientColumns  = `id, name, email, phone, hourly_rate, created_at`
	vehicleColumns = `id, client_id, vin, make, model, year, color`
)

func scanClient(row pgx.Row) (*garage.Client, error) {
	var c garage.Client
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.HourlyRate, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanVehicle(row pgx.Row) (*garage.Vehicle, error) {
	var v garage.Vehicle
	if err := row.Scan(&v.ID, &v.ClientID, &v.VIN, &v.Make, &v.Model, &v.Year, &v.Color); err != nil {
		return nil, err
	}
	return &v, nil
}

func insertClient(ctx context.Context, q querier, c *garage.Client) error {
	_, err := q.Exec(ctx, `INSERT INTO clients (`+clientColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Name, c.Email, c.Phone, c.HourlyRate, c.CreatedAt)
	return translate(err)
}

func insertVehicle(ctx context.Context, q querier, v *garage.Vehicle) error {
	_, err := q.Exec(ctx, `INSERT INTO vehicles (`+vehicleColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.ClientID, v.VIN, v.Make, v.Model, v.Year, v.Color)
	return translate(err)
}

func upsertSettings(ctx context.Context, q querier, st garage.Settings) error {
	_, err := q.Exec(ctx, `INSERT INTO settings (id, default_hourly_rate, currency, business_name)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			default_hourly_rate = EXCLUDED.default_hourly_rate,
			currency = EXCLUDED.currency,
			business_name = EXCLUDED.business_name`,
		st.DefaultHourlyRate, st.Currency, st.BusinessName)
	return err
}

func rowsOrNotFound(tag pgconn.CommandTag, what string, id uuid.UUID) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", what, id, repo.ErrNotFound)
	}
	return nil
}

func (s *Storage) CreateClient(ctx context.Context, c *garage.Client) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if err := insertClient(ctx, s.pool, c); err != nil {
		logger.Error("Repository: failed to create client", err)
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func (s *Storage) UpdateClient(ctx context.Context, c *garage.Client) error {
	tag, err := s.pool.Exec(ctx, `UPDATE clients SET name = $1, email = $2, phone = $3, hourly_rate = $4 WHERE id = $5`,
		c.Name, c.Email, c.Phone, c.HourlyRate, c.ID)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return rowsOrNotFound(tag, "client", c.ID)
}

func (s *Storage) GetClient(ctx context.Context, id uuid.UUID) (*garage.Client, error) {
	c, err := scanClient(s.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", id, repo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func (s *Storage) ListClients(ctx context.Context) ([]*garage.Client, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []*garage.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *Storage) DeleteClient(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return rowsOrNotFound(tag, "client", id)
}

func (s *Storage) CreateVehicle(ctx context.Context, v *garage.Vehicle) error {
	if err := insertVehicle(ctx, s.pool, v); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			logger.Error("Repository: failed to create vehicle", err)
		}
		return fmt.Errorf("create vehicle: %w", err)
	}
	return nil
}

func (s *Storage) UpdateVehicle(ctx context.Context, v *garage.Vehicle) error {
	tag, err := s.pool.Exec(ctx, `UPDATE vehicles
		SET client_id = $1, vin = $2, make = $3, model = $4, year = $5, color = $6
		WHERE id = $7`,
		v.ClientID, v.VIN, v.Make, v.Model, v.Year, v.Color, v.ID)
	if err != nil {
		return fmt.Errorf("update vehicle: %w", translate(err))
	}
	return rowsOrNotFound(tag, "vehicle", v.ID)
}

func (s *Storage) GetVehicle(ctx context.Context, id uuid.UUID) (*garage.Vehicle, error) {
	v, err := scanVehicle(s.pool.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("vehicle %s: %w", id, repo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	return v, nil
}

func (s *Storage) ListVehicles(ctx context.Context) ([]*garage.Vehicle, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY vin, id`)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	vehicles := []*garage.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (s *Storage) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	return rowsOrNotFound(tag, "vehicle", id)
}

func (s *Storage) GetSettings(ctx context.Context) (garage.Settings, error) {
	var st garage.Settings
	err := s.pool.QueryRow(ctx, `SELECT default_hourly_rate, currency, business_name FROM settings WHERE id = 1`).
		Scan(&st.DefaultHourlyRate, &st.Currency, &st.BusinessName)
	if errors.Is(err, pgx.ErrNoRows) {
		return garage.DefaultSettings(), nil
	}
	if err != nil {
		return garage.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return st, nil
}

func (s *Storage) SaveSettings(ctx context.Context, st garage.Settings) error {
	if err := upsertSettings(ctx, s.pool, st); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *Storage) ReplaceGarage(ctx context.Context, clients []*garage.Client, vehicles []*garage.Vehicle, st garage.Settings) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM clients`); err != nil {
			return fmt.Errorf("clear clients: %w", err)
		}
		for _, c := range clients {
			if err := insertClient(ctx, tx, c); err != nil {
				return fmt.Errorf("insert client %s: %w", c.ID, err)
			}
		}
		for _, v := range vehicles {
			if err := insertVehicle(ctx, tx, v); err != nil {
				return fmt.Errorf("insert vehicle %s: %w", v.ID, err)
			}
		}
		return upsertSettings(ctx, tx, st)
	})
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"repairTracker/internal/logger"
	"repairTracker/internal/models/garage"
	"repairTracker/internal/models/task"
	repo "repairTracker/internal/repository"

	"github.com/google/uuid"
)

const (
	clientColumns  = `id, name, email, phone, hourly_rate, created_at`
	vehicleColumns = `id, client_id, vin, make, model, year, color`
)

func scanClient(row rowScanner) (*garage.Client, error) {
	var (
		c            garage.Client
		email, phone sql.NullString
		rate         sql.NullFloat64
		createdAt    string
	)
	if err := row.Scan(&c.ID, &c.Name, &email, &phone, &rate, &createdAt); err != nil {
		return nil, err
	}
	c.Email = stringPtr(email)
	c.Phone = stringPtr(phone)
	if rate.Valid {
		v := rate.Float64
		c.HourlyRate = &v
	}
	c.CreatedAt, _ = task.ParseTimestamp(createdAt)
	return &c, nil
}

func scanVehicle(row rowScanner) (*garage.Vehicle, error) {
	var (
		v                   garage.Vehicle
		make_, model, color sql.NullString
		year                sql.NullInt64
	)
	if err := row.Scan(&v.ID, &v.ClientID, &v.VIN, &make_, &model, &year, &color); err != nil {
		return nil, err
	}
	v.Make = stringPtr(make_)
	v.Model = stringPtr(model)
	v.Color = stringPtr(color)
	if year.Valid {
		y := int(year.Int64)
		v.Year = &y
	}
	return &v, nil
}

func clientArgs(c *garage.Client) []any {
	var rate sql.NullFloat64
	if c.HourlyRate != nil {
		rate = sql.NullFloat64{Float64: *c.HourlyRate, Valid: true}
	}
	return []any{c.ID.String(), c.Name, nullString(c.Email), nullString(c.Phone), rate, formatTime(c.CreatedAt)}
}

func vehicleArgs(v *garage.Vehicle) []any {
	var year sql.NullInt64
	if v.Year != nil {
		year = sql.NullInt64{Int64: int64(*v.Year), Valid: true}
	}
	return []any{v.ID.String(), v.ClientID.String(), v.VIN, nullString(v.Make), nullString(v.Model), year, nullString(v.Color)}
}

func insertClient(ctx context.Context, q dbtx, c *garage.Client) error {
	_, err := q.ExecContext(ctx, `INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?)`, clientArgs(c)...)
	return err
}

func insertVehicle(ctx context.Context, q dbtx, v *garage.Vehicle) error {
	_, err := q.ExecContext(ctx, `INSERT INTO vehicles (`+vehicleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`, vehicleArgs(v)...)
	return err
}

func upsertSettings(ctx context.Context, q dbtx, st garage.Settings) error {
	_, err := q.ExecContext(ctx, `INSERT INTO settings (id, default_hourly_rate, currency, business_name)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			default_hourly_rate = excluded.default_hourly_rate,
			currency = excluded.currency,
			business_name = excluded.business_name`,
		st.DefaultHourlyRate, st.Currency, st.BusinessName)
	return err
}

func affectedOrNotFound(res sql.Result, what string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, repo.ErrNotFound)
	}
	return nil
}

func (s *Storage) CreateClient(ctx context.Context, c *garage.Client) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	if err := insertClient(ctx, s.db, c); err != nil {
		logger.Error("Repository: failed to create client", err)
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func (s *Storage) UpdateClient(ctx context.Context, c *garage.Client) error {
	args := clientArgs(c)
	res, err := s.db.ExecContext(ctx, `UPDATE clients SET name = ?, email = ?, phone = ?, hourly_rate = ? WHERE id = ?`,
		args[1], args[2], args[3], args[4], args[0])
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return affectedOrNotFound(res, "client", c.ID)
}

func (s *Storage) GetClient(ctx context.Context, id uuid.UUID) (*garage.Client, error) {
	c, err := scanClient(s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", id, repo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func (s *Storage) ListClients(ctx context.Context) ([]*garage.Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY rowid`)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return affectedOrNotFound(res, "client", id)
}

func (s *Storage) CreateVehicle(ctx context.Context, v *garage.Vehicle) error {
	if _, err := s.GetClient(ctx, v.ClientID); err != nil {
		return err
	}
	if err := insertVehicle(ctx, s.db, v); err != nil {
		logger.Error("Repository: failed to create vehicle", err)
		return fmt.Errorf("create vehicle: %w", err)
	}
	return nil
}

func (s *Storage) UpdateVehicle(ctx context.Context, v *garage.Vehicle) error {
	args := vehicleArgs(v)
	res, err := s.db.ExecContext(ctx, `UPDATE vehicles SET client_id = ?, vin = ?, make = ?, model = ?, year = ?, color = ? WHERE id = ?`,
		args[1], args[2], args[3], args[4], args[5], args[6], args[0])
	if err != nil {
		return fmt.Errorf("update vehicle: %w", err)
	}
	return affectedOrNotFound(res, "vehicle", v.ID)
}

func (s *Storage) GetVehicle(ctx context.Context, id uuid.UUID) (*garage.Vehicle, error) {
	v, err := scanVehicle(s.db.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vehicle %s: %w", id, repo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	return v, nil
}

func (s *Storage) ListVehicles(ctx context.Context) ([]*garage.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY rowid`)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	return affectedOrNotFound(res, "vehicle", id)
}

func (s *Storage) GetSettings(ctx context.Context) (garage.Settings, error) {
	var st garage.Settings
	err := s.db.QueryRowContext(ctx, `SELECT default_hourly_rate, currency, business_name FROM settings WHERE id = 1`).
		Scan(&st.DefaultHourlyRate, &st.Currency, &st.BusinessName)
	if errors.Is(err, sql.ErrNoRows) {
		return garage.DefaultSettings(), nil
	}
	if err != nil {
		return garage.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return st, nil
}

func (s *Storage) SaveSettings(ctx context.Context, st garage.Settings) error {
	if err := upsertSettings(ctx, s.db, st); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *Storage) ReplaceGarage(ctx context.Context, clients []*garage.Client, vehicles []*garage.Vehicle, st garage.Settings) error {
	return s.withTx(ctx, func(tx dbtx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vehicles`); err != nil {
			return fmt.Errorf("clear vehicles: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM clients`); err != nil {
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

package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/obdai/obdai/pkg/models"
)

// Vehicle is a car saved in a user's garage.
type Vehicle struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Year      string
	Make      string
	Model     string
	Trim      string
	Nickname  string
	CreatedAt time.Time
}

// Context returns the vehicle as diagnosis input.
func (v *Vehicle) Context() models.VehicleContext {
	return models.VehicleContext{Year: v.Year, Make: v.Make, Model: v.Model, Trim: v.Trim}
}

// CreateVehicleParams contains parameters for saving a vehicle.
type CreateVehicleParams struct {
	UserID   uuid.UUID
	Year     string
	Make     string
	Model    string
	Trim     string
	Nickname string
}

const vehicleColumns = `id, user_id, year, make, model, COALESCE(trim, ''), COALESCE(nickname, ''), created_at`

func scanVehicle(row pgx.Row) (*Vehicle, error) {
	var v Vehicle
	err := row.Scan(&v.ID, &v.UserID, &v.Year, &v.Make, &v.Model, &v.Trim, &v.Nickname, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateVehicle saves a vehicle. Empty trim and nickname are stored as NULL.
func (db *DB) CreateVehicle(ctx context.Context, params CreateVehicleParams) (*Vehicle, error) {
	return scanVehicle(db.pool.QueryRow(ctx,
		`INSERT INTO vehicles (user_id, year, make, model, trim, nickname)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		 RETURNING `+vehicleColumns,
		params.UserID, params.Year, params.Make, params.Model, params.Trim, params.Nickname,
	))
}

// GetVehicle retrieves a vehicle owned by userID, or nil.
func (db *DB) GetVehicle(ctx context.Context, userID, id uuid.UUID) (*Vehicle, error) {
	return scanVehicle(db.pool.QueryRow(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
}

// ListVehicles returns a user's garage, newest first.
func (db *DB) ListVehicles(ctx context.Context, userID uuid.UUID) ([]Vehicle, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		var v Vehicle
		if err := rows.Scan(&v.ID, &v.UserID, &v.Year, &v.Make, &v.Model, &v.Trim, &v.Nickname, &v.CreatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// CountVehicles returns how many vehicles a user has saved.
func (db *DB) CountVehicles(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM vehicles WHERE user_id = $1`,
		userID,
	).Scan(&count)
	return count, err
}

// DeleteVehicle removes a vehicle owned by userID. It reports whether a row was deleted.
func (db *DB) DeleteVehicle(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`DELETE FROM vehicles WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

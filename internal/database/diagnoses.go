package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/obdai/obdai/pkg/models"
)

// Diagnosis is a stored diagnosis run.
type Diagnosis struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	VehicleID *uuid.UUID
	Vehicle   models.VehicleContext
	Codes     string
	Result    *models.DiagnosisResult
	CreatedAt time.Time
}

// CreateDiagnosisParams contains parameters for recording a diagnosis.
type CreateDiagnosisParams struct {
	UserID    uuid.UUID
	VehicleID *uuid.UUID
	Vehicle   models.VehicleContext
	Codes     string
	Result    *models.DiagnosisResult
}

// ListDiagnosesParams contains parameters for listing history.
type ListDiagnosesParams struct {
	UserID    uuid.UUID
	VehicleID *uuid.UUID
	Limit     int
	Offset    int
}

// diagnosisColumns is the standard column list for diagnosis queries.
const diagnosisColumns = `id, user_id, vehicle_id, year, make, model, COALESCE(trim, ''), codes, result, created_at`

func scanDiagnosisInto(row pgx.Row, d *Diagnosis) error {
	var resultJSON []byte
	if err := row.Scan(
		&d.ID, &d.UserID, &d.VehicleID,
		&d.Vehicle.Year, &d.Vehicle.Make, &d.Vehicle.Model, &d.Vehicle.Trim,
		&d.Codes, &resultJSON, &d.CreatedAt,
	); err != nil {
		return err
	}
	d.Result = &models.DiagnosisResult{}
	return json.Unmarshal(resultJSON, d.Result)
}

func scanDiagnosis(row pgx.Row) (*Diagnosis, error) {
	var d Diagnosis
	err := scanDiagnosisInto(row, &d)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDiagnosis stores a completed diagnosis.
func (db *DB) CreateDiagnosis(ctx context.Context, params CreateDiagnosisParams) (*Diagnosis, error) {
	if params.Result == nil {
		return nil, errors.New("diagnosis result required")
	}
	resultJSON, err := json.Marshal(params.Result)
	if err != nil {
		return nil, err
	}

	return scanDiagnosis(db.pool.QueryRow(ctx,
		`INSERT INTO diagnoses (user_id, vehicle_id, year, make, model, trim, codes, result)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		 RETURNING `+diagnosisColumns,
		params.UserID, params.VehicleID,
		params.Vehicle.Year, params.Vehicle.Make, params.Vehicle.Model, params.Vehicle.Trim,
		params.Codes, resultJSON,
	))
}

// GetDiagnosis retrieves a diagnosis owned by userID, or nil.
func (db *DB) GetDiagnosis(ctx context.Context, userID, id uuid.UUID) (*Diagnosis, error) {
	return scanDiagnosis(db.pool.QueryRow(ctx,
		`SELECT `+diagnosisColumns+` FROM diagnoses WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
}

// ListDiagnoses returns a user's history, newest first, optionally for one vehicle.
func (db *DB) ListDiagnoses(ctx context.Context, params ListDiagnosesParams) ([]Diagnosis, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}

	var rows pgx.Rows
	var err error

	if params.VehicleID != nil {
		rows, err = db.pool.Query(ctx,
			`SELECT `+diagnosisColumns+` FROM diagnoses
			 WHERE user_id = $1 AND vehicle_id = $2
			 ORDER BY created_at DESC
			 LIMIT $3 OFFSET $4`,
			params.UserID, *params.VehicleID, params.Limit, params.Offset,
		)
	} else {
		rows, err = db.pool.Query(ctx,
			`SELECT `+diagnosisColumns+` FROM diagnoses
			 WHERE user_id = $1
			 ORDER BY created_at DESC
			 LIMIT $2 OFFSET $3`,
			params.UserID, params.Limit, params.Offset,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var diagnoses []Diagnosis
	for rows.Next() {
		var d Diagnosis
		if err := scanDiagnosisInto(rows, &d); err != nil {
			return nil, err
		}
		diagnoses = append(diagnoses, d)
	}
	return diagnoses, rows.Err()
}

// DeleteOldDiagnoses deletes history recorded before olderThan.
func (db *DB) DeleteOldDiagnoses(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := db.pool.Exec(ctx,
		`DELETE FROM diagnoses WHERE created_at < $1`,
		olderThan,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

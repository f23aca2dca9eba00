package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/obdai/obdai/internal/database"
	"github.com/obdai/obdai/internal/diagnosis"
	"github.com/obdai/obdai/pkg/models"
)

// Store is the persistence the API needs. *database.DB implements it.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, email, passwordHash string) (*database.User, error)
	GetUserByEmail(ctx context.Context, email string) (*database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*database.User, error)
	GetOrCreateExternalUser(ctx context.Context, externalID, email string, emailVerified bool) (*database.User, error)

	CreateVehicle(ctx context.Context, params database.CreateVehicleParams) (*database.Vehicle, error)
	GetVehicle(ctx context.Context, userID, id uuid.UUID) (*database.Vehicle, error)
	ListVehicles(ctx context.Context, userID uuid.UUID) ([]database.Vehicle, error)
	CountVehicles(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteVehicle(ctx context.Context, userID, id uuid.UUID) (bool, error)

	CreateDiagnosis(ctx context.Context, params database.CreateDiagnosisParams) (*database.Diagnosis, error)
	GetDiagnosis(ctx context.Context, userID, id uuid.UUID) (*database.Diagnosis, error)
	ListDiagnoses(ctx context.Context, params database.ListDiagnosesParams) ([]database.Diagnosis, error)
}

var _ Store = (*database.DB)(nil)

// Diagnoser runs one diagnosis. *diagnosis.Pipeline implements it.
type Diagnoser interface {
	DiagnoseWithProgress(ctx context.Context, vehicle models.VehicleContext, rawCodes string, emitter diagnosis.ProgressEmitter) (*models.DiagnosisResult, error)
}

var _ Diagnoser = (*diagnosis.Pipeline)(nil)

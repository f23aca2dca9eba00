package database

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/obdai/obdai/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// testURL is DATABASE_URL, or a throwaway container when Docker is available.
var testURL string

func TestMain(m *testing.M) {
	flag.Parse()
	testURL = os.Getenv("DATABASE_URL")

	var container *postgres.PostgresContainer
	if testURL == "" && !testing.Short() {
		container, testURL = startPostgres()
	}

	if testURL != "" {
		if err := Migrate(testURL); err != nil {
			fmt.Fprintf(os.Stderr, "migrations failed: %v\n", err)
			testURL = ""
		}
	}

	code := m.Run()

	if container != nil {
		_ = testcontainers.TerminateContainer(container)
	}
	os.Exit(code)
}

// startPostgres returns "" when no container runtime is available.
func startPostgres() (container *postgres.PostgresContainer, url string) {
	defer func() {
		if r := recover(); r != nil {
			container, url = nil, ""
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("obdai"),
		postgres.WithUsername("obdai"),
		postgres.WithPassword("obdai"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, ""
	}

	connStr, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(c)
		return nil, ""
	}
	return c, connStr
}

// testDB returns a connected DB or skips if no database is available.
func testDB(t *testing.T) *DB {
	t.Helper()
	if testURL == "" {
		t.Skip("no database: set DATABASE_URL or run Docker")
	}

	db, err := New(context.Background(), testURL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s+%s@example.com", prefix, uuid.New().String()[:8])
}

func createTestUser(t *testing.T, db *DB) *User {
	t.Helper()
	user, err := db.CreateUser(context.Background(), uniqueEmail("driver"), "$2a$12$hash")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.DeleteUser(context.Background(), user.ID) })
	return user
}

func TestMigrations(t *testing.T) {
	if testURL == "" {
		t.Skip("no database: set DATABASE_URL or run Docker")
	}

	// Up is idempotent; MigrateDown is not run as it would break parallel packages.
	require.NoError(t, Migrate(testURL))

	version, dirty, err := MigrationVersion(testURL)
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)
}

func TestUserCRUD(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	email := uniqueEmail("crud")
	user, err := db.CreateUser(ctx, email, "$2a$12$hash")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, email, user.Email)
	assert.True(t, user.HasPassword())
	assert.Empty(t, user.ExternalID)

	_, err = db.CreateUser(ctx, email, "$2a$12$other")
	assert.ErrorIs(t, err, ErrEmailTaken)

	found, err := db.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	found, err = db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, email, found.Email)

	missing, err := db.GetUserByEmail(ctx, uniqueEmail("nobody"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, db.DeleteUser(ctx, user.ID))
	found, err = db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestGetOrCreateExternalUser(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	subject := "kp_" + uuid.New().String()[:8]
	created, err := db.GetOrCreateExternalUser(ctx, subject, uniqueEmail("provider"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.DeleteUser(ctx, created.ID) })
	assert.Equal(t, subject, created.ExternalID)
	assert.False(t, created.HasPassword())

	again, err := db.GetOrCreateExternalUser(ctx, subject, "ignored@example.com", true)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	// An existing password account is linked rather than duplicated.
	local := createTestUser(t, db)
	linkedSubject := "kp_" + uuid.New().String()[:8]
	linked, err := db.GetOrCreateExternalUser(ctx, linkedSubject, local.Email, true)
	require.NoError(t, err)
	assert.Equal(t, local.ID, linked.ID)
	assert.Equal(t, linkedSubject, linked.ExternalID)
	assert.True(t, linked.HasPassword())

	// A second subject cannot take over an already linked address.
	_, err = db.GetOrCreateExternalUser(ctx, "kp_"+uuid.New().String()[:8], local.Email, true)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestGetOrCreateExternalUser_UnverifiedEmail(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	local := createTestUser(t, db)
	_, err := db.GetOrCreateExternalUser(ctx, "kp_"+uuid.New().String()[:8], local.Email, false)
	assert.ErrorIs(t, err, ErrEmailTaken)

	found, err := db.GetUserByID(ctx, local.ID)
	require.NoError(t, err)
	assert.Empty(t, found.ExternalID)
}

func TestVehicleCRUD(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	user := createTestUser(t, db)
	other := createTestUser(t, db)

	first, err := db.CreateVehicle(ctx, CreateVehicleParams{UserID: user.ID, Year: "2019", Make: "Honda", Model: "Civic"})
	require.NoError(t, err)
	assert.Empty(t, first.Trim)
	assert.Empty(t, first.Nickname)

	second, err := db.CreateVehicle(ctx, CreateVehicleParams{
		UserID: user.ID, Year: "2024", Make: "Ford", Model: "F-150", Trim: "XLT - 3.5L - Automatic", Nickname: "Work truck",
	})
	require.NoError(t, err)
	assert.Equal(t, models.VehicleContext{Year: "2024", Make: "Ford", Model: "F-150", Trim: "XLT - 3.5L - Automatic"}, second.Context())

	vehicles, err := db.ListVehicles(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	assert.Equal(t, second.ID, vehicles[0].ID, "newest first")

	count, err := db.CountVehicles(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	found, err := db.GetVehicle(ctx, other.ID, first.ID)
	require.NoError(t, err)
	assert.Nil(t, found, "vehicles are private to their owner")

	deleted, err := db.DeleteVehicle(ctx, other.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = db.DeleteVehicle(ctx, user.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	found, err = db.GetVehicle(ctx, user.ID, first.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestDiagnosisHistory(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	user := createTestUser(t, db)

	vehicle, err := db.CreateVehicle(ctx, CreateVehicleParams{UserID: user.ID, Year: "2024", Make: "Ford", Model: "F-150"})
	require.NoError(t, err)

	result := &models.DiagnosisResult{
		Explanation:    "Lean on both banks. " + models.Disclaimer,
		Commonality:    "Common.",
		SuggestedFixes: []models.SuggestedFix{{Name: "Vacuum leak", Difficulty: 2, Description: "Smoke test.", IsMostLikely: true}},
	}

	saved, err := db.CreateDiagnosis(ctx, CreateDiagnosisParams{
		UserID: user.ID, VehicleID: &vehicle.ID, Vehicle: vehicle.Context(), Codes: "P0171, P0174", Result: result,
	})
	require.NoError(t, err)
	assert.Equal(t, result, saved.Result)
	require.NotNil(t, saved.VehicleID)
	assert.Equal(t, vehicle.ID, *saved.VehicleID)

	_, err = db.CreateDiagnosis(ctx, CreateDiagnosisParams{
		UserID: user.ID, Vehicle: models.VehicleContext{Year: "2010", Make: "Toyota", Model: "Camry"}, Codes: "P0300", Result: result,
	})
	require.NoError(t, err)

	all, err := db.ListDiagnoses(ctx, ListDiagnosesParams{UserID: user.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "P0300", all[0].Codes)

	forVehicle, err := db.ListDiagnoses(ctx, ListDiagnosesParams{UserID: user.ID, VehicleID: &vehicle.ID})
	require.NoError(t, err)
	require.Len(t, forVehicle, 1)
	assert.Equal(t, saved.ID, forVehicle[0].ID)

	found, err := db.GetDiagnosis(ctx, user.ID, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "P0171, P0174", found.Codes)

	// Deleting the vehicle keeps the history entry.
	_, err = db.DeleteVehicle(ctx, user.ID, vehicle.ID)
	require.NoError(t, err)
	found, err = db.GetDiagnosis(ctx, user.ID, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, found.VehicleID)

	_, err = db.CreateDiagnosis(ctx, CreateDiagnosisParams{UserID: user.ID})
	assert.Error(t, err)
}

func TestDeleteOldDiagnoses(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	user := createTestUser(t, db)

	params := CreateDiagnosisParams{
		UserID:  user.ID,
		Vehicle: models.VehicleContext{Year: "2015", Make: "Honda", Model: "Civic"},
		Codes:   "P0300",
		Result:  &models.DiagnosisResult{Explanation: "x", Commonality: "y"},
	}
	old, err := db.CreateDiagnosis(ctx, params)
	require.NoError(t, err)
	recent, err := db.CreateDiagnosis(ctx, params)
	require.NoError(t, err)

	_, err = db.pool.Exec(ctx, `UPDATE diagnoses SET created_at = NOW() - INTERVAL '100 days' WHERE id = $1`, old.ID)
	require.NoError(t, err)

	deleted, err := db.DeleteOldDiagnoses(ctx, time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))

	found, err := db.GetDiagnosis(ctx, user.ID, old.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
	found, err = db.GetDiagnosis(ctx, user.ID, recent.ID)
	require.NoError(t, err)
	assert.NotNil(t, found)
}

package api

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/obdai/obdai/internal/database"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu        sync.Mutex
	pingErr   error
	users     []*database.User
	vehicles  []database.Vehicle
	diagnoses []database.Diagnosis
	clock     time.Time
}

func newMemStore() *memStore {
	return &memStore{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// tick returns strictly increasing timestamps so newest-first ordering is stable.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) CreateUser(_ context.Context, email, passwordHash string) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return nil, database.ErrEmailTaken
		}
	}
	u := &database.User{ID: uuid.New(), Email: email, PasswordHash: passwordHash, CreatedAt: m.tick()}
	m.users = append(m.users, u)
	return u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetUserByID(_ context.Context, id uuid.UUID) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetOrCreateExternalUser(_ context.Context, externalID, email string, emailVerified bool) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ExternalID == externalID {
			return u, nil
		}
	}
	for _, u := range m.users {
		if email != "" && u.Email == email {
			if u.ExternalID != "" || !emailVerified {
				return nil, database.ErrEmailTaken
			}
			u.ExternalID = externalID
			return u, nil
		}
	}
	u := &database.User{ID: uuid.New(), Email: email, ExternalID: externalID, CreatedAt: m.tick()}
	m.users = append(m.users, u)
	return u, nil
}

func (m *memStore) CreateVehicle(_ context.Context, p database.CreateVehicleParams) (*database.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := database.Vehicle{
		ID: uuid.New(), UserID: p.UserID,
		Year: p.Year, Make: p.Make, Model: p.Model, Trim: p.Trim,
		Nickname: p.Nickname, CreatedAt: m.tick(),
	}
	m.vehicles = append(m.vehicles, v)
	return &v, nil
}

func (m *memStore) GetVehicle(_ context.Context, userID, id uuid.UUID) (*database.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vehicles {
		if v.ID == id && v.UserID == userID {
			return &v, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListVehicles(_ context.Context, userID uuid.UUID) ([]database.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Vehicle
	for _, v := range slices.Backward(m.vehicles) {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memStore) CountVehicles(ctx context.Context, userID uuid.UUID) (int, error) {
	vs, err := m.ListVehicles(ctx, userID)
	return len(vs), err
}

func (m *memStore) DeleteVehicle(_ context.Context, userID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range m.vehicles {
		if v.ID == id && v.UserID == userID {
			m.vehicles = slices.Delete(m.vehicles, i, i+1)
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateDiagnosis(_ context.Context, p database.CreateDiagnosisParams) (*database.Diagnosis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := database.Diagnosis{
		ID: uuid.New(), UserID: p.UserID, VehicleID: p.VehicleID,
		Vehicle: p.Vehicle, Codes: p.Codes, Result: p.Result, CreatedAt: m.tick(),
	}
	m.diagnoses = append(m.diagnoses, d)
	return &d, nil
}

func (m *memStore) GetDiagnosis(_ context.Context, userID, id uuid.UUID) (*database.Diagnosis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.diagnoses {
		if d.ID == id && d.UserID == userID {
			return &d, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListDiagnoses(_ context.Context, p database.ListDiagnosesParams) ([]database.Diagnosis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	var out []database.Diagnosis
	for _, d := range slices.Backward(m.diagnoses) {
		if d.UserID != p.UserID {
			continue
		}
		if p.VehicleID != nil && (d.VehicleID == nil || *d.VehicleID != *p.VehicleID) {
			continue
		}
		out = append(out, d)
	}
	if p.Offset >= len(out) {
		return nil, nil
	}
	out = out[p.Offset:]
	return out[:min(limit, len(out))], nil
}

func (m *memStore) diagnosisCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.diagnoses)
}

var _ Store = (*memStore)(nil)

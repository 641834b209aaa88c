package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/cryptox"
	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/events"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/accountflags"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/addresses"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// --- users ---

type fakeUsersRepo struct {
	rows map[string]*models.User

	getErr            error
	createErr         error
	updateErr         error
	updatePasswordErr error

	updates []models.UserPatch
}

func newFakeUsersRepo(us ...*models.User) *fakeUsersRepo {
	f := &fakeUsersRepo{rows: map[string]*models.User{}}
	for _, u := range us {
		c := *u
		f.rows[u.ID] = &c
	}
	return f
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	c := *u
	f.rows[u.ID] = &c
	return u, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.rows {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) Update(_ context.Context, id string, p models.UserPatch) (*models.User, error) {
	f.updates = append(f.updates, p)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	u, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	c := *u
	return &c, nil
}

func (f *fakeUsersRepo) UpdatePassword(_ context.Context, id, hash string) error {
	if f.updatePasswordErr != nil {
		return f.updatePasswordErr
	}
	u, ok := f.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

// --- addresses ---

type addrKey struct {
	kind   models.AddressKind
	userID string
}

type fakeAddressesRepo struct {
	rows   map[addrKey]models.Address
	addErr error
	getErr error
}

func newFakeAddressesRepo() *fakeAddressesRepo {
	return &fakeAddressesRepo{rows: map[addrKey]models.Address{}}
}

func (f *fakeAddressesRepo) Add(_ context.Context, kind models.AddressKind, userID string, a models.Address) (bool, error) {
	if f.addErr != nil {
		return false, f.addErr
	}
	k := addrKey{kind, userID}
	if _, ok := f.rows[k]; ok {
		return false, nil
	}
	f.rows[k] = a
	return true, nil
}

func (f *fakeAddressesRepo) Get(_ context.Context, kind models.AddressKind, userID string) (*models.Address, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.rows[addrKey{kind, userID}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}

// --- account flags ---

type fakeFlagsRepo struct {
	reset, inactive, admin map[string]bool

	stateErr error
	clearErr error
	// clearMiss makes ClearReset report that no marker was deleted.
	clearMiss bool
}

func newFakeFlagsRepo() *fakeFlagsRepo {
	return &fakeFlagsRepo{reset: map[string]bool{}, inactive: map[string]bool{}, admin: map[string]bool{}}
}

func (f *fakeFlagsRepo) State(_ context.Context, id string) (models.AccountState, error) {
	if f.stateErr != nil {
		return models.AccountState{}, f.stateErr
	}
	return models.NewAccountState(f.reset[id], f.inactive[id], f.admin[id]), nil
}

func toggle(m map[string]bool, id string, on bool) (bool, error) {
	if m[id] == on {
		return false, nil
	}
	if on {
		m[id] = true
	} else {
		delete(m, id)
	}
	return true, nil
}

func (f *fakeFlagsRepo) RequireReset(_ context.Context, id string) (bool, error) {
	return toggle(f.reset, id, true)
}

func (f *fakeFlagsRepo) ClearReset(_ context.Context, id string) (bool, error) {
	if f.clearErr != nil {
		return false, f.clearErr
	}
	if f.clearMiss {
		return false, nil
	}
	return toggle(f.reset, id, false)
}

func (f *fakeFlagsRepo) Deactivate(_ context.Context, id string) (bool, error) {
	return toggle(f.inactive, id, true)
}

func (f *fakeFlagsRepo) Reactivate(_ context.Context, id string) (bool, error) {
	return toggle(f.inactive, id, false)
}

func (f *fakeFlagsRepo) GrantAdmin(_ context.Context, id string) (bool, error) {
	return toggle(f.admin, id, true)
}

func (f *fakeFlagsRepo) RevokeAdmin(_ context.Context, id string) (bool, error) {
	return toggle(f.admin, id, false)
}

// --- manager, publisher ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	a *fakeAddressesRepo
	f *fakeFlagsRepo
}

func newFakeRepoManager(us ...*models.User) *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(us...), a: newFakeAddressesRepo(), f: newFakeFlagsRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository               { return m.u }
func (m *fakeRepoManager) Addresses(dbx.DBTX) addresses.Repository       { return m.a }
func (m *fakeRepoManager) AccountFlags(dbx.DBTX) accountflags.Repository { return m.f }

type fakePublisher struct {
	sent []events.Event
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	p.sent = append(p.sent, ev)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                         "k",
		AdminSecretKey:                    "admin-k",
		RegistrationTokenValidityDuration: 7 * 24 * time.Hour,
		SessionTokenValidityDuration:      time.Hour,
		BcryptCost:                        4, // bcrypt.MinCost keeps tests fast
	}
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := cryptox.NewPasswordHasher(4).Hash(password)
	require.NoError(t, err)
	return h
}

// existingUser returns a stored user whose password is "correct-horse".
func existingUser(t *testing.T) *models.User {
	return &models.User{
		ID:           uuid.NewString(),
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "ada@example.com",
		PasswordHash: mustHash(t, "correct-horse"),
		Phone:        "555-0100",
	}
}

func newAuth(db *sql.DB, rm *fakeRepoManager, pub events.Publisher) *AuthService {
	return NewAuthService(db, rm, testConfig(), pub, logging.Nop{})
}

func requireKind(t *testing.T, err error, want Kind) {
	t.Helper()
	require.Error(t, err)
	var se *Error
	require.True(t, errors.As(err, &se), "want *services.Error, got %T: %v", err, err)
	require.Equal(t, want, se.Kind, "message: %s", se.Message)
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/srg/glitch/internal/testutils"
)

type memoryStore struct {
	mu     sync.Mutex
	users  map[string]User
	nextID int64
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]User)}
}

func (m *memoryStore) UserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return User{}, m.err
	}
	u, ok := m.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memoryStore) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return User{}, m.err
	}
	if _, ok := m.users[u.Email]; ok {
		return User{}, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	m.users[u.Email] = u
	return u, nil
}

func newTestService(t *testing.T, store Store) *Service {
	return NewService(store, WithCost(bcrypt.MinCost), WithLogger(testutils.NewTestHelper(t).Logger))
}

func TestCheckCredentials(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Neo", "neo@example.com", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		want     bool
		wantErr  error
	}{
		{name: "valid", email: "neo@example.com", password: "secret1", want: true},
		{name: "email case and spaces ignored", email: "  NEO@example.com ", password: "secret1", want: true},
		{name: "wrong password", email: "neo@example.com", password: "secret2", want: false},
		{name: "unknown user", email: "trinity@example.com", password: "secret1", want: false},
		{name: "empty email", email: "", password: "secret1", wantErr: ErrMissingCredentials},
		{name: "empty password", email: "neo@example.com", password: "", wantErr: ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.CheckCredentials(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCheckCredentials_StoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	svc := newTestService(t, store)

	ok, err := svc.CheckCredentials(context.Background(), "neo@example.com", "secret1")
	assert.False(t, ok, "a failed lookup MUST NOT grant access")
	assert.ErrorContains(t, err, "connection refused")
}

func TestRegister(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	u, err := svc.Register(ctx, " Neo ", "Neo@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Neo", u.Name)
	assert.Equal(t, "neo@example.com", u.Email)
	assert.NotEqual(t, "secret1", u.PasswordHash, "password MUST NOT be stored in plain text")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret1")))

	_, err = svc.Register(ctx, "Neo", "neo@example.com", "another")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestService(t, newMemoryStore())
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "neo@example.com", "secret1")
	assert.ErrorIs(t, err, ErrMissingName)

	_, err = svc.Register(ctx, "Neo", "not-an-email", "secret1")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.Register(ctx, "Neo", "neo@example.com", "12345")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "40001"}))
	assert.False(t, isUniqueViolation(errors.New("other")))
	assert.False(t, isUniqueViolation(nil))
}

package users

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memStore struct {
	byEmail map[string]User
	byID    map[uuid.UUID]User
}

func newMemStore() *memStore {
	return &memStore{byEmail: make(map[string]User), byID: make(map[uuid.UUID]User)}
}

func (m *memStore) Create(_ context.Context, u User) (User, error) {
	email := strings.ToLower(u.Email)
	if _, ok := m.byEmail[email]; ok {
		return User{}, ErrEmailTaken
	}
	u.ID = uuid.New()
	u.Email = email
	m.byEmail[email] = u
	m.byID[u.ID] = u
	return u, nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (User, error) {
	u, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (User, error) {
	u, ok := m.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func registerInput(role Role) RegisterInput {
	return RegisterInput{
		FirstName: "Ayu",
		LastName:  "Santoso",
		Email:     "ayu@example.com",
		Password:  "hunter22",
		Role:      role,
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("retailer is verified immediately and password is hashed", func(t *testing.T) {
		svc := NewService(newMemStore())

		u, err := svc.Register(ctx, registerInput(RoleRetailer))
		require.NoError(t, err)

		assert.True(t, u.Verified)
		assert.Equal(t, RoleRetailer, u.Role)
		assert.NotEqual(t, "hunter22", u.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hunter22")))
	})

	t.Run("wholesaler starts unverified", func(t *testing.T) {
		svc := NewService(newMemStore())

		u, err := svc.Register(ctx, registerInput(RoleWholesaler))
		require.NoError(t, err)
		assert.False(t, u.Verified)
	})

	t.Run("admin and guest cannot self-register", func(t *testing.T) {
		svc := NewService(newMemStore())

		_, err := svc.Register(ctx, registerInput(RoleAdmin))
		assert.Error(t, err)

		_, err = svc.Register(ctx, registerInput(RoleGuest))
		assert.Error(t, err)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc := NewService(newMemStore())

		for _, mutate := range []func(*RegisterInput){
			func(in *RegisterInput) { in.FirstName = " " },
			func(in *RegisterInput) { in.LastName = "" },
			func(in *RegisterInput) { in.Email = "" },
			func(in *RegisterInput) { in.Password = "" },
		} {
			in := registerInput(RoleRetailer)
			mutate(&in)
			_, err := svc.Register(ctx, in)
			assert.ErrorIs(t, err, ErrMissingFields)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc := NewService(newMemStore())

		_, err := svc.Register(ctx, registerInput(RoleRetailer))
		require.NoError(t, err)

		_, err = svc.Register(ctx, registerInput(RoleRetailer))
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore())

	created, err := svc.Register(ctx, registerInput(RoleRetailer))
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		u, err := svc.Login(ctx, "ayu@example.com", "hunter22")
		require.NoError(t, err)
		assert.Equal(t, created.ID, u.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "ayu@example.com", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email collapses to the same error", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@example.com", "hunter22")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

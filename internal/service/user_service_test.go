package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/service/auth"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

func newTestUserService(t *testing.T) (*UserService, *memUserStore) {
	t.Helper()
	users := newMemUserStore()
	bcryptService := auth.NewBcryptService(4)
	service, err := NewUserService(users, bcryptService, bcryptService)
	require.NoError(t, err)
	return service, users
}

func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("creates a free-tier user with hashed password", func(t *testing.T) {
		t.Parallel()

		service, _ := newTestUserService(t)

		user, err := service.Register(context.Background(), "ada@example.com", "correct horse battery")
		require.NoError(t, err)
		assert.Equal(t, domain.TierFree, user.Tier)
		assert.Empty(t, user.Password)
		assert.NotEmpty(t, user.HashedPassword)
		assert.NotEqual(t, "correct horse battery", user.HashedPassword)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		t.Parallel()

		service, _ := newTestUserService(t)

		_, err := service.Register(context.Background(), "ada@example.com", "correct horse battery")
		require.NoError(t, err)

		_, err = service.Register(context.Background(), "ada@example.com", "another password ok")
		assert.ErrorIs(t, err, store.ErrEmailExists)
	})

	t.Run("short password is rejected", func(t *testing.T) {
		t.Parallel()

		service, _ := newTestUserService(t)

		_, err := service.Register(context.Background(), "ada@example.com", "short")
		assert.ErrorIs(t, err, domain.ErrPasswordTooShort)
	})
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	service, _ := newTestUserService(t)
	registered, err := service.Register(context.Background(), "ada@example.com", "correct horse battery")
	require.NoError(t, err)

	t.Run("valid credentials return the user", func(t *testing.T) {
		t.Parallel()

		user, err := service.Authenticate(context.Background(), "ada@example.com", "correct horse battery")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)
	})

	t.Run("wrong password and unknown email fail identically", func(t *testing.T) {
		t.Parallel()

		_, err1 := service.Authenticate(context.Background(), "ada@example.com", "wrong password!!")
		_, err2 := service.Authenticate(context.Background(), "nobody@example.com", "correct horse battery")
		assert.ErrorIs(t, err1, ErrInvalidCredentials)
		assert.ErrorIs(t, err2, ErrInvalidCredentials)
	})
}

func TestStoreTierResolver(t *testing.T) {
	t.Parallel()

	users := newMemUserStore()
	resolver, err := NewStoreTierResolver(users)
	require.NoError(t, err)

	user, err := domain.NewUser("pro@example.com", "correct horse battery")
	require.NoError(t, err)
	user.Tier = domain.TierPro
	require.NoError(t, users.Create(context.Background(), user))

	tier, err := resolver.TierFor(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, tier)
}

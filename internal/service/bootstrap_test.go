package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevOwais28/Expense-Tracker/internal/models"
)

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	hasher := newTestHasher(t)

	t.Run("disabled", func(t *testing.T) {
		users := newMemUsers()
		require.NoError(t, EnsureAdmin(ctx, users, hasher, BootstrapAdmin{}, zerolog.Nop()))
		all, _ := users.List(ctx)
		assert.Empty(t, all)
	})

	t.Run("creates", func(t *testing.T) {
		users := newMemUsers()
		admin := BootstrapAdmin{Email: "Root@Example.com", Password: "rootpass"}
		require.NoError(t, EnsureAdmin(ctx, users, hasher, admin, zerolog.Nop()))

		u, err := users.FindByEmail(ctx, "root@example.com")
		require.NoError(t, err)
		assert.Equal(t, models.UserRoleAdmin, u.Role)
		assert.Equal(t, "Admin", u.DisplayName)
		ok, err := hasher.Verify("rootpass", u.PasswordHash)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, EnsureAdmin(ctx, users, hasher, admin, zerolog.Nop()))
		all, _ := users.List(ctx)
		assert.Len(t, all, 1)
	})

	t.Run("promotes existing", func(t *testing.T) {
		users := newMemUsers()
		users.put(models.User{ID: "u1", Email: "root@example.com", Role: models.UserRoleUser})
		require.NoError(t, EnsureAdmin(ctx, users, hasher, BootstrapAdmin{Email: "root@example.com"}, zerolog.Nop()))

		u, err := users.GetByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, models.UserRoleAdmin, u.Role)
	})

	t.Run("weak password", func(t *testing.T) {
		users := newMemUsers()
		err := EnsureAdmin(ctx, users, hasher, BootstrapAdmin{Email: "root@example.com", Password: "x"}, zerolog.Nop())
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("store failure", func(t *testing.T) {
		users := newMemUsers()
		users.failErr = errBoom
		err := EnsureAdmin(ctx, users, hasher, BootstrapAdmin{Email: "root@example.com", Password: "rootpass"}, zerolog.Nop())
		assert.ErrorIs(t, err, errBoom)
	})
}

package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevOwais28/Expense-Tracker/internal/access"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
)

func newAdminFixture(t *testing.T) (*AdminService, *memUsers, *memExpenses, *fakeSessions) {
	t.Helper()
	users := newMemUsers()
	expenses := newMemExpenses()
	sessions := &fakeSessions{}
	users.put(owner)
	users.put(stranger)
	users.put(admin)
	return NewAdminService(users, expenses, sessions, zerolog.Nop()), users, expenses, sessions
}

func TestAdminSelfDeleteRefused(t *testing.T) {
	svc, users, _, sessions := newAdminFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.DeleteUser(ctx, identityOf(admin), admin.ID), access.ErrSelfTarget)
	_, err := users.GetByID(ctx, admin.ID)
	assert.NoError(t, err)
	assert.Empty(t, sessions.revoked)
}

func TestAdminDeleteUser(t *testing.T) {
	svc, users, _, sessions := newAdminFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.DeleteUser(ctx, identityOf(admin), owner.ID))
	_, err := users.GetByID(ctx, owner.ID)
	assert.Error(t, err)
	assert.Equal(t, []string{owner.ID}, sessions.revoked)

	assert.ErrorIs(t, svc.DeleteUser(ctx, identityOf(admin), owner.ID), ErrNotFound)
	assert.ErrorIs(t, svc.DeleteUser(ctx, identityOf(stranger), admin.ID), access.ErrForbidden)
	assert.ErrorIs(t, svc.DeleteUser(ctx, models.Identity{}, stranger.ID), access.ErrNotAuthenticated)
}

func TestAdminChangeRole(t *testing.T) {
	svc, _, _, sessions := newAdminFixture(t)
	ctx := context.Background()

	u, err := svc.ChangeRole(ctx, identityOf(admin), owner.ID, models.UserRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleAdmin, u.Role)
	assert.Equal(t, []string{owner.ID}, sessions.revoked)

	_, err = svc.ChangeRole(ctx, identityOf(admin), admin.ID, models.UserRoleUser)
	assert.ErrorIs(t, err, access.ErrSelfTarget)

	_, err = svc.ChangeRole(ctx, identityOf(admin), stranger.ID, "superuser")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.ChangeRole(ctx, identityOf(admin), "missing", models.UserRoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ChangeRole(ctx, identityOf(stranger), stranger.ID, models.UserRoleAdmin)
	assert.Error(t, err)
}

func TestAdminListAndStats(t *testing.T) {
	svc, _, expenses, _ := newAdminFixture(t)
	ctx := context.Background()
	require.NoError(t, expenses.Create(ctx, models.Expense{ID: "e1", UserID: owner.ID, Amount: 10.25}))
	require.NoError(t, expenses.Create(ctx, models.Expense{ID: "e2", UserID: stranger.ID, Amount: 4.5}))

	_, err := svc.ListUsers(ctx, identityOf(owner))
	assert.ErrorIs(t, err, access.ErrForbidden)

	users, err := svc.ListUsers(ctx, identityOf(admin))
	require.NoError(t, err)
	assert.Len(t, users, 3)

	stats, err := svc.Stats(ctx, identityOf(admin))
	require.NoError(t, err)
	assert.Equal(t, models.SystemStats{
		TotalUsers:         3,
		AdminUsers:         1,
		RegularUsers:       2,
		TotalExpenses:      2,
		TotalExpenseAmount: 14.75,
	}, stats)

	_, err = svc.Stats(ctx, identityOf(stranger))
	assert.ErrorIs(t, err, access.ErrForbidden)
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/DevOwais28/Expense-Tracker/internal/access"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
	"github.com/DevOwais28/Expense-Tracker/internal/repository"
)

type AdminService struct {
	users    UserStore
	expenses ExpenseStore
	sessions Sessions
	log      zerolog.Logger
}

func NewAdminService(users UserStore, expenses ExpenseStore, sessions Sessions, log zerolog.Logger) *AdminService {
	return &AdminService{users: users, expenses: expenses, sessions: sessions, log: log}
}

func (s *AdminService) ListUsers(ctx context.Context, identity models.Identity) ([]models.User, error) {
	if err := access.Authorize(identity, access.ManageUsers, access.Resource{}); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

// DeleteUser removes a user with all of their expenses and predictions and
// signs them out.
func (s *AdminService) DeleteUser(ctx context.Context, identity models.Identity, targetID string) error {
	if err := access.Authorize(identity, access.DeleteUser, access.TargetUser(targetID)); err != nil {
		return err
	}

	if err := s.users.Delete(ctx, targetID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	if err := s.sessions.RevokeUser(ctx, targetID); err != nil {
		s.log.Error().Err(err).Str("user_id", targetID).Msg("revoke sessions of deleted user failed")
	}
	s.log.Info().Str("admin_id", identity.UserID).Str("user_id", targetID).Msg("user deleted")
	return nil
}

// ChangeRole sets a user's role. The user's sessions are revoked so the new
// role applies from their next login.
func (s *AdminService) ChangeRole(ctx context.Context, identity models.Identity, targetID string, role models.UserRole) (models.User, error) {
	if err := access.Authorize(identity, access.ChangeRole, access.TargetUser(targetID)); err != nil {
		return models.User{}, err
	}
	if !role.Valid() {
		return models.User{}, invalid("role", "must be user or admin")
	}

	user, err := s.users.UpdateRole(ctx, targetID, role)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("update role: %w", err)
	}

	if err := s.sessions.RevokeUser(ctx, targetID); err != nil {
		s.log.Error().Err(err).Str("user_id", targetID).Msg("revoke sessions after role change failed")
	}
	s.log.Info().Str("admin_id", identity.UserID).Str("user_id", targetID).Str("role", string(role)).Msg("role changed")
	return user, nil
}

func (s *AdminService) Stats(ctx context.Context, identity models.Identity) (models.SystemStats, error) {
	if err := access.Authorize(identity, access.ViewStats, access.Resource{}); err != nil {
		return models.SystemStats{}, err
	}

	total, admins, err := s.users.CountByRole(ctx)
	if err != nil {
		return models.SystemStats{}, fmt.Errorf("count users: %w", err)
	}
	count, amount, err := s.expenses.Totals(ctx)
	if err != nil {
		return models.SystemStats{}, fmt.Errorf("expense totals: %w", err)
	}

	return models.SystemStats{
		TotalUsers:         total,
		AdminUsers:         admins,
		RegularUsers:       total - admins,
		TotalExpenses:      count,
		TotalExpenseAmount: roundCents(amount),
	}, nil
}

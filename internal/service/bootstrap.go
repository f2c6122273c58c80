package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/DevOwais28/Expense-Tracker/internal/ids"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
	"github.com/DevOwais28/Expense-Tracker/internal/repository"
	"github.com/DevOwais28/Expense-Tracker/internal/security"
)

type BootstrapAdmin struct {
	Email    string
	Password string
	Name     string
}

// EnsureAdmin makes sure the configured bootstrap account exists with the
// admin role. It is a no-op when no email is configured.
func EnsureAdmin(ctx context.Context, users UserStore, hasher *security.PasswordHasher, admin BootstrapAdmin, log zerolog.Logger) error {
	email := normalizeEmail(admin.Email)
	if email == "" {
		return nil
	}

	existing, err := users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin() {
			return nil
		}
		if _, err := users.UpdateRole(ctx, existing.ID, models.UserRoleAdmin); err != nil {
			return fmt.Errorf("promote bootstrap admin: %w", err)
		}
		log.Info().Str("user_id", existing.ID).Msg("bootstrap admin promoted")
		return nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return fmt.Errorf("lookup bootstrap admin: %w", err)
	}

	if err := validatePassword("bootstrap.adminpassword", admin.Password); err != nil {
		return err
	}
	hash, err := hasher.Hash(admin.Password)
	if err != nil {
		return err
	}
	name := admin.Name
	if name == "" {
		name = "Admin"
	}

	user := models.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  name,
		Role:         models.UserRoleAdmin,
	}
	if err := users.Create(ctx, user); err != nil && !errors.Is(err, repository.ErrEmailTaken) {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	log.Info().Str("user_id", user.ID).Msg("bootstrap admin created")
	return nil
}

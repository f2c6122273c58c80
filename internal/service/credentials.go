package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DevOwais28/Expense-Tracker/internal/models"
	"github.com/DevOwais28/Expense-Tracker/internal/repository"
	"github.com/DevOwais28/Expense-Tracker/internal/security"
)

type userFinder interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// CredentialVerifier checks an email/password pair without revealing which
// half was wrong.
type CredentialVerifier struct {
	users  userFinder
	hasher *security.PasswordHasher
}

func NewCredentialVerifier(users userFinder, hasher *security.PasswordHasher) *CredentialVerifier {
	return &CredentialVerifier{users: users, hasher: hasher}
}

func (v *CredentialVerifier) VerifyCredentials(ctx context.Context, email, password string) (models.User, error) {
	user, err := v.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			v.hasher.Burn(password)
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if !user.HasPassword() {
		v.hasher.Burn(password)
		return models.User{}, ErrInvalidCredentials
	}

	ok, err := v.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

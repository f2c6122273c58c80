package federation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/DevOwais28/Expense-Tracker/internal/ids"
	"github.com/DevOwais28/Expense-Tracker/internal/metrics"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
	"github.com/DevOwais28/Expense-Tracker/internal/repository"
)

var ErrFederatedLogin = errors.New("federated login failed")

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByFederatedSubject(ctx context.Context, subject string) (models.User, error)
	LinkFederatedSubject(ctx context.Context, id string, subject string) error
	Create(ctx context.Context, user models.User) error
}

// Bridge turns a provider identity assertion into a local user.
type Bridge struct {
	users  UserStore
	logger zerolog.Logger
}

func NewBridge(users UserStore, logger zerolog.Logger) *Bridge {
	return &Bridge{users: users, logger: logger}
}

// Complete runs the provider code exchange and then HandleAssertion. Every
// failure is reported as ErrFederatedLogin.
func (b *Bridge) Complete(ctx context.Context, provider Provider, code string) (models.User, error) {
	if code == "" {
		metrics.LoginAttempts.WithLabelValues("federated", "failure").Inc()
		return models.User{}, fmt.Errorf("%w: missing code", ErrFederatedLogin)
	}

	profile, err := provider.Exchange(ctx, code)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("federated", "failure").Inc()
		b.logger.Warn().Err(err).Str("provider", provider.Name()).Msg("provider exchange failed")
		return models.User{}, fmt.Errorf("%w: %v", ErrFederatedLogin, err)
	}
	profile.Provider = provider.Name()

	user, err := b.HandleAssertion(ctx, profile)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("federated", "failure").Inc()
		return models.User{}, err
	}
	metrics.LoginAttempts.WithLabelValues("federated", "success").Inc()
	return user, nil
}

// HandleAssertion resolves a verified provider identity to a local user. The
// provider subject is the stable key: a known subject returns its account, an
// unlinked account with the same email is linked to it, and otherwise a user
// with role user and no password is created. Accounts already linked to a
// different subject are never taken over by email.
func (b *Bridge) HandleAssertion(ctx context.Context, profile Profile) (models.User, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return models.User{}, fmt.Errorf("%w: profile has no email", ErrFederatedLogin)
	}
	if strings.TrimSpace(profile.Subject) == "" || profile.Provider == "" {
		return models.User{}, fmt.Errorf("%w: profile has no subject", ErrFederatedLogin)
	}
	if !profile.EmailVerified {
		b.logger.Warn().Str("provider", profile.Provider).Msg("federated email not verified")
		return models.User{}, fmt.Errorf("%w: email not verified", ErrFederatedLogin)
	}
	subject := profile.Provider + ":" + strings.TrimSpace(profile.Subject)

	user, err := b.users.FindByFederatedSubject(ctx, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		b.logger.Error().Err(err).Msg("federated subject lookup failed")
		return models.User{}, fmt.Errorf("%w: %v", ErrFederatedLogin, err)
	}

	user, err = b.users.FindByEmail(ctx, email)
	if err == nil {
		return b.link(ctx, user, subject)
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		b.logger.Error().Err(err).Msg("federated user lookup failed")
		return models.User{}, fmt.Errorf("%w: %v", ErrFederatedLogin, err)
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	user = models.User{
		ID:               ids.New(),
		Email:            email,
		DisplayName:      name,
		Role:             models.UserRoleUser,
		FederatedSubject: &subject,
	}
	if profile.AvatarURL != "" {
		avatar := profile.AvatarURL
		user.AvatarURL = &avatar
	}

	if err := b.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent first login for the same email.
		if errors.Is(err, repository.ErrEmailTaken) {
			if existing, ferr := b.users.FindByEmail(ctx, email); ferr == nil {
				return b.link(ctx, existing, subject)
			}
		}
		b.logger.Error().Err(err).Msg("create federated user failed")
		return models.User{}, fmt.Errorf("%w: %v", ErrFederatedLogin, err)
	}

	b.logger.Info().Str("user_id", user.ID).Msg("federated user created")
	return user, nil
}

// link binds subject to an existing account found by email. Profile fields
// are left unchanged.
func (b *Bridge) link(ctx context.Context, user models.User, subject string) (models.User, error) {
	if user.FederatedSubject != nil {
		if *user.FederatedSubject == subject {
			return user, nil
		}
		b.logger.Warn().Str("user_id", user.ID).Msg("account linked to another federated identity")
		return models.User{}, fmt.Errorf("%w: account linked to another identity", ErrFederatedLogin)
	}
	if err := b.users.LinkFederatedSubject(ctx, user.ID, subject); err != nil {
		b.logger.Warn().Err(err).Str("user_id", user.ID).Msg("link federated identity failed")
		return models.User{}, fmt.Errorf("%w: %v", ErrFederatedLogin, err)
	}
	user.FederatedSubject = &subject
	b.logger.Info().Str("user_id", user.ID).Msg("federated identity linked")
	return user, nil
}

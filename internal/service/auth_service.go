package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/DevOwais28/Expense-Tracker/internal/access"
	"github.com/DevOwais28/Expense-Tracker/internal/ids"
	mailq "github.com/DevOwais28/Expense-Tracker/internal/mail"
	"github.com/DevOwais28/Expense-Tracker/internal/metrics"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
	"github.com/DevOwais28/Expense-Tracker/internal/repository"
	"github.com/DevOwais28/Expense-Tracker/internal/security"
	"github.com/DevOwais28/Expense-Tracker/internal/session"
)

const (
	minPasswordLength = 6
	resetIssueTimeout = 30 * time.Second
)

type AuthConfig struct {
	ClientURL     string
	ResetTokenTTL time.Duration
}

type AuthService struct {
	users    UserStore
	verifier *CredentialVerifier
	hasher   *security.PasswordHasher
	sessions Sessions
	outbox   MailQueue
	avatars  *AvatarService
	cfg      AuthConfig
	log      zerolog.Logger

	resets sync.WaitGroup
}

func NewAuthService(
	users UserStore,
	hasher *security.PasswordHasher,
	sessions Sessions,
	outbox MailQueue,
	avatars *AvatarService,
	cfg AuthConfig,
	log zerolog.Logger,
) *AuthService {
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	return &AuthService{
		users:    users,
		verifier: NewCredentialVerifier(users, hasher),
		hasher:   hasher,
		sessions: sessions,
		outbox:   outbox,
		avatars:  avatars,
		cfg:      cfg,
		log:      log,
	}
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
}

func (s *AuthService) Signup(ctx context.Context, input SignupInput) (models.User, error) {
	email := normalizeEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return models.User{}, err
	}
	if err := validatePassword("password", input.Password); err != nil {
		return models.User{}, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  name,
		Role:         models.UserRoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user signed up")
	return user, nil
}

// Login verifies credentials and starts a session that replaces priorID.
func (s *AuthService) Login(ctx context.Context, email, password, priorID string) (models.User, session.Record, error) {
	user, err := s.verifier.VerifyCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			metrics.LoginAttempts.WithLabelValues("local", "failure").Inc()
		}
		return models.User{}, session.Record{}, err
	}

	rec, err := s.sessions.Create(ctx, user, models.LocalSession, priorID)
	if err != nil {
		return models.User{}, session.Record{}, err
	}
	metrics.LoginAttempts.WithLabelValues("local", "success").Inc()
	return user, rec, nil
}

// ForgotPassword issues a reset token when the account exists. The outcome is
// never reported to the caller.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	token, hash, err := security.GenerateResetToken()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, hash, time.Now().Add(s.cfg.ResetTokenTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	msg := mailq.PasswordReset(user.Email, user.DisplayName, s.resetLink(token))
	if err := s.outbox.Enqueue(ctx, msg); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("queue reset mail failed")
	}
	return nil
}

// RequestPasswordReset checks the address and then issues the reset in the
// background. The caller sees the same result and the same latency whether or
// not an account exists for it.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	s.resets.Add(1)
	go func() {
		defer s.resets.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resetIssueTimeout)
		defer cancel()
		if err := s.ForgotPassword(ctx, email); err != nil {
			s.log.Error().Err(err).Msg("issue password reset failed")
		}
	}()
	return nil
}

// Wait blocks until every background reset issued so far has finished.
func (s *AuthService) Wait() {
	s.resets.Wait()
}

func (s *AuthService) resetLink(token string) string {
	return strings.TrimSuffix(s.cfg.ClientURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

// ResetPassword redeems a reset token and signs the user out everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return ErrInvalidOrExpiredToken
	}
	if err := validatePassword("password", newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	userID, err := s.users.ConsumeResetToken(ctx, security.HashResetToken(token), hash)
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenInvalid) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	if err := s.sessions.RevokeUser(ctx, userID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("revoke sessions after reset failed")
	}
	s.log.Info().Str("user_id", userID).Msg("password reset")
	return nil
}

type UpdateProfileInput struct {
	Name            *string
	CurrentPassword string
	NewPassword     string
	Avatar          *AvatarUpload
}

type ProfileUpdate struct {
	User    models.User
	Session session.Record
}

// UpdateProfile applies the requested changes and reissues the caller's
// session so the cached snapshot matches the stored user. A password change
// also signs out every other session.
func (s *AuthService) UpdateProfile(ctx context.Context, identity models.Identity, input UpdateProfileInput) (ProfileUpdate, error) {
	if !identity.Authenticated() {
		return ProfileUpdate{}, access.ErrNotAuthenticated
	}

	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ProfileUpdate{}, ErrNotFound
		}
		return ProfileUpdate{}, err
	}

	name := user.DisplayName
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if utf8.RuneCountInString(trimmed) > 100 {
			return ProfileUpdate{}, invalid("name", "must be at most 100 characters")
		}
		if trimmed != "" {
			name = trimmed
		}
	}

	var newHash []byte
	if input.NewPassword != "" {
		if err := validatePassword("newPassword", input.NewPassword); err != nil {
			return ProfileUpdate{}, err
		}
		if user.HasPassword() {
			ok, err := s.hasher.Verify(input.CurrentPassword, user.PasswordHash)
			if err != nil || !ok {
				return ProfileUpdate{}, ErrWrongCurrentPassword
			}
		}
		if newHash, err = s.hasher.Hash(input.NewPassword); err != nil {
			return ProfileUpdate{}, err
		}
	}

	var avatarURL *string
	if input.Avatar != nil {
		if s.avatars == nil {
			return ProfileUpdate{}, ErrInvalidAvatar
		}
		u, err := s.avatars.Upload(ctx, user.ID, *input.Avatar)
		if err != nil {
			return ProfileUpdate{}, err
		}
		avatarURL = &u
	}

	// Nothing is written until every input has been accepted. Once the new
	// password is stored, sessions opened under the old one end before any
	// later step can fail.
	if newHash != nil {
		if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
			return ProfileUpdate{}, fmt.Errorf("update password: %w", err)
		}
		if err := s.sessions.RevokeUser(ctx, user.ID); err != nil {
			return ProfileUpdate{}, err
		}
	}

	updated, err := s.users.UpdateProfile(ctx, user.ID, name, avatarURL)
	if err != nil {
		return ProfileUpdate{}, fmt.Errorf("update profile: %w", err)
	}

	rec, err := s.sessions.Create(ctx, updated, identity.Kind, identity.SessionID)
	if err != nil {
		return ProfileUpdate{}, err
	}

	return ProfileUpdate{User: updated, Session: rec}, nil
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email", "is not a valid address")
	}
	return nil
}

func validatePassword(field, password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return invalid(field, fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	return nil
}

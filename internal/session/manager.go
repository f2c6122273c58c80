package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/DevOwais28/Expense-Tracker/internal/metrics"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
	"github.com/DevOwais28/Expense-Tracker/internal/security"
)

// ErrSessionStore means the session could not be persisted; no cookie may be
// issued when it is returned.
var ErrSessionStore = errors.New("session store unavailable")

// UserLookup loads the current user record for federated sessions.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

type Options struct {
	Secret      string
	CookieName  string
	TTL         time.Duration
	MaxSessions int
	Secure      bool
}

type Manager struct {
	store  Store
	users  UserLookup
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

func NewManager(store Store, users UserLookup, opts Options, logger zerolog.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "expense.sid"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.MaxSessions < 1 {
		opts.MaxSessions = 1
	}
	return &Manager{
		store:  store,
		users:  users,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Create starts a session for user under a fresh id. priorID, when set, is
// invalidated in the same store transaction.
func (m *Manager) Create(ctx context.Context, user models.User, kind models.IdentityKind, priorID string) (Record, error) {
	id, err := security.RandomToken(32)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrSessionStore, err)
	}

	now := m.now().UTC()
	rec := Record{
		ID:        id,
		UserID:    user.ID,
		Channel:   kind.String(),
		Email:     user.Email,
		Name:      user.DisplayName,
		Role:      user.Role,
		Avatar:    user.Avatar(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.opts.TTL),
	}

	if err := m.store.Save(ctx, rec, priorID); err != nil {
		m.logger.Error().Err(err).Str("user_id", user.ID).Msg("persist session failed")
		return Record{}, fmt.Errorf("%w: %v", ErrSessionStore, err)
	}
	metrics.SessionsCreated.WithLabelValues(rec.Channel).Inc()
	if priorID != "" {
		metrics.SessionsDestroyed.WithLabelValues("regenerated").Inc()
	}

	evicted, err := m.store.Trim(ctx, user.ID, m.opts.MaxSessions)
	if err != nil {
		m.logger.Warn().Err(err).Str("user_id", user.ID).Msg("enforce session limit failed")
	} else if len(evicted) > 0 {
		metrics.SessionsDestroyed.WithLabelValues("evicted").Add(float64(len(evicted)))
		m.logger.Info().Str("user_id", user.ID).Int("evicted", len(evicted)).Msg("session limit reached")
	}

	return rec, nil
}

// Resolve returns the caller's identity. A federated principal attached to
// the context wins; otherwise the session cookie decides. Any failure
// resolves to Anonymous.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) models.Identity {
	if user, ok := FederatedPrincipal(ctx); ok {
		return models.IdentityFromUser(models.FederatedSession, "", user)
	}

	id, ok := m.SessionID(r)
	if !ok {
		return models.Identity{}
	}

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn().Err(err).Msg("load session failed")
		}
		return models.Identity{}
	}
	if !m.now().Before(rec.ExpiresAt) {
		return models.Identity{}
	}

	switch rec.Kind() {
	case models.FederatedSession:
		user, err := m.users.GetByID(ctx, rec.UserID)
		if err != nil {
			m.logger.Warn().Err(err).Str("user_id", rec.UserID).Msg("federated session user lookup failed")
			return models.Identity{}
		}
		return models.IdentityFromUser(models.FederatedSession, rec.ID, user)
	case models.LocalSession:
		return models.Identity{
			Kind:      models.LocalSession,
			SessionID: rec.ID,
			UserID:    rec.UserID,
			Email:     rec.Email,
			Name:      rec.Name,
			Role:      rec.Role,
			Avatar:    rec.Avatar,
		}
	default:
		return models.Identity{}
	}
}

// Destroy removes a session. Destroying a missing session is not an error.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionStore, err)
	}
	metrics.SessionsDestroyed.WithLabelValues("logout").Inc()
	return nil
}

// RevokeUser drops every session belonging to userID.
func (m *Manager) RevokeUser(ctx context.Context, userID string) error {
	n, err := m.store.DeleteUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionStore, err)
	}
	if n > 0 {
		metrics.SessionsDestroyed.WithLabelValues("revoked").Add(float64(n))
		m.logger.Info().Str("user_id", userID).Int("sessions", n).Msg("sessions revoked")
	}
	return nil
}

func (m *Manager) PruneIndexes(ctx context.Context) (int64, error) {
	return m.store.PruneIndexes(ctx, m.now().Add(-m.opts.TTL))
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// SessionID extracts and verifies the session id from the request cookie.
func (m *Manager) SessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	id, err := security.VerifySessionCookie(m.opts.Secret, cookie.Value)
	if err != nil {
		return "", false
	}
	return id, true
}

func (m *Manager) SetCookie(w http.ResponseWriter, rec Record) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    security.SignSessionID(m.opts.Secret, rec.ID),
		Path:     "/",
		Expires:  rec.ExpiresAt,
		MaxAge:   int(time.Until(rec.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type principalKey struct{}

// WithFederatedPrincipal attaches a user freshly established by the
// federated login bridge to ctx.
func WithFederatedPrincipal(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, principalKey{}, user)
}

func FederatedPrincipal(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(principalKey{}).(models.User)
	return user, ok && user.ID != ""
}

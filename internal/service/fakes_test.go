package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DevOwais28/Expense-Tracker/internal/mail"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
	"github.com/DevOwais28/Expense-Tracker/internal/repository"
	"github.com/DevOwais28/Expense-Tracker/internal/security"
	"github.com/DevOwais28/Expense-Tracker/internal/session"
)

var testParams = security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1}

func newTestHasher(t *testing.T) *security.PasswordHasher {
	t.Helper()
	h, err := security.NewPasswordHasher(testParams)
	require.NoError(t, err)
	return h
}

type memUsers struct {
	mu      sync.Mutex
	byID    map[string]models.User
	failErr error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]models.User)}
}

func (m *memUsers) put(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[u.ID] = u
}

func (m *memUsers) Create(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	for _, u := range m.byID {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	m.byID[user.ID] = user
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return models.User{}, m.failErr
	}
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) List(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]models.User, 0, len(m.byID))
	for _, u := range m.byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id string, displayName string, avatarURL *string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	u.DisplayName = displayName
	if avatarURL != nil {
		u.AvatarURL = avatarURL
	}
	m.byID[id] = u
	return u, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id string, passwordHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	m.byID[id] = u
	return nil
}

func (m *memUsers) UpdateRole(_ context.Context, id string, role models.UserRole) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	u.Role = role
	m.byID[id] = u
	return u, nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memUsers) SetResetToken(_ context.Context, id string, tokenHash []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.ResetTokenHash = tokenHash
	u.ResetTokenExpiresAt = &expiresAt
	m.byID[id] = u
	return nil
}

func (m *memUsers) ConsumeResetToken(_ context.Context, tokenHash []byte, passwordHash []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.byID {
		if u.ResetTokenHash == nil || !bytes.Equal(u.ResetTokenHash, tokenHash) {
			continue
		}
		if u.ResetTokenExpiresAt == nil || !u.ResetTokenExpiresAt.After(time.Now()) {
			return "", repository.ErrResetTokenInvalid
		}
		u.PasswordHash = passwordHash
		u.ResetTokenHash = nil
		u.ResetTokenExpiresAt = nil
		m.byID[id] = u
		return id, nil
	}
	return "", repository.ErrResetTokenInvalid
}

func (m *memUsers) CountByRole(_ context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	admins := 0
	for _, u := range m.byID {
		if u.IsAdmin() {
			admins++
		}
	}
	return len(m.byID), admins, nil
}

type memExpenses struct {
	mu   sync.Mutex
	byID map[string]models.Expense
}

func newMemExpenses() *memExpenses {
	return &memExpenses{byID: make(map[string]models.Expense)}
}

func (m *memExpenses) Create(_ context.Context, e models.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[e.ID] = e
	return nil
}

func (m *memExpenses) GetByID(_ context.Context, id string) (models.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok {
		return models.Expense{}, repository.ErrExpenseNotFound
	}
	return e, nil
}

func (m *memExpenses) ListByUser(_ context.Context, userID string) ([]models.Expense, error) {
	return m.ListByUserBetween(context.Background(), userID, time.Time{}, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
}

func (m *memExpenses) ListByUserBetween(_ context.Context, userID string, from, to time.Time) ([]models.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Expense
	for _, e := range m.byID {
		if e.UserID == userID && !e.Date.Before(from) && e.Date.Before(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *memExpenses) ListAll(_ context.Context) ([]models.ExpenseWithOwner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ExpenseWithOwner, 0, len(m.byID))
	for _, e := range m.byID {
		out = append(out, models.ExpenseWithOwner{Expense: e})
	}
	return out, nil
}

func (m *memExpenses) Update(_ context.Context, e models.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[e.ID]; !ok {
		return repository.ErrExpenseNotFound
	}
	m.byID[e.ID] = e
	return nil
}

func (m *memExpenses) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrExpenseNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memExpenses) Totals(_ context.Context) (int, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum float64
	for _, e := range m.byID {
		sum += e.Amount
	}
	return len(m.byID), sum, nil
}

type memPredictions struct {
	mu      sync.Mutex
	stored  []models.Prediction
	failErr error
}

func (m *memPredictions) Create(_ context.Context, p models.Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.stored = append(m.stored, p)
	return nil
}

func (m *memPredictions) ListByUser(_ context.Context, userID string, limit int) ([]models.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Prediction
	for _, p := range m.stored {
		if p.UserID == userID && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeSessions records calls and hands out sequential session ids.
type fakeSessions struct {
	mu        sync.Mutex
	seq       int
	created   []session.Record
	priorIDs  []string
	revoked   []string
	createErr error
}

func (f *fakeSessions) Create(_ context.Context, user models.User, kind models.IdentityKind, priorID string) (session.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return session.Record{}, f.createErr
	}
	f.seq++
	now := time.Now().UTC()
	rec := session.Record{
		ID:        fmt.Sprintf("sess-%d", f.seq),
		UserID:    user.ID,
		Channel:   kind.String(),
		Email:     user.Email,
		Name:      user.DisplayName,
		Role:      user.Role,
		Avatar:    user.Avatar(),
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	f.created = append(f.created, rec)
	f.priorIDs = append(f.priorIDs, priorID)
	return rec, nil
}

func (f *fakeSessions) RevokeUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, userID)
	return nil
}

type fakeOutbox struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeOutbox) Enqueue(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeAvatarStore struct {
	calls int
	err   error
}

func (f *fakeAvatarStore) PutAvatar(_ context.Context, userID, objectID string, _ []byte, _ string, ext string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls++
	return "https://cdn.test/avatars/" + userID + "/" + objectID + "." + ext, nil
}

var errBoom = errors.New("boom")

func identityOf(u models.User) models.Identity {
	return models.IdentityFromUser(models.LocalSession, "sess-current", u)
}

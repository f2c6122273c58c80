package handlers

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DevOwais28/Expense-Tracker/internal/federation"
	"github.com/DevOwais28/Expense-Tracker/internal/mail"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
	"github.com/DevOwais28/Expense-Tracker/internal/repository"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[string]models.User
}

func (m *memUsers) Create(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	user.CreatedAt = time.Now().UTC()
	m.byID[user.ID] = user
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

func (m *memUsers) FindByFederatedSubject(_ context.Context, subject string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.FederatedSubject != nil && *u.FederatedSubject == subject {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memUsers) LinkFederatedSubject(_ context.Context, id string, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if u.FederatedSubject != nil {
		return repository.ErrSubjectLinked
	}
	u.FederatedSubject = &subject
	m.byID[id] = u
	return nil
}

func (m *memUsers) List(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memUsers) update(id string, fn func(*models.User)) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	fn(&u)
	m.byID[id] = u
	return u, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id string, displayName string, avatarURL *string) (models.User, error) {
	return m.update(id, func(u *models.User) {
		u.DisplayName = displayName
		if avatarURL != nil {
			u.AvatarURL = avatarURL
		}
	})
}

func (m *memUsers) UpdatePassword(_ context.Context, id string, passwordHash []byte) error {
	_, err := m.update(id, func(u *models.User) { u.PasswordHash = passwordHash })
	return err
}

func (m *memUsers) UpdateRole(_ context.Context, id string, role models.UserRole) (models.User, error) {
	return m.update(id, func(u *models.User) { u.Role = role })
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
	_, err := m.update(id, func(u *models.User) {
		u.ResetTokenHash = tokenHash
		u.ResetTokenExpiresAt = &expiresAt
	})
	return err
}

func (m *memUsers) ConsumeResetToken(_ context.Context, tokenHash []byte, passwordHash []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.byID {
		if u.ResetTokenHash == nil || !bytes.Equal(u.ResetTokenHash, tokenHash) {
			continue
		}
		if u.ResetTokenExpiresAt == nil || !u.ResetTokenExpiresAt.After(time.Now()) {
			break
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

func (m *memExpenses) ListByUser(ctx context.Context, userID string) ([]models.Expense, error) {
	return m.ListByUserBetween(ctx, userID, time.Time{}, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
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

type memPredictions struct{ stored []models.Prediction }

func (m *memPredictions) Create(_ context.Context, p models.Prediction) error {
	m.stored = append(m.stored, p)
	return nil
}

func (m *memPredictions) ListByUser(_ context.Context, userID string, _ int) ([]models.Prediction, error) {
	var out []models.Prediction
	for _, p := range m.stored {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubPredictor struct{}

func (stubPredictor) Predict(_ context.Context, inputs []models.PredictionInput) (models.PredictionResult, string) {
	out := make([]float64, len(inputs))
	for i := range inputs {
		out[i] = 100
	}
	return models.PredictionResult{Predictions: out}, "primary"
}

type memOutbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *memOutbox) Enqueue(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type nopAvatars struct{}

func (nopAvatars) PutAvatar(_ context.Context, userID, objectID string, _ []byte, _ string, ext string) (string, error) {
	return "https://cdn.test/avatars/" + userID + "/" + objectID + "." + ext, nil
}

type fakeProvider struct {
	profile federation.Profile
	err     error
}

func (f fakeProvider) Name() string { return "google" }

func (f fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.test/o/oauth2/auth?state=" + state
}

func (f fakeProvider) Exchange(_ context.Context, code string) (federation.Profile, error) {
	if f.err != nil {
		return federation.Profile{}, f.err
	}
	return f.profile, nil
}

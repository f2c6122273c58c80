package service

import (
	"context"
	"time"

	"github.com/DevOwais28/Expense-Tracker/internal/mail"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
	"github.com/DevOwais28/Expense-Tracker/internal/session"
)

// UserStore is satisfied by repository.UserRepository.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, id string, displayName string, avatarURL *string) (models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) (models.User, error)
	Delete(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id string, tokenHash []byte, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash []byte, passwordHash []byte) (string, error)
	CountByRole(ctx context.Context) (total int, admins int, err error)
}

// ExpenseStore is satisfied by repository.ExpenseRepository.
type ExpenseStore interface {
	Create(ctx context.Context, expense models.Expense) error
	GetByID(ctx context.Context, id string) (models.Expense, error)
	ListByUser(ctx context.Context, userID string) ([]models.Expense, error)
	ListByUserBetween(ctx context.Context, userID string, from, to time.Time) ([]models.Expense, error)
	ListAll(ctx context.Context) ([]models.ExpenseWithOwner, error)
	Update(ctx context.Context, expense models.Expense) error
	Delete(ctx context.Context, id string) error
	Totals(ctx context.Context) (count int, amount float64, err error)
}

// PredictionStore is satisfied by repository.PredictionRepository.
type PredictionStore interface {
	Create(ctx context.Context, p models.Prediction) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Prediction, error)
}

// Sessions is the part of session.Manager the services drive.
type Sessions interface {
	Create(ctx context.Context, user models.User, kind models.IdentityKind, priorID string) (session.Record, error)
	RevokeUser(ctx context.Context, userID string) error
}

type MailQueue interface {
	Enqueue(ctx context.Context, msg mail.Message) error
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DevOwais28/Expense-Tracker/internal/access"
	"github.com/DevOwais28/Expense-Tracker/internal/ids"
	"github.com/DevOwais28/Expense-Tracker/internal/models"
	"github.com/DevOwais28/Expense-Tracker/internal/repository"
)

type ExpenseService struct {
	expenses ExpenseStore
	now      func() time.Time
}

func NewExpenseService(expenses ExpenseStore) *ExpenseService {
	return &ExpenseService{expenses: expenses, now: time.Now}
}

type ExpenseInput struct {
	Title         string
	Amount        float64
	Category      models.ExpenseCategory
	PaymentMethod models.PaymentMethod
	Note          string
	Date          *time.Time
}

// ExpensePatch holds optional replacements; nil and empty values keep the
// stored field.
type ExpensePatch struct {
	Title         *string
	Amount        *float64
	Category      *models.ExpenseCategory
	PaymentMethod *models.PaymentMethod
	Note          *string
	Date          *time.Time
}

func (s *ExpenseService) List(ctx context.Context, identity models.Identity) ([]models.Expense, error) {
	if err := access.Authorize(identity, access.ReadOwn, access.Owned(identity.UserID)); err != nil {
		return nil, err
	}
	return s.expenses.ListByUser(ctx, identity.UserID)
}

func (s *ExpenseService) Create(ctx context.Context, identity models.Identity, input ExpenseInput) (models.Expense, error) {
	if err := access.Authorize(identity, access.Create, access.Owned(identity.UserID)); err != nil {
		return models.Expense{}, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return models.Expense{}, invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > 200 {
		return models.Expense{}, invalid("title", "must be at most 200 characters")
	}
	if err := validateAmount(input.Amount); err != nil {
		return models.Expense{}, err
	}

	category := input.Category
	if category == "" {
		category = models.CategoryOther
	}
	if !category.Valid() {
		return models.Expense{}, invalid("category", "is not a known category")
	}
	method := input.PaymentMethod
	if method == "" {
		method = models.PaymentCash
	}
	if !method.Valid() {
		return models.Expense{}, invalid("paymentMethod", "is not a known payment method")
	}

	now := s.now().UTC()
	date := now
	if input.Date != nil && !input.Date.IsZero() {
		date = input.Date.UTC()
	}

	expense := models.Expense{
		ID:            ids.New(),
		UserID:        identity.UserID,
		Title:         title,
		Amount:        roundCents(input.Amount),
		Category:      category,
		PaymentMethod: method,
		Note:          strings.TrimSpace(input.Note),
		Date:          date,
		CreatedAt:     now,
	}
	if err := s.expenses.Create(ctx, expense); err != nil {
		return models.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return expense, nil
}

// load fetches an expense and then checks the caller may act on it. A missing
// record is reported before any ownership decision.
func (s *ExpenseService) load(ctx context.Context, identity models.Identity, id string, action access.Action) (models.Expense, error) {
	if !identity.Authenticated() {
		return models.Expense{}, access.ErrNotAuthenticated
	}
	expense, err := s.expenses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrExpenseNotFound) {
			return models.Expense{}, ErrNotFound
		}
		return models.Expense{}, err
	}
	if err := access.Authorize(identity, action, access.Owned(expense.UserID)); err != nil {
		return models.Expense{}, err
	}
	return expense, nil
}

func (s *ExpenseService) Get(ctx context.Context, identity models.Identity, id string) (models.Expense, error) {
	return s.load(ctx, identity, id, access.ReadOwn)
}

func (s *ExpenseService) Update(ctx context.Context, identity models.Identity, id string, patch ExpensePatch) (models.Expense, error) {
	expense, err := s.load(ctx, identity, id, access.UpdateOwn)
	if err != nil {
		return models.Expense{}, err
	}

	if patch.Title != nil {
		if title := strings.TrimSpace(*patch.Title); title != "" {
			if utf8.RuneCountInString(title) > 200 {
				return models.Expense{}, invalid("title", "must be at most 200 characters")
			}
			expense.Title = title
		}
	}
	if patch.Amount != nil && *patch.Amount != 0 {
		if err := validateAmount(*patch.Amount); err != nil {
			return models.Expense{}, err
		}
		expense.Amount = roundCents(*patch.Amount)
	}
	if patch.Category != nil && *patch.Category != "" {
		if !patch.Category.Valid() {
			return models.Expense{}, invalid("category", "is not a known category")
		}
		expense.Category = *patch.Category
	}
	if patch.PaymentMethod != nil && *patch.PaymentMethod != "" {
		if !patch.PaymentMethod.Valid() {
			return models.Expense{}, invalid("paymentMethod", "is not a known payment method")
		}
		expense.PaymentMethod = *patch.PaymentMethod
	}
	if patch.Note != nil {
		expense.Note = strings.TrimSpace(*patch.Note)
	}
	if patch.Date != nil && !patch.Date.IsZero() {
		expense.Date = patch.Date.UTC()
	}

	if err := s.expenses.Update(ctx, expense); err != nil {
		if errors.Is(err, repository.ErrExpenseNotFound) {
			return models.Expense{}, ErrNotFound
		}
		return models.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return expense, nil
}

func (s *ExpenseService) Delete(ctx context.Context, identity models.Identity, id string) error {
	if _, err := s.load(ctx, identity, id, access.DeleteOwn); err != nil {
		return err
	}
	if err := s.expenses.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrExpenseNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

// ListAll returns every expense with its owner. Admin only.
func (s *ExpenseService) ListAll(ctx context.Context, identity models.Identity) ([]models.ExpenseWithOwner, error) {
	if err := access.Authorize(identity, access.ListAll, access.Resource{}); err != nil {
		return nil, err
	}
	return s.expenses.ListAll(ctx)
}

// MonthlySummary aggregates the caller's expenses for month ("YYYY-MM");
// an empty month means the current one.
func (s *ExpenseService) MonthlySummary(ctx context.Context, identity models.Identity, month string) (models.MonthlySummary, error) {
	if err := access.Authorize(identity, access.ReadOwn, access.Owned(identity.UserID)); err != nil {
		return models.MonthlySummary{}, err
	}

	start := s.now().UTC()
	start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	if month != "" {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			return models.MonthlySummary{}, invalid("month", "must be formatted YYYY-MM")
		}
		start = parsed
	}
	end := start.AddDate(0, 1, 0)

	expenses, err := s.expenses.ListByUserBetween(ctx, identity.UserID, start, end)
	if err != nil {
		return models.MonthlySummary{}, fmt.Errorf("list expenses: %w", err)
	}
	return summarize(identity.UserID, start.Format("2006-01"), expenses), nil
}

var categoryOrder = []models.ExpenseCategory{
	models.CategoryFood,
	models.CategoryTravel,
	models.CategoryBills,
	models.CategoryShopping,
	models.CategoryHealth,
	models.CategoryEntertainment,
	models.CategoryOther,
}

func summarize(userID, month string, expenses []models.Expense) models.MonthlySummary {
	summary := models.MonthlySummary{
		UserID:         userID,
		Month:          month,
		CategoryTotals: make(map[models.ExpenseCategory]float64),
		Count:          len(expenses),
	}
	for _, e := range expenses {
		summary.TotalExpense += e.Amount
		summary.CategoryTotals[e.Category] += e.Amount
	}
	summary.TotalExpense = roundCents(summary.TotalExpense)

	// Ties go to the category listed first.
	best := 0.0
	for _, c := range categoryOrder {
		total, ok := summary.CategoryTotals[c]
		if !ok {
			continue
		}
		summary.CategoryTotals[c] = roundCents(total)
		if total > best {
			best = total
			summary.HighestCategory = c
		}
	}
	return summary
}

func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return invalid("amount", "must be a positive number")
	}
	if amount >= 1e12 {
		return invalid("amount", "is too large")
	}
	return nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

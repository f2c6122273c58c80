package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DevOwais28/Expense-Tracker/internal/models"
)

var ErrExpenseNotFound = errors.New("expense not found")

const expenseColumns = `id, user_id, title, amount, category, payment_method, note, spent_at, created_at`

type ExpenseRepository struct {
	db DB
}

func NewExpenseRepository(db DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(ctx context.Context, expense models.Expense) error {
	const query = `
		INSERT INTO expenses (
			id, user_id, title, amount, category, payment_method, note, spent_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := r.db.Exec(ctx, query,
		expense.ID,
		expense.UserID,
		expense.Title,
		expense.Amount,
		expense.Category,
		expense.PaymentMethod,
		expense.Note,
		expense.Date,
		expense.CreatedAt,
	)
	return err
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (models.Expense, error) {
	row := r.db.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id)
	return scanExpense(row)
}

func (r *ExpenseRepository) ListByUser(ctx context.Context, userID string) ([]models.Expense, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE user_id = $1
		ORDER BY spent_at DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

// ListByUserBetween returns the user's expenses with from <= spent_at < to.
func (r *ExpenseRepository) ListByUserBetween(ctx context.Context, userID string, from, to time.Time) ([]models.Expense, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE user_id = $1 AND spent_at >= $2 AND spent_at < $3
		ORDER BY spent_at DESC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

func (r *ExpenseRepository) ListAll(ctx context.Context) ([]models.ExpenseWithOwner, error) {
	rows, err := r.db.Query(ctx, `
		SELECT e.id, e.user_id, e.title, e.amount, e.category, e.payment_method, e.note,
		       e.spent_at, e.created_at, u.display_name, u.email
		FROM expenses e
		JOIN users u ON u.id = e.user_id
		ORDER BY e.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []models.ExpenseWithOwner
	for rows.Next() {
		var e models.ExpenseWithOwner
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Title,
			&e.Amount,
			&e.Category,
			&e.PaymentMethod,
			&e.Note,
			&e.Date,
			&e.CreatedAt,
			&e.OwnerName,
			&e.OwnerEmail,
		); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *ExpenseRepository) Update(ctx context.Context, expense models.Expense) error {
	const query = `
		UPDATE expenses
		SET title = $2, amount = $3, category = $4, payment_method = $5, note = $6, spent_at = $7
		WHERE id = $1
	`
	cmd, err := r.db.Exec(ctx, query,
		expense.ID,
		expense.Title,
		expense.Amount,
		expense.Category,
		expense.PaymentMethod,
		expense.Note,
		expense.Date,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

func (r *ExpenseRepository) Totals(ctx context.Context) (count int, amount float64, err error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(amount), 0)::float8 FROM expenses`
	err = r.db.QueryRow(ctx, query).Scan(&count, &amount)
	return count, amount, err
}

func scanExpense(row pgx.Row) (models.Expense, error) {
	var expense models.Expense
	if err := row.Scan(
		&expense.ID,
		&expense.UserID,
		&expense.Title,
		&expense.Amount,
		&expense.Category,
		&expense.PaymentMethod,
		&expense.Note,
		&expense.Date,
		&expense.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Expense{}, ErrExpenseNotFound
		}
		return models.Expense{}, err
	}
	return expense, nil
}

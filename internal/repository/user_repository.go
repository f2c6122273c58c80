package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DevOwais28/Expense-Tracker/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrResetTokenInvalid = errors.New("reset token invalid or expired")
	ErrSubjectLinked     = errors.New("account already linked to another federated identity")
)

const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, display_name, role, avatar_url,
	federated_subject, reset_token_hash, reset_token_expires_at, created_at, updated_at`

type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, email, password_hash, display_name, role, avatar_url, federated_subject,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW(), NOW()
		)
	`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.Role,
		user.AvatarURL,
		user.FederatedSubject,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindByFederatedSubject looks a user up by the "<provider>:<subject>" key
// recorded at federated sign-in.
func (r *UserRepository) FindByFederatedSubject(ctx context.Context, subject string) (models.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE federated_subject = $1`, subject)
	return scanUser(row)
}

// LinkFederatedSubject binds subject to an account that has none yet.
func (r *UserRepository) LinkFederatedSubject(ctx context.Context, id string, subject string) error {
	const query = `
		UPDATE users SET federated_subject = $2, updated_at = NOW()
		WHERE id = $1 AND federated_subject IS NULL
	`
	cmd, err := r.db.Exec(ctx, query, id, subject)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSubjectLinked
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSubjectLinked
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, displayName string, avatarURL *string) (models.User, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE users
		SET display_name = $2,
		    avatar_url = COALESCE($3, avatar_url),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, displayName, avatarURL)
	return scanUser(row)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash []byte) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.db.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.UserRole) (models.User, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE users SET role = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, role)
	return scanUser(row)
}

// Delete removes the user; expenses and predictions go with it through the
// ON DELETE CASCADE foreign keys.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetResetToken(ctx context.Context, id string, tokenHash []byte, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.db.Exec(ctx, query, id, tokenHash, expiresAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ConsumeResetToken swaps in the new password hash and clears the token in a
// single statement, so a token can only ever be redeemed once.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash []byte, passwordHash []byte) (string, error) {
	const query = `
		UPDATE users
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_token_expires_at = NULL,
		    updated_at = NOW()
		WHERE reset_token_hash = $1 AND reset_token_expires_at > NOW()
		RETURNING id
	`
	var id string
	if err := r.db.QueryRow(ctx, query, tokenHash, passwordHash).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrResetTokenInvalid
		}
		return "", err
	}
	return id, nil
}

func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context) (int64, error) {
	const query = `
		UPDATE users
		SET reset_token_hash = NULL, reset_token_expires_at = NULL
		WHERE reset_token_expires_at IS NOT NULL AND reset_token_expires_at <= NOW()
	`
	cmd, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *UserRepository) CountByRole(ctx context.Context) (total int, admins int, err error) {
	const query = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE role = 'admin') FROM users
	`
	err = r.db.QueryRow(ctx, query).Scan(&total, &admins)
	return total, admins, err
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Role,
		&user.AvatarURL,
		&user.FederatedSubject,
		&user.ResetTokenHash,
		&user.ResetTokenExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

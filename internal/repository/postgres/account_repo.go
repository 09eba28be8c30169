package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// GetByTelegramID selects an account by Telegram id.
func (r *AccountRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*model.Account, error) {
	const q = `
SELECT id, telegram_id, first_name, last_name, registration_completed, selected_role, created_at, updated_at
FROM profiles WHERE telegram_id=$1`
	var a model.Account
	var role pgtype.Text
	err := r.db.Pool.QueryRow(ctx, q, telegramID).Scan(
		&a.ID, &a.TelegramID, &a.FirstName, &a.LastName, &a.RegistrationCompleted, &role, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("select profile: %w", err)
	}
	if role.Valid {
		rl := model.Role(role.String)
		a.SelectedRole = &rl
	}
	return &a, nil
}

// CreateIfAbsent inserts the account unless its Telegram id is taken.
func (r *AccountRepo) CreateIfAbsent(ctx context.Context, a *model.Account) (bool, error) {
	const q = `
INSERT INTO profiles (id, telegram_id, first_name, last_name, registration_completed)
VALUES ($1, $2, $3, $4, false)
ON CONFLICT (telegram_id) DO NOTHING
RETURNING created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q, a.ID, a.TelegramID, a.FirstName, a.LastName).Scan(&a.CreatedAt, &a.UpdatedAt)
	switch {
	case err == nil:
		a.RegistrationCompleted = false
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case isUniqueViolation(err):
		return false, errs.ErrAlreadyExists
	default:
		return false, fmt.Errorf("insert profile: %w", err)
	}
}

// Roles lists roles of an account.
func (r *AccountRepo) Roles(ctx context.Context, accountID uuid.UUID) ([]model.Role, error) {
	const q = `SELECT role FROM user_roles WHERE user_id=$1 ORDER BY role`
	rows, err := r.db.Pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("select roles: %w", err)
	}
	defer rows.Close()

	roles := []model.Role{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		roles = append(roles, model.Role(s))
	}
	return roles, rows.Err()
}

// AddRole inserts a role assignment unless it already exists.
func (r *AccountRepo) AddRole(ctx context.Context, accountID uuid.UUID, role model.Role) (bool, error) {
	const q = `
INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
ON CONFLICT (user_id, role) DO NOTHING`
	tag, err := r.db.Pool.Exec(ctx, q, accountID, string(role))
	if err != nil {
		return false, fmt.Errorf("insert role: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetSelectedRole updates the role chosen during registration.
func (r *AccountRepo) SetSelectedRole(ctx context.Context, telegramID int64, role model.Role) error {
	const q = `UPDATE profiles SET selected_role=$2, updated_at=now() WHERE telegram_id=$1`
	return r.execOne(ctx, q, telegramID, string(role))
}

// CompleteRegistration sets registration_completed.
func (r *AccountRepo) CompleteRegistration(ctx context.Context, telegramID int64) error {
	const q = `UPDATE profiles SET registration_completed=true, updated_at=now() WHERE telegram_id=$1`
	return r.execOne(ctx, q, telegramID)
}

func (r *AccountRepo) execOne(ctx context.Context, q string, args ...any) error {
	tag, err := r.db.Pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// AdminRepo implements AdminRepository using PostgreSQL.
type AdminRepo struct{ db *DB }

// NewAdminRepo constructs an admin repository.
func NewAdminRepo(db *DB) *AdminRepo { return &AdminRepo{db: db} }

const adminColumns = `id, username, password_hash, full_name, is_active, last_login, created_at`

// Create inserts a new admin row.
func (r *AdminRepo) Create(ctx context.Context, a *model.AdminCredential) error {
	const q = `
INSERT INTO admin_users (id, username, password_hash, full_name, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, a.ID, a.Username, a.PasswordHash, nullText(a.FullName), a.IsActive).Scan(&a.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// GetActiveByUsername selects an active admin by username.
func (r *AdminRepo) GetActiveByUsername(ctx context.Context, username string) (*model.AdminCredential, error) {
	const q = `SELECT ` + adminColumns + ` FROM admin_users WHERE username=$1 AND is_active=true`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, username))
}

// GetByID selects an admin by id.
func (r *AdminRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.AdminCredential, error) {
	const q = `SELECT ` + adminColumns + ` FROM admin_users WHERE id=$1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, id))
}

// TouchLastLogin sets last_login.
func (r *AdminRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE admin_users SET last_login=$2 WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, at)
	return err
}

func (r *AdminRepo) scanOne(row pgx.Row) (*model.AdminCredential, error) {
	var a model.AdminCredential
	var fullName pgtype.Text
	var lastLogin pgtype.Timestamptz
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &fullName, &a.IsActive, &lastLogin, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("select admin: %w", err)
	}
	a.FullName = textPtr(fullName)
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	return &a, nil
}

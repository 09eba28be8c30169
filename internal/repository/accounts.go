// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/gofrs/uuid/v5"
)

// AccountRepository provides access to Telegram-backed accounts and their roles.
type AccountRepository interface {
	// GetByTelegramID loads an account by Telegram user id. Returns errs.ErrNotFound if absent.
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.Account, error)
	// CreateIfAbsent inserts a unless an account with the same Telegram id exists.
	// created is false when another writer got there first.
	CreateIfAbsent(ctx context.Context, a *model.Account) (created bool, err error)
	// Roles lists roles assigned to the account.
	Roles(ctx context.Context, accountID uuid.UUID) ([]model.Role, error)
	// AddRole assigns role idempotently; added is false if it was already present.
	AddRole(ctx context.Context, accountID uuid.UUID, role model.Role) (added bool, err error)
	// SetSelectedRole stores the role picked during bot registration.
	SetSelectedRole(ctx context.Context, telegramID int64, role model.Role) error
	// CompleteRegistration marks bot registration as finished.
	CompleteRegistration(ctx context.Context, telegramID int64) error
}

// AdminRepository provides access to admin panel credentials.
type AdminRepository interface {
	// Create inserts a new admin. Returns errs.ErrAlreadyExists on duplicate username.
	Create(ctx context.Context, a *model.AdminCredential) error
	// GetActiveByUsername loads an active admin. Returns errs.ErrNotFound otherwise.
	GetActiveByUsername(ctx context.Context, username string) (*model.AdminCredential, error)
	// GetByID loads an admin by id regardless of status.
	GetByID(ctx context.Context, id uuid.UUID) (*model.AdminCredential, error)
	// TouchLastLogin persists the time of a successful login.
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

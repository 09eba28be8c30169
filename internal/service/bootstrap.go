package service

import (
	"context"
	"fmt"

	"github.com/and161185/lyceum-portal/internal/crypto"
	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/and161185/lyceum-portal/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// GrantResult describes the outcome of GrantAdmin.
type GrantResult struct {
	AccountID    uuid.UUID
	TelegramID   int64
	AlreadyAdmin bool
}

// Message is the human-readable status returned to operators.
func (r GrantResult) Message() string {
	if r.AlreadyAdmin {
		return "User already has admin role"
	}
	return "Admin role assigned successfully"
}

// BootstrapService performs operator actions guarded by a shared secret.
type BootstrapService struct {
	secret   string
	admins   repository.AdminRepository
	accounts repository.AccountRepository
	prov     *Provisioner
	cost     int
	log      *zap.Logger
}

// NewBootstrapService constructs BootstrapService. An empty secret rejects every call.
func NewBootstrapService(secret string, admins repository.AdminRepository, accounts repository.AccountRepository,
	prov *Provisioner, bcryptCost int, log *zap.Logger) *BootstrapService {
	if log == nil {
		log = zap.NewNop()
	}
	return &BootstrapService{secret: secret, admins: admins, accounts: accounts, prov: prov, cost: bcryptCost, log: log}
}

// CreateAdmin inserts an active admin panel user.
func (b *BootstrapService) CreateAdmin(ctx context.Context, secret, username, password string, fullName *string) (*model.AdminCredential, error) {
	if !crypto.SecretEqual(b.secret, secret) {
		return nil, errs.ErrUnauthorized
	}
	if err := ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := crypto.HashPassword(password, b.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	a := &model.AdminCredential{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		IsActive:     true,
	}
	if err := b.admins.Create(ctx, a); err != nil {
		return nil, err
	}
	b.log.Info("admin created", zap.String("admin_id", id.String()), zap.String("username", username))
	return a, nil
}

// GrantAdmin assigns the admin role to the account of a Telegram user, creating
// the account if needed. Granting twice is harmless.
func (b *BootstrapService) GrantAdmin(ctx context.Context, secret string, telegramID int64) (GrantResult, error) {
	if telegramID == 0 {
		return GrantResult{}, fmt.Errorf("%w: telegram_id is required", errs.ErrInvalidInput)
	}
	if !crypto.SecretEqual(b.secret, secret) {
		return GrantResult{}, errs.ErrUnauthorized
	}

	acc, err := b.prov.EnsureAccount(ctx, model.TelegramPrincipal{ID: telegramID, FirstName: "Admin"})
	if err != nil {
		return GrantResult{}, err
	}
	added, err := b.accounts.AddRole(ctx, acc.ID, model.RoleAdmin)
	if err != nil {
		return GrantResult{}, err
	}
	if added {
		b.log.Info("admin role assigned", zap.Int64("telegram_id", telegramID))
	}
	return GrantResult{AccountID: acc.ID, TelegramID: telegramID, AlreadyAdmin: !added}, nil
}

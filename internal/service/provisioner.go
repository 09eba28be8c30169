package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/and161185/lyceum-portal/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Provisioner maps a verified Telegram principal to exactly one Account.
type Provisioner struct {
	accounts repository.AccountRepository
	log      *zap.Logger
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(accounts repository.AccountRepository, log *zap.Logger) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{accounts: accounts, log: log}
}

// EnsureAccount returns the account for p, creating it on first contact.
// Concurrent first contacts converge on the same row.
func (p *Provisioner) EnsureAccount(ctx context.Context, tp model.TelegramPrincipal) (*model.Account, error) {
	if tp.ID == 0 {
		return nil, fmt.Errorf("%w: telegram id is required", errs.ErrInvalidInput)
	}

	acc, err := p.accounts.GetByTelegramID(ctx, tp.ID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	acc = &model.Account{
		ID:         id,
		TelegramID: tp.ID,
		FirstName:  tp.FirstName,
		LastName:   tp.LastName,
	}
	created, err := p.accounts.CreateIfAbsent(ctx, acc)
	if err != nil && !errors.Is(err, errs.ErrAlreadyExists) {
		return nil, fmt.Errorf("create account: %w", err)
	}
	if created {
		p.log.Info("account created", zap.Int64("telegram_id", tp.ID), zap.String("account_id", id.String()))
		return acc, nil
	}

	p.log.Debug("account creation race lost, re-fetching", zap.Int64("telegram_id", tp.ID))
	acc, err = p.accounts.GetByTelegramID(ctx, tp.ID)
	if err != nil {
		return nil, fmt.Errorf("re-fetch account: %w", err)
	}
	return acc, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/and161185/lyceum-portal/internal/metrics"
	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/and161185/lyceum-portal/internal/repository"
	"github.com/and161185/lyceum-portal/internal/session"
	"go.uber.org/zap"
)

// PrincipalVerifier validates Telegram initData. Implemented by *initdata.Verifier.
type PrincipalVerifier interface {
	Verify(raw string) (model.TelegramPrincipal, error)
}

// MiniAppService logs Mini App users in from their initData.
type MiniAppService struct {
	verifier  PrincipalVerifier
	prov      *Provisioner
	accounts  repository.AccountRepository
	tokens    session.Issuer
	ttl       time.Duration
	webAppURL string
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// NewMiniAppService constructs MiniAppService.
func NewMiniAppService(v PrincipalVerifier, prov *Provisioner, accounts repository.AccountRepository,
	tokens session.Issuer, ttl time.Duration, webAppURL string, log *zap.Logger, m *metrics.Metrics) *MiniAppService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MiniAppService{verifier: v, prov: prov, accounts: accounts, tokens: tokens, ttl: ttl,
		webAppURL: webAppURL, log: log, metrics: m}
}

// Login verifies initData, provisions the account and issues a session.
// Verification failures wrap errs.ErrUnauthorized and never touch storage.
func (s *MiniAppService) Login(ctx context.Context, initData string) (model.MiniAppSession, error) {
	if initData == "" {
		return model.MiniAppSession{}, fmt.Errorf("%w: initData is required", errs.ErrInvalidInput)
	}
	p, err := s.verifier.Verify(initData)
	if err != nil {
		s.metrics.InitData("rejected")
		return model.MiniAppSession{}, fmt.Errorf("%w: %w", errs.ErrUnauthorized, err)
	}

	acc, err := s.prov.EnsureAccount(ctx, p)
	if err != nil {
		s.metrics.InitData("error")
		return model.MiniAppSession{}, err
	}
	roles, err := s.accounts.Roles(ctx, acc.ID)
	if err != nil {
		s.metrics.InitData("error")
		return model.MiniAppSession{}, fmt.Errorf("load roles: %w", err)
	}

	caps := make([]string, 0, len(roles))
	for _, r := range roles {
		caps = append(caps, string(r))
	}
	tok, claims, err := s.tokens.Issue(session.Claims{
		SubjectID:    acc.ID.String(),
		SubjectLabel: acc.FirstName,
		Capabilities: caps,
	}, s.ttl)
	if err != nil {
		s.metrics.InitData("error")
		return model.MiniAppSession{}, fmt.Errorf("issue session: %w", err)
	}

	s.metrics.InitData("ok")
	return model.MiniAppSession{
		Account:    *acc,
		Roles:      roles,
		Token:      tok,
		ExpiresAt:  claims.ExpiresAt,
		SessionURL: s.webAppURL + "#session=" + tok,
	}, nil
}

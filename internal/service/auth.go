// Package service contains application services for authentication, provisioning and bootstrap.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/and161185/lyceum-portal/internal/crypto"
	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/and161185/lyceum-portal/internal/limiter"
	"github.com/and161185/lyceum-portal/internal/metrics"
	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/and161185/lyceum-portal/internal/repository"
	"github.com/and161185/lyceum-portal/internal/session"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// MaxCredentialLength bounds usernames and passwords in characters.
const MaxCredentialLength = 100

// AdminSessionTTL is the lifetime of an admin panel session.
const AdminSessionTTL = 24 * time.Hour

// Input errors distinguished by the HTTP layer. Both wrap errs.ErrInvalidInput.
var (
	ErrCredentialsRequired = fmt.Errorf("%w: username and password are required", errs.ErrInvalidInput)
	ErrCredentialsTooLong  = fmt.Errorf("%w: credentials too long", errs.ErrInvalidInput)
)

// LockedError reports an active lockout. It unwraps to errs.ErrRateLimited.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter)
}

func (e *LockedError) Unwrap() error { return errs.ErrRateLimited }

// AuthService authenticates admin panel users.
type AuthService struct {
	admins  repository.AdminRepository
	lim     limiter.Limiter
	tokens  session.Issuer
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics

	checkPassword func(hash, password string) bool
	dummyHash     func() string
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(admins repository.AdminRepository, lim limiter.Limiter, tokens session.Issuer, log *zap.Logger, m *metrics.Metrics) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		admins:        admins,
		lim:           lim,
		tokens:        tokens,
		ttl:           AdminSessionTTL,
		now:           time.Now,
		log:           log,
		metrics:       m,
		checkPassword: crypto.CheckPassword,
		dummyHash:     crypto.DummyHash,
	}
}

// ValidateCredentials applies the shape checks shared by login and admin creation.
func ValidateCredentials(username, password string) error {
	if username == "" || password == "" {
		return ErrCredentialsRequired
	}
	if utf8.RuneCountInString(username) > MaxCredentialLength || utf8.RuneCountInString(password) > MaxCredentialLength {
		return ErrCredentialsTooLong
	}
	return nil
}

// AdminLogin checks credentials under the lockout policy and issues an admin session.
// Unknown user, inactive user and wrong password all yield errs.ErrUnauthorized.
func (s *AuthService) AdminLogin(ctx context.Context, username, password string) (model.AdminSession, error) {
	if err := ValidateCredentials(username, password); err != nil {
		s.metrics.AdminLogin(metrics.LoginInvalidInput)
		return model.AdminSession{}, err
	}

	allowed, retry, err := s.lim.Allow(ctx, username)
	if err != nil {
		s.metrics.AdminLogin(metrics.LoginError)
		return model.AdminSession{}, fmt.Errorf("limiter allow: %w", err)
	}
	if !allowed {
		s.metrics.AdminLogin(metrics.LoginLocked)
		return model.AdminSession{}, &LockedError{RetryAfter: retry}
	}

	admin, err := s.admins.GetActiveByUsername(ctx, username)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		// Unknown users pay the same bcrypt cost as a wrong password.
		_ = s.checkPassword(s.dummyHash(), password)
		return model.AdminSession{}, s.reject(ctx, username)
	case err != nil:
		s.metrics.AdminLogin(metrics.LoginError)
		return model.AdminSession{}, fmt.Errorf("load admin: %w", err)
	}
	if !s.checkPassword(admin.PasswordHash, password) {
		return model.AdminSession{}, s.reject(ctx, username)
	}

	if err := s.lim.Success(ctx, username); err != nil {
		s.log.Warn("limiter reset failed", zap.String("username", username), zap.Error(err))
	}
	now := s.now()
	if err := s.admins.TouchLastLogin(ctx, admin.ID, now); err != nil {
		s.log.Warn("last login update failed", zap.String("admin_id", admin.ID.String()), zap.Error(err))
	}
	admin.LastLoginAt = &now

	tok, claims, err := s.tokens.Issue(session.Claims{
		SubjectID:    admin.ID.String(),
		SubjectLabel: admin.Username,
		Capabilities: []string{session.CapabilityAdmin},
	}, s.ttl)
	if err != nil {
		s.metrics.AdminLogin(metrics.LoginError)
		return model.AdminSession{}, fmt.Errorf("issue session: %w", err)
	}
	s.metrics.AdminLogin(metrics.LoginOK)
	return model.AdminSession{Token: tok, ExpiresAt: claims.ExpiresAt, Admin: *admin}, nil
}

func (s *AuthService) reject(ctx context.Context, username string) error {
	s.metrics.AdminLogin(metrics.LoginRejected)
	n, err := s.lim.Failure(ctx, username)
	if err != nil {
		s.log.Error("limiter failure record", zap.String("username", username), zap.Error(err))
	} else {
		s.log.Info("admin login rejected", zap.String("username", username), zap.Int("failures", n))
	}
	return errs.ErrUnauthorized
}

// VerifyAdminSession re-validates an admin token on the server side: signature,
// expiry, admin capability and that the admin is still active.
func (s *AuthService) VerifyAdminSession(ctx context.Context, token string) (*model.AdminCredential, session.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, session.Claims{}, fmt.Errorf("%w: %w", errs.ErrUnauthorized, err)
	}
	if !claims.Has(session.CapabilityAdmin) {
		return nil, session.Claims{}, errs.ErrUnauthorized
	}
	id, err := uuid.FromString(claims.SubjectID)
	if err != nil {
		return nil, session.Claims{}, errs.ErrUnauthorized
	}
	admin, err := s.admins.GetByID(ctx, id)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return nil, session.Claims{}, errs.ErrUnauthorized
	case err != nil:
		return nil, session.Claims{}, err
	}
	if !admin.IsActive {
		return nil, session.Claims{}, errs.ErrUnauthorized
	}
	return admin, claims, nil
}

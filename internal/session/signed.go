package session

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type signedClaims struct {
	Label        string   `json:"label,omitempty"`
	Capabilities []string `json:"caps,omitempty"`
	jwt.RegisteredClaims
}

// Signed issues HS256 JWTs. The signature is checked before expiry.
type Signed struct {
	key      []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewSigned constructs a Signed issuer. key must not be empty.
func NewSigned(key []byte, issuer string, now func() time.Time) (*Signed, error) {
	if len(key) == 0 {
		return nil, errors.New("session: empty signing key")
	}
	if now == nil {
		now = time.Now
	}
	return &Signed{key: key, issuer: issuer, now: now}, nil
}

// WithAudience returns an issuer sharing s's key that stamps aud into issued
// tokens and accepts only tokens carrying it.
func (s *Signed) WithAudience(aud string) *Signed {
	c := *s
	c.audience = aud
	return &c
}

// Issue creates a signed token.
func (s *Signed) Issue(c Claims, ttl time.Duration) (string, Claims, error) {
	if ttl <= 0 {
		return "", Claims{}, ErrInvalidTTL
	}
	now := s.now()
	c.ExpiresAt = expiry(now, ttl)

	sc := signedClaims{
		Label:        c.SubjectLabel,
		Capabilities: c.Capabilities,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   c.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	}
	if s.audience != "" {
		sc.Audience = jwt.ClaimStrings{s.audience}
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sc).SignedString(s.key)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return tok, c, nil
}

// Verify checks signature, structure, audience and expiry, in that order.
func (s *Signed) Verify(token string) (Claims, error) {
	// Claims validation is disabled so that expiry is judged against s.now.
	p := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	var sc signedClaims
	_, err := p.ParseWithClaims(token, &sc, func(*jwt.Token) (any, error) { return s.key, nil })
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrSignatureInvalid
	default:
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if sc.Subject == "" || sc.ExpiresAt == nil {
		return Claims{}, ErrMalformed
	}
	if s.audience != "" && !slices.Contains(sc.Audience, s.audience) {
		return Claims{}, ErrAudience
	}
	exp := sc.ExpiresAt.Time
	if !s.now().Before(exp) {
		return Claims{}, ErrExpired
	}
	return Claims{
		SubjectID:    sc.Subject,
		SubjectLabel: sc.Label,
		Capabilities: sc.Capabilities,
		ExpiresAt:    exp,
	}, nil
}

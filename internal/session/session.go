// Package session issues and verifies stateless session tokens.
//
// Two formats exist. Signed is an HS256 JWT and is the default. Legacy is an
// unsigned base64 JSON payload kept only for interoperability with old admin
// panel clients: anyone can forge it, so it must be enabled explicitly.
package session

import (
	"errors"
	"time"
)

// Verification errors.
var (
	ErrMalformed        = errors.New("session: malformed token")
	ErrExpired          = errors.New("session: token expired")
	ErrSignatureInvalid = errors.New("session: invalid signature")
	ErrInvalidTTL       = errors.New("session: ttl must be positive")
	ErrAudience         = errors.New("session: token issued for another audience")
)

// Capability names carried in claims.
const CapabilityAdmin = "admin"

// Audiences of signed tokens. Admin panel and Mini App tokens share a key
// but are not interchangeable.
const (
	AudienceAdmin   = "admin"
	AudienceMiniApp = "miniapp"
)

// Claims is the identity carried by a token.
type Claims struct {
	SubjectID    string
	SubjectLabel string
	Capabilities []string
	ExpiresAt    time.Time
}

// Has reports whether the claims carry capability c.
func (c Claims) Has(capability string) bool {
	for _, v := range c.Capabilities {
		if v == capability {
			return true
		}
	}
	return false
}

// Issuer creates and verifies tokens.
type Issuer interface {
	// Issue returns a token valid for ttl and the claims as embedded (ExpiresAt set).
	Issue(c Claims, ttl time.Duration) (string, Claims, error)
	// Verify decodes token and rejects it if malformed, forged or expired.
	Verify(token string) (Claims, error)
}

// expiry returns now+ttl rounded up to a whole second, so that the encoded
// value is always strictly after now.
func expiry(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if t := exp.Truncate(time.Second); !t.Equal(exp) {
		exp = t.Add(time.Second)
	}
	return exp
}

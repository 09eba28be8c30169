package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

type legacyPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Exp      int64  `json:"exp"` // unix milliseconds
}

// Legacy issues unsigned base64(JSON{id, username, exp}) tokens.
// The format has no room for capabilities; every verified token carries
// the implied set given at construction.
type Legacy struct {
	implied []string
	now     func() time.Time
}

// NewLegacy constructs a Legacy issuer.
func NewLegacy(implied []string, now func() time.Time) *Legacy {
	if now == nil {
		now = time.Now
	}
	return &Legacy{implied: implied, now: now}
}

// Issue encodes the claims. Capabilities are not stored.
func (l *Legacy) Issue(c Claims, ttl time.Duration) (string, Claims, error) {
	if ttl <= 0 {
		return "", Claims{}, ErrInvalidTTL
	}
	now := l.now()
	exp := now.Add(ttl)
	b, err := json.Marshal(legacyPayload{ID: c.SubjectID, Username: c.SubjectLabel, Exp: exp.UnixMilli()})
	if err != nil {
		return "", Claims{}, fmt.Errorf("encode token: %w", err)
	}
	c.ExpiresAt = time.UnixMilli(exp.UnixMilli())
	c.Capabilities = l.implied
	return base64.StdEncoding.EncodeToString(b), c, nil
}

// Verify decodes the payload and checks expiry. It never returns ErrSignatureInvalid.
func (l *Legacy) Verify(token string) (Claims, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, ErrMalformed
	}
	var p legacyPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" || p.Exp == 0 {
		return Claims{}, ErrMalformed
	}
	if l.now().UnixMilli() >= p.Exp {
		return Claims{}, ErrExpired
	}
	return Claims{
		SubjectID:    p.ID,
		SubjectLabel: p.Username,
		Capabilities: l.implied,
		ExpiresAt:    time.UnixMilli(p.Exp),
	}, nil
}

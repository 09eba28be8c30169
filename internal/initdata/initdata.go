// Package initdata verifies Telegram Mini App initData payloads.
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/lyceum-portal/internal/model"
)

// Verification errors. All of them are reported as authentication failure at the boundary.
var (
	ErrMissingHash      = errors.New("initdata: hash is missing")
	ErrInvalidSignature = errors.New("initdata: invalid signature")
	ErrMissingUserField = errors.New("initdata: user field is missing or malformed")
	ErrExpired          = errors.New("initdata: auth_date is too old")
)

const webAppDataKey = "WebAppData"

// Verifier checks initData signatures for a single bot token.
type Verifier struct {
	botToken string
	maxAge   time.Duration // 0 disables the auth_date check
	now      func() time.Time
}

// Option customizes a Verifier.
type Option func(*Verifier)

// WithMaxAge rejects payloads whose auth_date is older than d.
func WithMaxAge(d time.Duration) Option { return func(v *Verifier) { v.maxAge = d } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(v *Verifier) { v.now = now } }

// NewVerifier constructs a Verifier for botToken.
func NewVerifier(botToken string, opts ...Option) *Verifier {
	v := &Verifier{botToken: botToken, now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify validates raw initData and returns the embedded user.
// The input string is never modified.
func (v *Verifier) Verify(raw string) (model.TelegramPrincipal, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return model.TelegramPrincipal{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	hash := values.Get("hash")
	if hash == "" {
		return model.TelegramPrincipal{}, ErrMissingHash
	}
	values.Del("hash")

	want := Compute(values, v.botToken)
	if !hmac.Equal([]byte(want), []byte(hash)) {
		return model.TelegramPrincipal{}, ErrInvalidSignature
	}

	if v.maxAge > 0 {
		ts, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil || v.now().Sub(time.Unix(ts, 0)) > v.maxAge {
			return model.TelegramPrincipal{}, ErrExpired
		}
	}

	userRaw := values.Get("user")
	if userRaw == "" {
		return model.TelegramPrincipal{}, ErrMissingUserField
	}
	var p model.TelegramPrincipal
	if err := json.Unmarshal([]byte(userRaw), &p); err != nil || p.ID == 0 {
		return model.TelegramPrincipal{}, ErrMissingUserField
	}
	return p, nil
}

// DataCheckString builds the canonical string: keys sorted byte-wise, "key=value"
// lines joined with '\n'. A "hash" key, if present, is skipped.
func DataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, val := range values[k] {
			lines = append(lines, k+"="+val)
		}
	}
	return strings.Join(lines, "\n")
}

// Compute returns the lowercase hex signature of values for botToken.
func Compute(values url.Values, botToken string) string {
	kh := hmac.New(sha256.New, []byte(webAppDataKey))
	kh.Write([]byte(botToken))
	derived := kh.Sum(nil)

	h := hmac.New(sha256.New, derived)
	h.Write([]byte(DataCheckString(values)))
	return hex.EncodeToString(h.Sum(nil))
}

// Sign returns an encoded initData string with a valid hash for botToken.
func Sign(values url.Values, botToken string) string {
	out := url.Values{}
	for k, vs := range values {
		if k == "hash" {
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	out.Set("hash", Compute(out, botToken))
	return out.Encode()
}

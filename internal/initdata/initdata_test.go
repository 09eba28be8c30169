package initdata

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const botToken = "123456:test-token"

func signedFixture(t *testing.T) string {
	t.Helper()
	v := url.Values{}
	v.Set("auth_date", "1700000000")
	v.Set("query_id", "AAE")
	v.Set("user", `{"id":42,"first_name":"Иван","last_name":"Петров","username":"ivan"}`)
	return Sign(v, botToken)
}

func TestVerify_Valid(t *testing.T) {
	raw := signedFixture(t)
	before := raw

	p, err := NewVerifier(botToken).Verify(raw)
	require.NoError(t, err)
	require.Equal(t, int64(42), p.ID)
	require.Equal(t, "Иван", p.FirstName)
	require.Equal(t, "Петров", p.LastName)
	require.Equal(t, "ivan", p.Username)
	require.Equal(t, before, raw)
}

func TestVerify_SingleCharHashMutation(t *testing.T) {
	raw := signedFixture(t)
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	hash := values.Get("hash")
	require.Len(t, hash, 64)

	v := NewVerifier(botToken)
	for i := 0; i < len(hash); i++ {
		repl := byte('0')
		if hash[i] == '0' {
			repl = '1'
		}
		mutated := hash[:i] + string(repl) + hash[i+1:]
		values.Set("hash", mutated)

		_, err := v.Verify(values.Encode())
		require.ErrorIs(t, err, ErrInvalidSignature, "position %d", i)
	}
}

func TestVerify_WrongToken(t *testing.T) {
	_, err := NewVerifier("other:token").Verify(signedFixture(t))
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_MissingHash(t *testing.T) {
	_, err := NewVerifier(botToken).Verify("auth_date=1&user=%7B%22id%22%3A1%7D")
	require.ErrorIs(t, err, ErrMissingHash)
}

func TestVerify_Deadbeef(t *testing.T) {
	_, err := NewVerifier(botToken).Verify("user=%7B%22id%22%3A1%7D&auth_date=1&hash=deadbeef")
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_MissingUserField(t *testing.T) {
	v := url.Values{}
	v.Set("auth_date", "1700000000")
	_, err := NewVerifier(botToken).Verify(Sign(v, botToken))
	require.ErrorIs(t, err, ErrMissingUserField)

	v.Set("user", "{not json")
	_, err = NewVerifier(botToken).Verify(Sign(v, botToken))
	require.ErrorIs(t, err, ErrMissingUserField)
}

func TestVerify_MaxAge(t *testing.T) {
	raw := signedFixture(t)
	issued := time.Unix(1700000000, 0)

	fresh := NewVerifier(botToken, WithMaxAge(time.Hour), WithClock(func() time.Time { return issued.Add(time.Minute) }))
	_, err := fresh.Verify(raw)
	require.NoError(t, err)

	stale := NewVerifier(botToken, WithMaxAge(time.Hour), WithClock(func() time.Time { return issued.Add(2 * time.Hour) }))
	_, err = stale.Verify(raw)
	require.ErrorIs(t, err, ErrExpired)
}

func TestDataCheckString_OrdinalSort(t *testing.T) {
	v := url.Values{}
	v.Set("b", "2")
	v.Set("B", "upper")
	v.Set("a", "1")
	v.Set("hash", "ignored")

	got := DataCheckString(v)
	require.Equal(t, "B=upper\na=1\nb=2", got)
	require.False(t, strings.HasSuffix(got, "\n"))
}

func TestCompute_DeterministicAndKeyed(t *testing.T) {
	v := url.Values{}
	v.Set("auth_date", "1")
	v.Set("user", `{"id":1}`)
	got := Compute(v, botToken)
	require.Len(t, got, 64)
	require.Equal(t, got, Compute(v, botToken))
	require.NotEqual(t, got, Compute(v, botToken+"x"))
}

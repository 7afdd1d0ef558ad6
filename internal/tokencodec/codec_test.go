package tokencodec

import (
	"strings"
	"testing"
	"time"

	"github.com/alone-wolf/rutify/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New([]byte(testSecret))
	require.NoError(t, err)
	return c
}

func claimsFor(kind domain.TokenKind, ttl time.Duration) Claims {
	now := time.Now().UTC().Truncate(time.Second)
	return Claims{
		Subject:   "42",
		Usage:     "sensor-1",
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		ID:        uuid.NewString(),
	}
}

func TestNewRejectsShortSecret(t *testing.T) {
	_, err := New([]byte(strings.Repeat("x", MinSecretLength-1)))
	require.ErrorIs(t, err, ErrWeakSecret)

	_, err = New([]byte(strings.Repeat("x", MinSecretLength)))
	require.NoError(t, err)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c := newCodec(t)
	for _, kind := range []domain.TokenKind{domain.TokenKindNotifyBearer, domain.TokenKindUserSession} {
		t.Run(string(kind), func(t *testing.T) {
			in := claimsFor(kind, time.Hour)
			token, err := c.Issue(in)
			require.NoError(t, err)

			out, err := c.Verify(token, kind)
			require.NoError(t, err)
			require.Equal(t, in, out)
		})
	}
}

func TestVerifyFailures(t *testing.T) {
	c := newCodec(t)
	other, err := New([]byte(strings.Repeat("z", 40)))
	require.NoError(t, err)

	valid, err := c.Issue(claimsFor(domain.TokenKindNotifyBearer, time.Hour))
	require.NoError(t, err)
	foreign, err := other.Issue(claimsFor(domain.TokenKindNotifyBearer, time.Hour))
	require.NoError(t, err)
	expired, err := c.Issue(claimsFor(domain.TokenKindNotifyBearer, -5*time.Minute))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		kind  domain.TokenKind
		want  error
	}{
		{name: "garbage", token: "not-a-jwt", kind: domain.TokenKindNotifyBearer, want: ErrInvalidSignature},
		{name: "foreign secret", token: foreign, kind: domain.TokenKindNotifyBearer, want: ErrInvalidSignature},
		{name: "tampered", token: valid[:len(valid)-2] + "xx", kind: domain.TokenKindNotifyBearer, want: ErrInvalidSignature},
		{name: "expired", token: expired, kind: domain.TokenKindNotifyBearer, want: ErrExpired},
		{name: "wrong kind", token: valid, kind: domain.TokenKindUserSession, want: ErrWrongKind},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Verify(tc.token, tc.kind)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerifyToleratesClockSkew(t *testing.T) {
	c := newCodec(t)
	token, err := c.Issue(claimsFor(domain.TokenKindNotifyBearer, -20*time.Second))
	require.NoError(t, err)

	_, err = c.Verify(token, domain.TokenKindNotifyBearer)
	require.NoError(t, err)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	c := newCodec(t)
	// alg "none" must never be accepted.
	unsigned := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiIxIiwidG9rZW5fdHlwZSI6Im5vdGlmeV9iZWFyZXIiLCJleHAiOjQxMDI0NDQ4MDB9."
	_, err := c.Verify(unsigned, domain.TokenKindNotifyBearer)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestHashIsStableHex(t *testing.T) {
	a := Hash("token")
	require.Equal(t, a, Hash("token"))
	require.Len(t, a, 64)
	require.NotEqual(t, a, Hash("token2"))
}

package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	iss, err := NewIssuer("secret", "whotserver", time.Hour)
	require.NoError(t, err)

	token, exp, err := iss.Issue("alice", "Alice")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "Alice", claims.Name)
}

func TestVerifyRejects(t *testing.T) {
	iss, err := NewIssuer("secret", "whotserver", time.Hour)
	require.NoError(t, err)
	token, _, err := iss.Issue("alice", "Alice")
	require.NoError(t, err)

	other, err := NewIssuer("other", "whotserver", time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewIssuer("secret", "elsewhere", time.Hour)
	require.NoError(t, err)
	_, err = wrongIssuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// expired
	iss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = iss.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// empty subject
	iss.now = time.Now
	anon, _, err := iss.Issue("", "nobody")
	require.NoError(t, err)
	_, err = iss.Verify(anon)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuerEmptySecret(t *testing.T) {
	_, err := NewIssuer("", "x", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=q", nil)
	tok, err := TokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "q", tok)

	r.Header.Set("Authorization", "Bearer h")
	tok, err = TokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "h", tok)

	_, err = TokenFromRequest(httptest.NewRequest("GET", "/ws", nil))
	assert.ErrorIs(t, err, ErrNoToken)
}

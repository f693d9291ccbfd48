package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTIssueAndVerify(t *testing.T) {
	issuer := NewJWTIssuer("test-secret")
	verifier := NewJWTVerifier("test-secret")

	token, err := issuer.Issue("user-1", "ana@example.org", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestJWTVerify_Failures(t *testing.T) {
	issuer := NewJWTIssuer("test-secret")

	t.Run("wrong secret", func(t *testing.T) {
		token, err := issuer.Issue("user-1", "ana@example.org", time.Hour)
		require.NoError(t, err)

		_, err = NewJWTVerifier("other-secret").Verify(token)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := issuer.Issue("user-1", "ana@example.org", -time.Minute)
		require.NoError(t, err)

		_, err = NewJWTVerifier("test-secret").Verify(token)
		assert.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := NewJWTVerifier("test-secret").Verify("not.a.jwt")
		assert.Error(t, err)
	})
}

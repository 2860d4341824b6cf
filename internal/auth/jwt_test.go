package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokensRequiresSecret(t *testing.T) {
	_, err := NewTokens("", time.Hour)
	assert.Error(t, err)

	tokens, err := NewTokens("s3cret", 0)
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, tokens.TTL())
}

func TestGenerateAndVerify(t *testing.T) {
	tokens, err := NewTokens("s3cret", time.Hour)
	require.NoError(t, err)

	token, err := tokens.GenerateJWT(42, "alice")
	require.NoError(t, err)

	userID, err := tokens.VerifyJWT(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestVerifyRejects(t *testing.T) {
	tokens, err := NewTokens("s3cret", time.Hour)
	require.NoError(t, err)

	other, err := NewTokens("different", time.Hour)
	require.NoError(t, err)

	foreign, err := other.GenerateJWT(1, "alice")
	require.NoError(t, err)

	expiredAt := time.Now()
	stale := &Tokens{secret: tokens.secret, ttl: time.Minute, now: func() time.Time { return expiredAt.Add(-time.Hour) }}
	expired, err := stale.GenerateJWT(1, "alice")
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(tokens.secret)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"missing user id", noUser},
		{"unsigned", none},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.VerifyJWT(tt.token)
			assert.Error(t, err)
		})
	}
}

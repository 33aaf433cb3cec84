package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, c claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestFromAccessTokenAnonymous(t *testing.T) {
	v, err := FromAccessToken("", "", time.Now())
	require.NoError(t, err)
	assert.False(t, v.LoggedIn())
}

func TestFromAccessTokenVerified(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	tok := sign(t, "s3cret", claims{
		Email: "a@b.se",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})

	v, err := FromAccessToken(tok, "s3cret", now)
	require.NoError(t, err)
	assert.Equal(t, "user-1", v.UserID)
	assert.Equal(t, "a@b.se", v.Email)
	assert.True(t, v.LoggedIn())

	_, err = FromAccessToken(tok, "wrong", now)
	assert.Error(t, err)
}

func TestFromAccessTokenUnverifiedExpiry(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	tok := sign(t, "whatever", claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-2",
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		},
	})

	_, err := FromAccessToken(tok, "", now)
	assert.ErrorIs(t, err, ErrExpired)

	v, err := FromAccessToken(tok, "", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "user-2", v.UserID)
}

package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintBakongToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestBakongTokenExpired(t *testing.T) {
	now := time.Now()
	c := NewBakongClient("https://api-bakong.example", "")

	assert.True(t, c.TokenExpired(now), "missing token is unusable")

	c.Token = "not-a-jwt"
	assert.False(t, c.TokenExpired(now), "opaque tokens are left to the API")

	c.Token = mintBakongToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	assert.False(t, c.TokenExpired(now))

	c.Token = mintBakongToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()})
	assert.True(t, c.TokenExpired(now))

	c.Token = mintBakongToken(t, jwt.MapClaims{"sub": "merchant"})
	assert.False(t, c.TokenExpired(now), "no exp claim means no local expiry")
}

package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	m := NewJWTManager("secret", 1)
	tok, err := m.GenerateToken("admin", RoleAdmin)
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "admin", claims.Subject)
}

func TestVerifyTokenRejectsOtherSecret(t *testing.T) {
	tok, err := NewJWTManager("secret", 1).GenerateToken("admin", RoleAdmin)
	require.NoError(t, err)

	_, err = NewJWTManager("another", 1).VerifyToken(tok)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	m := NewJWTManager("secret", -1)
	tok, err := m.GenerateToken("admin", RoleAdmin)
	require.NoError(t, err)

	_, err = m.VerifyToken(tok)
	assert.Error(t, err)
}

func TestEmptySecretRejectsEverything(t *testing.T) {
	m := NewJWTManager("", 1)
	assert.False(t, m.Enabled())

	_, err := m.GenerateToken("admin", RoleAdmin)
	assert.ErrorIs(t, err, ErrSecretNotConfigured)

	// 手工用空密钥签出的 ADMIN token 也不能通过校验
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, CustomClaims{
		Username: "mallory",
		Role:     RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	tok, err := forged.SignedString([]byte(""))
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	assert.ErrorIs(t, err, ErrSecretNotConfigured)
	assert.Nil(t, claims)
}

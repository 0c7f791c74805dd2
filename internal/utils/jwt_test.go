package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndExtractUserID(t *testing.T) {
	service := NewJWTService("test-secret")

	token, err := service.GenerateToken("8f14e45f-ea4c-4cde-8bb1-9c3ad6e0f1aa")
	require.NoError(t, err)

	userID, err := service.ExtractUserID(token)
	require.NoError(t, err)
	assert.Equal(t, "8f14e45f-ea4c-4cde-8bb1-9c3ad6e0f1aa", userID)
}

// Токен, подписанный другим секретом, отклоняется
func TestExtractUserID_WrongSecret(t *testing.T) {
	issuer := NewJWTService("secret-a")
	verifier := NewJWTService("secret-b")

	token, err := issuer.GenerateToken("user-1")
	require.NoError(t, err)

	_, err = verifier.ExtractUserID(token)
	assert.Error(t, err)
}

// Старые токены кладут ID в claim user_id
func TestExtractUserID_LegacyClaim(t *testing.T) {
	service := NewJWTService("test-secret")

	claims := jwt.MapClaims{
		"user_id": "legacy-user",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	userID, err := service.ExtractUserID(signed)
	require.NoError(t, err)
	assert.Equal(t, "legacy-user", userID)
}

// Просроченный токен отклоняется
func TestExtractUserID_Expired(t *testing.T) {
	service := NewJWTService("test-secret")

	claims := jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = service.ExtractUserID(signed)
	assert.Error(t, err)
}

// Токен без ID пользователя бесполезен
func TestExtractUserID_NoUserClaim(t *testing.T) {
	service := NewJWTService("test-secret")

	claims := jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = service.ExtractUserID(signed)
	assert.Error(t, err)
}

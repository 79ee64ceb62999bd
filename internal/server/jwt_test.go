package server

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/server/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-minimum-32-bytes"

func setupTestJWTService(_ *testing.T, expirationHours int) *JWTService {
	return NewJWTService(&config.JWTConfig{
		Secret:          testSecret,
		ExpirationHours: expirationHours,
		Issuer:          config.DefaultJWTIssuer,
	})
}

func TestJWTService_RoundTrip(t *testing.T) {
	service := setupTestJWTService(t, 24)

	token, err := service.GenerateToken("acme", "user-1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := service.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acme", claims.TenantID)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, config.DefaultJWTIssuer, claims.Issuer)

	principal, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, middleware.Principal{TenantID: "acme", UserID: "user-1"}, principal)
}

func TestJWTService_GenerateRequiresTenant(t *testing.T) {
	_, err := setupTestJWTService(t, 24).GenerateToken("", "user-1")
	assert.Error(t, err)
}

func TestJWTService_Expired(t *testing.T) {
	service := setupTestJWTService(t, 1)
	token, err := service.GenerateToken("acme", "user-1")
	require.NoError(t, err)

	service.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = service.ParseToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}

func TestJWTService_WrongSecret(t *testing.T) {
	token, err := setupTestJWTService(t, 24).GenerateToken("acme", "user-1")
	require.NoError(t, err)

	other := NewJWTService(&config.JWTConfig{Secret: "another-secret-of-enough-length", ExpirationHours: 24, Issuer: config.DefaultJWTIssuer})
	_, err = other.ParseToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token signature")
}

func TestJWTService_WrongIssuer(t *testing.T) {
	token, err := setupTestJWTService(t, 24).GenerateToken("acme", "user-1")
	require.NoError(t, err)

	other := NewJWTService(&config.JWTConfig{Secret: testSecret, ExpirationHours: 24, Issuer: "someone-else"})
	_, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{TenantID: "acme", RegisteredClaims: jwt.RegisteredClaims{Issuer: config.DefaultJWTIssuer}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = setupTestJWTService(t, 24).ParseToken(token)
	assert.Error(t, err)
}

func TestJWTService_Malformed(t *testing.T) {
	service := setupTestJWTService(t, 24)

	_, err := service.ParseToken("")
	assert.Error(t, err)

	_, err = service.ParseToken("not.a.jwt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed token")
}

func TestJWTService_MissingTenant(t *testing.T) {
	claims := &Claims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{Issuer: config.DefaultJWTIssuer}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = setupTestJWTService(t, 24).ParseToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tenant")
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"chatgw/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject})
	raw, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func TestResolveUsesTokenSubject(t *testing.T) {
	resolver := NewIdentityResolver(config.JWTConfig{SecretKey: "s3cret"})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "s3cret", "user-42"))

	assert.Equal(t, "user-42", resolver.Resolve(req))
}

func TestResolveRejectsForgedToken(t *testing.T) {
	resolver := NewIdentityResolver(config.JWTConfig{SecretKey: "s3cret"})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.RemoteAddr = "203.0.113.9:4242"
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "wrong-secret", "user-42"))

	assert.Equal(t, "203.0.113.9", resolver.Resolve(req))
}

func TestResolveFallsBackToClientAddress(t *testing.T) {
	resolver := NewIdentityResolver(config.JWTConfig{SecretKey: "s3cret"})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.RemoteAddr = "198.51.100.7:9000"

	assert.Equal(t, "198.51.100.7", resolver.Resolve(req))
}

func TestResolveWithoutSecretIgnoresTokens(t *testing.T) {
	resolver := NewIdentityResolver(config.JWTConfig{})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.RemoteAddr = "198.51.100.7:9000"
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "anything", "user-42"))

	assert.Equal(t, "198.51.100.7", resolver.Resolve(req))
}

// Package auth derives the opaque identifier that keys quota accounting.
// The gateway performs no login of its own: when the caller presents a
// bearer token signed with the shared secret its subject claim is used,
// otherwise the client address is.
package auth

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"chatgw/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

type IdentityResolver struct {
	secret []byte
}

func NewIdentityResolver(cfg config.JWTConfig) *IdentityResolver {
	return &IdentityResolver{secret: []byte(cfg.SecretKey)}
}

// Resolve returns the quota identifier for a request. It never fails; an
// unverifiable token just falls back to the client address.
func (r *IdentityResolver) Resolve(req *http.Request) string {
	if token, found := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer "); found && len(r.secret) > 0 {
		if subject := r.subjectOf(strings.TrimSpace(token)); subject != "" {
			return subject
		}
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

func (r *IdentityResolver) subjectOf(raw string) string {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return ""
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return subject
}

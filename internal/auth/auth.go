// Package auth provides Bearer-token authentication for the Control API,
// adapted from api-gateway/internal/middleware/auth.go's JWT middleware.
// Unlike the gateway's per-user claims, the engine has a single service
// identity: any caller holding a token signed with AUTH_SECRET is trusted
// with full access, matching spec.md §7's "single shared secret" model.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const contextKeySubject contextKey = "auth_subject"

// Config holds the HMAC secret used to sign and verify tokens.
type Config struct {
	SecretKey     []byte
	TokenDuration time.Duration
}

// NewConfig builds a Config from a raw secret string; empty secrets fall
// back to a clearly-marked development default so the engine still boots
// without AUTH_SECRET set.
func NewConfig(secret string) Config {
	if secret == "" {
		secret = "autoscraper-dev-secret-change-in-production"
	}
	return Config{SecretKey: []byte(secret), TokenDuration: 24 * time.Hour}
}

type claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token identifying subject (typically a client or
// operator name used only for audit logging).
func GenerateToken(cfg Config, subject string) (string, time.Time, error) {
	expiresAt := time.Now().Add(cfg.TokenDuration)
	c := claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "autoscraper-engine",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(cfg.SecretKey)
	return signed, expiresAt, err
}

// ParseToken validates and decodes a bearer token string.
func ParseToken(cfg Config, tokenStr string) (*claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return cfg.SecretKey, nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return c, nil
}

// Middleware rejects requests without a valid Bearer token, per spec.md
// §7's auth requirement. /health, /health/live, and /health/ready are
// expected to be mounted outside this middleware's scope.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := extractBearerToken(r)
			if tokenStr == "" {
				writeAuthError(w, "missing or malformed Authorization header")
				return
			}
			c, err := ParseToken(cfg, tokenStr)
			if err != nil {
				writeAuthError(w, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), contextKeySubject, c.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subject returns the authenticated caller's subject, or "" if unset.
func Subject(r *http.Request) string {
	s, _ := r.Context().Value(contextKeySubject).(string)
	return s
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"code": "UNAUTHORIZED", "message": message},
	})
}

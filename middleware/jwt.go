package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"p9e.in/reasonsform/pkg/apperr"
)

// TokenTTL is how long an admin token stays valid.
const TokenTTL = 12 * time.Hour

var (
	jwtKey            []byte
	trustProxyHeaders bool
)

// Configure sets the signing secret and whether X-Forwarded-For/X-Real-IP
// are trusted for client addresses. Call once at startup.
func Configure(secret []byte, trustProxy bool) {
	jwtKey = secret
	trustProxyHeaders = trustProxy
}

// Claims are the custom payload in an admin JWT
type Claims struct {
	AdminID  string `json:"adminId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// unexported type prevents collisions in context
type ctxKey int

const (
	adminClaimsKey ctxKey = iota
)

// GenerateToken creates a signed HS256 JWT valid for TokenTTL.
func GenerateToken(adminID, username, role string) (string, time.Time, error) {
	if len(jwtKey) == 0 {
		return "", time.Time{}, errors.New("jwt signing key is not configured")
	}
	now := time.Now()
	expires := now.Add(TokenTTL)
	claims := Claims{
		AdminID:  adminID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtKey)
	return signed, expires, err
}

// JWTMiddleware validates the bearer token and stashes the Claims in ctx
func JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			apperr.Write(w, http.StatusUnauthorized, apperr.CodeUnauthorized, "missing Authorization header", "")
			return
		}
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			apperr.Write(w, http.StatusUnauthorized, apperr.CodeUnauthorized, "invalid auth header", "")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			return jwtKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			apperr.Write(w, http.StatusUnauthorized, apperr.CodeUnauthorized, "invalid or expired token", "")
			return
		}

		ctx := context.WithValue(r.Context(), adminClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims pulls the *Claims out of the request context (or nil)
func GetClaims(r *http.Request) *Claims {
	if c, ok := r.Context().Value(adminClaimsKey).(*Claims); ok {
		return c
	}
	return nil
}

// Actor names the admin behind r for audit entries.
func Actor(r *http.Request) string {
	if c := GetClaims(r); c != nil {
		return c.Username
	}
	return ""
}

// ClientIP returns the caller address. Proxy headers are honored only when
// configured.
func ClientIP(r *http.Request) string {
	if trustProxyHeaders {
		if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
			return strings.TrimSpace(strings.Split(ip, ",")[0])
		}
		if ip := r.Header.Get("X-Real-IP"); ip != "" {
			return strings.TrimSpace(ip)
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

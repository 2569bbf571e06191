package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles accepted on POST /api/v1/train.
const (
	RoleAdmin   = "admin"
	RoleTrainer = "trainer"
)

// DefaultTokenTTL is used by GenerateToken when ttl is not positive.
const DefaultTokenTTL = time.Hour

// ErrTokenInvalid is returned by ParseToken for any token it refuses.
var ErrTokenInvalid = errors.New("api: invalid token")

// Claims are the JWT claims carried by a bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// GenerateToken signs an HS256 token for subject with the given role.
func GenerateToken(subject, role, secret string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken checks the signature, expiry, subject and role of a token.
// Only HS256 is accepted.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrTokenInvalid)
	}
	return claims, nil
}

// requireTrainer guards a route with a bearer token. Without a configured
// secret it passes every request through.
func (s *Server) requireTrainer(next http.Handler) http.Handler {
	if s.cfg.JWTSecret == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeUnauthorized(w, "bearer token required")
			return
		}

		claims, err := ParseToken(raw, s.cfg.JWTSecret)
		if err != nil {
			s.logger.Warn("rejected train token",
				"error", err,
				"request_id", requestID(r),
			)
			writeUnauthorized(w, "invalid or expired token")
			return
		}
		if !slices.Contains([]string{RoleAdmin, RoleTrainer}, claims.Role) {
			writeError(w, http.StatusForbidden, ErrCodeForbidden, "role may not train")
			return
		}

		next.ServeHTTP(w, r)
	})
}

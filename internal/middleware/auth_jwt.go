package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Principal is the verified identity attached to a request. Identity issuance
// lives with the external provider; this middleware only verifies the bearer
// token it is handed and trusts its claims.
type Principal struct {
	UserID string
	Admin  bool
}

// Claims is the token payload: the registered subject plus an admin flag.
type Claims struct {
	Admin bool `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

type principalKey struct{}

// SignToken mints an HS256 token for the given user. Used by tests and local
// tooling; production tokens come from the identity provider.
func SignToken(secret, userID string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyToken parses and validates a bearer token.
func VerifyToken(secret, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// AuthJWT rejects requests without a valid bearer token and stores the
// verified principal in the request context.
func AuthJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid authorization", http.StatusUnauthorized)
				return
			}
			claims, err := VerifyToken(secret, parts[1])
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			p := Principal{UserID: claims.Subject, Admin: claims.Admin}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// PrincipalFromContext returns the verified principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// ContextWithPrincipal attaches a principal; handler tests use it directly.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

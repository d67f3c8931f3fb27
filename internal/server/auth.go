package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"tasklens/internal/domain"
)

type AuthConfig struct {
	JWTSecret string
	Logger    *log.Logger
}

func (c AuthConfig) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

type callerKey struct{}

func withCaller(ctx context.Context, c domain.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func callerFromContext(ctx context.Context) (domain.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(domain.Caller)
	return c, ok
}

func requireCaller(ctx context.Context) (domain.Caller, huma.StatusError) {
	if c, ok := callerFromContext(ctx); ok && c.ID != "" {
		return c, nil
	}
	return domain.Caller{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required")
}

// requireAdmin rejects non-admin callers before any computation runs.
func requireAdmin(ctx context.Context) (domain.Caller, huma.StatusError) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return caller, err
	}
	if !caller.IsAdmin() {
		return caller, newAPIError(http.StatusForbidden, "forbidden", "admin role required")
	}
	return caller, nil
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

func authenticateJWT(token, secret string) (domain.Caller, error) {
	if strings.TrimSpace(secret) == "" {
		return domain.Caller{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return domain.Caller{}, err
	}
	if !parsed.Valid {
		return domain.Caller{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return domain.Caller{}, errors.New("subject claim required")
	}
	role := claims.Role
	if role != domain.RoleAdmin {
		role = domain.RoleMember
	}
	return domain.Caller{ID: claims.Subject, Role: role}, nil
}

// MintToken issues an HS256 token for the given caller, used by the
// CLI and by tests.
func MintToken(secret string, caller domain.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: caller.Role,
	})
	return token.SignedString([]byte(secret))
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	healthPath := path.Join(basePath, "health")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for the API base path.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if req.URL.Path == healthPath {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required"))
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials"))
				return
			}
			caller, err := authenticateJWT(token, cfg.JWTSecret)
			if err != nil {
				cfg.logger().Printf("auth: rejected token: %v", err)
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials"))
				return
			}
			next.ServeHTTP(w, req.WithContext(withCaller(req.Context(), caller)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

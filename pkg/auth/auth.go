// Package auth verifies HS256 bearer tokens on the scan API.
package auth

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/idcheck/mrzscan/pkg/config"
	"github.com/idcheck/mrzscan/pkg/errors"
	"github.com/idcheck/mrzscan/pkg/httputil"
	"github.com/idcheck/mrzscan/pkg/logger"
)

// Scopes checked by the scan API
const (
	ScopeScansWrite = "scans:write"
	ScopeScansRead  = "scans:read"
	ScopeAuditRead  = "audit:read"
)

// Claims represents the JWT claims accepted by the service
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
}

// Manager signs and validates tokens
type Manager struct {
	secret []byte
	issuer string
	log    *logger.Logger
}

// NewManager creates a new token manager
func NewManager(cfg *config.AuthConfig, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		log:    log.WithComponent("auth"),
	}
}

// Enabled reports whether a secret is configured. Without one the API is open.
func (m *Manager) Enabled() bool {
	return len(m.secret) > 0
}

// GenerateToken issues an access token for subject valid for ttl
func (m *Manager) GenerateToken(subject string, ttl time.Duration, scopes ...string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Scopes: scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken validates an access token and returns the claims
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.TokenExpired()
		}
		return nil, errors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.TokenInvalid()
	}

	return claims, nil
}

// Middleware validates the bearer token and adds the subject to the request context
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.Error(w, errors.Unauthorized("missing authorization header"))
			return
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" || tokenString == "" {
			httputil.Error(w, errors.Unauthorized("invalid authorization header format"))
			return
		}

		claims, err := m.ValidateToken(tokenString)
		if err != nil {
			m.log.Debug().Err(err).Str("request_id", httputil.GetRequestID(r.Context())).Msg("token validation failed")
			httputil.Error(w, err)
			return
		}

		ctx := httputil.WithSubject(r.Context(), claims.Subject)
		ctx = httputil.WithScopes(ctx, claims.Scopes)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HasScope reports whether granted covers required. "*" grants everything
// and "resource:*" grants every action on resource.
func HasScope(granted []string, required string) bool {
	if required == "" {
		return true
	}
	for _, g := range granted {
		if g == "*" || g == required {
			return true
		}
		if prefix, ok := strings.CutSuffix(g, ":*"); ok && strings.HasPrefix(required, prefix+":") {
			return true
		}
	}
	return false
}

// RequireScope rejects authenticated requests whose token lacks scope.
// Requests without a subject pass: they only reach here when no auth
// secret is configured and Middleware is not mounted.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if httputil.GetSubject(ctx) != "" && !HasScope(httputil.GetScopes(ctx), scope) {
				httputil.Error(w, errors.Forbidden("missing scope "+scope))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Package auth guards the HTTP API with HS256-signed JSON Web Tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Config holds token verification settings. An empty JWTSecret disables
// authentication.
type Config struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// DefaultConfig returns the default auth configuration.
func DefaultConfig() Config {
	return Config{Issuer: "skillpath"}
}

// Enabled reports whether requests must carry a token.
func (c Config) Enabled() bool { return c.JWTSecret != "" }

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims are the token claims SkillPath issues and accepts.
type Claims struct {
	jwt.RegisteredClaims
}

type contextKey struct{}

// SubjectFrom returns the authenticated subject stored by Middleware.
func SubjectFrom(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(contextKey{}).(string)
	return sub, ok
}

// Authenticator verifies tokens and issues new ones.
type Authenticator struct {
	cfg    Config
	logger *zap.Logger
	parser *jwt.Parser

	// Unauthorized writes the rejection response. Defaults to a plain 401.
	Unauthorized func(w http.ResponseWriter, r *http.Request, detail string)
}

// New creates an Authenticator for cfg.
func New(cfg Config, logger *zap.Logger) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Authenticator{
		cfg:    cfg,
		logger: logger,
		parser: jwt.NewParser(opts...),
		Unauthorized: func(w http.ResponseWriter, _ *http.Request, detail string) {
			http.Error(w, detail, http.StatusUnauthorized)
		},
	}
}

// Enabled reports whether the authenticator enforces tokens.
func (a *Authenticator) Enabled() bool { return a.cfg.Enabled() }

// IssueToken signs a token for subject valid for ttl from now.
func (a *Authenticator) IssueToken(subject string, ttl time.Duration, now time.Time) (string, error) {
	if !a.cfg.Enabled() {
		return "", errors.New("auth: no signing secret configured")
	}
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates token.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(a.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// Middleware rejects requests without a valid token when authentication is
// enabled. The token is read from the Authorization header, or from the
// "token" query parameter for clients that cannot set headers (websockets).
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.Verify(tokenFrom(r))
		if err != nil {
			a.logger.Debug("request rejected",
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="skillpath"`)
			detail := "invalid or expired token"
			if errors.Is(err, ErrMissingToken) {
				detail = "bearer token required"
			}
			a.Unauthorized(w, r, detail)
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Package auth guards routes with HS256 bearer tokens.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dietprofile/modules/middleware/problem"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingSecret = errors.New("auth: secret is required unless auth is disabled")

type Config struct {
	Disabled bool          `env:"DISABLED"`
	Secret   string        `env:"SECRET"`
	Issuer   string        `env:"ISSUER"`
	Audience string        `env:"AUDIENCE"`
	Leeway   time.Duration `env:"LEEWAY" envDefault:"30s"`
}

type subjectKey struct{}

// Subject returns the token subject of an authorized request.
func Subject(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey{}).(string)
	return sub, ok
}

// Bearer rejects requests without a valid token with 401.
func Bearer(cfg Config) (func(http.Handler) http.Handler, error) {
	if cfg.Disabled {
		slog.Warn("authorization disabled")
		return func(next http.Handler) http.Handler { return next }, nil
	}
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}

	secret := []byte(cfg.Secret)
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)
	keyFn := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				problem.Write(w, problem.Unauthorized("bearer token required"))
				return
			}

			claims := &jwt.RegisteredClaims{}
			if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, keyFn); err != nil {
				slog.DebugContext(r.Context(), "rejected token", slog.Any("error", err))
				problem.Write(w, problem.Unauthorized("invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

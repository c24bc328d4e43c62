// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/noteful/noteful-auth/internal/auth"
)

type contextKey int

const bearerKey contextKey = iota

type bearer struct {
	token  string
	claims *auth.Claims
}

// TokenVerifier parses a bearer token. *auth.Issuer implements it.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// ErrorWriter renders a failed request.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RequireBearer rejects requests without a valid "Authorization: Bearer"
// token and stores the parsed claims in the request context.
func RequireBearer(verifier TokenVerifier, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := parseBearer(r.Header.Get("Authorization"))
			if !ok {
				onError(w, r, oops.Code(auth.CodeInvalidToken).
					With("reason", "missing bearer token").
					Wrap(auth.ErrInvalidToken))
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				onError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), bearerKey, bearer{token: token, claims: claims})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseBearer extracts the token from an Authorization header value. The
// scheme is case-insensitive.
func parseBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ClaimsFromContext returns the claims stored by RequireBearer.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	b, ok := ctx.Value(bearerKey).(bearer)
	return b.claims, ok
}

// BearerToken returns the raw token stored by RequireBearer, or "".
func BearerToken(ctx context.Context) string {
	b, _ := ctx.Value(bearerKey).(bearer)
	return b.token
}

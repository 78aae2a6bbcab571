// Package handlers exposes the REST surface: booking operations, catalog
// listing, and the authentication middleware in front of both.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/salonbook/salonbook/libs/auth"
)

type ctxKey int

const claimsKey ctxKey = iota

// RequireAuth verifies the bearer token and stores the identity claims on the
// request context. Missing or invalid tokens get 401 before any handler runs.
func RequireAuth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, nil, errUnauthorized)
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				writeError(w, nil, errUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

// ClaimsFrom returns the identity claims stored by RequireAuth.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

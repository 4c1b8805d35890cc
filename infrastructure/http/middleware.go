package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"veilchat/domain"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Verifier matches the relay core's credential validator; the REST
// surface reuses it so one token works on both transports.
type Verifier interface {
	Verify(credential string) (domain.Identity, error)
}

// RequireAuth authenticates requests with a bearer token and stores
// the resolved identity in the request context.
func RequireAuth(log *slog.Logger, verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				jsonError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			identity, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				jsonError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom returns the authenticated identity stored by RequireAuth.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(domain.Identity)
	return identity, ok
}

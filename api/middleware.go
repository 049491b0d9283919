package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/givemart/givemart/internal/auth"
	"github.com/givemart/givemart/sudoapi"
	"github.com/givemart/givemart/sudoapi/flags"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SetupSession verifies the bearer token, if any, and puts its claims in the
// request context. Invalid tokens are rejected outright.
func (s *API) SetupSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := s.auth.Verify(token)
		if err != nil {
			errorData(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("auth.subject", claims.Subject))
		next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
	})
}

// MustHaveScope is middleware to make sure the caller's token grants scope
func (s *API) MustHaveScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.ClaimsContext(r.Context())
			if claims == nil {
				errorData(w, "You must be authenticated to do this", http.StatusUnauthorized)
				return
			}
			if !claims.HasScope(scope) {
				errorData(w, "Your token does not allow this action", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CountQueries logs the number of SQL statements a request ran.
func CountQueries(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !flags.CountDBQueries.Value() {
			next.ServeHTTP(w, r)
			return
		}
		ctx := sudoapi.InitQueryCounter(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
		slog.DebugContext(ctx, "Request SQL queries", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Int64("queries", sudoapi.GetQueryCounter(ctx)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/picvault/picvault/internal/common"
)

type ctxKey string

const principalKey ctxKey = "principal"

// authMiddleware extracts an optional bearer token and, when it verifies,
// stores the principal's email in the request context. It never rejects a
// request itself: public endpoints stay reachable without credentials, and
// protected handlers fail closed via requirePrincipal.
func (s *HTTPServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		if strings.HasPrefix(header, common.BearerPrefix) {
			token := strings.TrimPrefix(header, common.BearerPrefix)
			if email, err := s.tokens.Verify(token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), principalKey, email))
			} else {
				s.logger.Debug(r.Context(), "bearer token rejected", "error", err)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requirePrincipal guards a handler: without a verified principal the
// request is rejected with 401 before the handler runs.
func (s *HTTPServer) requirePrincipal(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := principalFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

func principalFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(principalKey).(string)
	return email, ok && email != ""
}

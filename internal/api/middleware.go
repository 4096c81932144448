package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/internal/logging"
	"github.com/rendis/procdoc/pkg/schema"
)

// authenticated resolves the caller from the session cookie or bearer token,
// checks action against the policy and stores the principal on the context.
// An empty action only requires a valid session.
func (s *Server) authenticated(action string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r, s.deps.CookieName)
		if token == "" {
			writeError(w, schema.NewError(schema.ErrCodeUnauthorized, "authentication required"))
			return
		}
		p, err := s.deps.Tokens.Parse(token)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := logging.WithIDs(r.Context(), p.TenantID, p.UserID)

		// Roles and deletions take effect before the token expires.
		user, err := s.deps.Accounts.Me(ctx, p)
		if err != nil {
			if schema.IsNotFound(err) {
				err = schema.NewError(schema.ErrCodeUnauthorized, "session user no longer exists")
			}
			writeError(w, err)
			return
		}
		p.Role = user.Role

		if id := r.PathValue("id"); id != "" && isDocumentRoute(r) {
			ctx = logging.WithDocumentID(ctx, id)
		}
		if action != "" {
			if err := s.deps.Policy.Authorize(ctx, p, action, map[string]any{"tenant_id": p.TenantID}); err != nil {
				s.deps.Logger.WarnContext(ctx, "request denied",
					slog.String("action", action),
					slog.String("path", r.URL.Path),
				)
				writeError(w, err)
				return
			}
		}

		next(w, r.WithContext(auth.WithPrincipal(ctx, p)))
	})
}

func isDocumentRoute(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/documents/")
}

// recoverer turns handler panics into 500 responses.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.deps.Logger.ErrorContext(r.Context(), "handler panic",
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				writeError(w, schema.NewError("INTERNAL", "internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// principal returns the authenticated caller. Only valid behind authenticated.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

package httpd

import (
	"net/http"
	"strings"

	"github.com/courseportal/portal/internal/auth"
)

const (
	roleStudent = auth.RoleStudent
	roleTA      = auth.RoleTA
)

// Authenticate attaches the identity behind a Bearer token to the request
// context. Requests without a valid token pass through anonymously so that
// public routes and sign-in keep working with a stale token.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		id, err := h.services.Auth.Authenticate(r.Context(), token)
		if err != nil {
			h.logger.Debug().Err(err).Msg("Ignoring invalid bearer token")
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
	})
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.IdentityFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "Sign in to continue.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Sign in to continue.")
				return
			}
			if id.Role != role {
				writeJSON(w, http.StatusForbidden, map[string]interface{}{
					"error":   http.StatusText(http.StatusForbidden),
					"message": "You do not have access to this page.",
					"blocked": true,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// identity returns the caller set by Authenticate. Routes behind RequireAuth
// or RequireRole always have one.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}

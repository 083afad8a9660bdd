package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dom/medtrack/internal/identity"
	"github.com/dom/medtrack/internal/service"
	"github.com/rs/zerolog"
)

// Auth validates the Bearer token, resolves the actor and stores both the
// session and the actor in the request context. A token whose user no
// longer exists is rejected like a missing token.
func Auth(authService *service.AuthService, resolver *identity.Resolver, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Authorization header required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid authorization header")
				return
			}

			session, err := authService.ValidateToken(parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("token validation failed")
				writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
				return
			}

			ctx := identity.WithSession(r.Context(), session)
			actor, err := resolver.ResolveActor(ctx)
			if err != nil {
				log.Error().Err(err).Str("user_id", session.UserID.String()).Msg("failed to resolve actor")
				writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
				return
			}
			if actor == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Session no longer valid")
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithActor(ctx, actor)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}

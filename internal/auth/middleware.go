package auth

import (
	"encoding/json"
	"net/http"

	"savings-intents-go/internal/models"

	"go.uber.org/zap"
)

// Middleware rejects requests without a valid bearer token and stores the
// verified principal in the request context.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				unauthorized(w, err)
				return
			}

			principal, err := v.Verify(token)
			if err != nil {
				zap.L().Warn("Rejected bearer token",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				unauthorized(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(models.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdmin must run after Middleware
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := models.GetPrincipal(r.Context())
		if !ok || !principal.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, err error) {
	writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: code, Message: message})
}

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/medcore/hospital-ops/pkg/types"
)

type contextKey string

const claimsContextKey contextKey = "user_claims"

// Middleware validates bearer tokens and stores the actor claims in the
// request context
func Middleware(validator *TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeUnauthorized(w, "malformed authorization header")
				return
			}

			claims, err := validator.ValidateJWT(parts[1])
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts the actor claims stored by the middleware
func ClaimsFromContext(ctx context.Context) (*types.UserClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*types.UserClaims)
	return claims, ok
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
		"error": map[string]string{
			"type": string(types.ErrorTypeUnauthorized),
			"code": types.ErrCodeUnauthorized,
		},
	})
}

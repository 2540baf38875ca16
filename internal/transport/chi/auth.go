package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminAuthMiddleware guards admin routes with static Bearer tokens.
// If tokens is empty, the guard is disabled (pass-through).
func AdminAuthMiddleware(tokens []string) func(http.Handler) http.Handler {
	valid := make([][]byte, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			valid = append(valid, []byte(t))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(valid) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized,
					ErrorCodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			token := []byte(auth[len(bearerPrefix):])
			for _, v := range valid {
				if subtle.ConstantTimeCompare(token, v) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "invalid admin token")
		})
	}
}

package middleware

import (
	"crypto/subtle"
	"net/http"

	"badgeserver/internal/logger"
)

const realm = `Basic realm="Badge admin"`

// BasicAuth chroni panel administracyjny loginem i hasłem z konfiguracji.
func BasicAuth(username, password string, logger *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !credentialsMatch(user, pass, username, password) {
			if ok {
				logger.Warning("Rejected admin credentials from %s", r.RemoteAddr)
			}
			w.Header().Set("WWW-Authenticate", realm)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Porównanie w stałym czasie, oba pola sprawdzane zawsze.
func credentialsMatch(user, pass, wantUser, wantPass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(wantUser))
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(wantPass))
	return userOK&passOK == 1 && wantUser != "" && wantPass != ""
}

package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyAuth creates middleware for API key authentication. When keyHash is
// set the provided key is checked against the bcrypt hash, otherwise it is
// compared to apiKey.
func APIKeyAuth(apiKey, keyHash, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = "X-API-Key"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health endpoints
			path := r.URL.Path
			if path == "/health" || path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}

			// Only authenticate API routes
			if !strings.HasPrefix(path, "/api") {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := r.Header.Get(headerName)
			if providedKey == "" {
				// Browsers cannot set headers on a websocket handshake
				providedKey = r.URL.Query().Get("apiKey")
			}
			if providedKey == "" {
				unauthorized(w, "API key is required.")
				return
			}

			if !validKey(apiKey, keyHash, providedKey) {
				unauthorized(w, "Invalid API key.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validKey(apiKey, keyHash, provided string) bool {
	if keyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(provided)) == nil
	}
	return apiKey != "" && constantTimeEquals(apiKey, provided)
}

// HashAPIKey returns the bcrypt hash to store as apiKeyHash
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// constantTimeEquals performs a constant-time string comparison
func constantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// DefaultAPIKeyHeader is the header the API key is read from.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKeyAuth checks request API keys against a bcrypt hash, so the plain key
// never has to be stored in configuration.
type APIKeyAuth struct {
	headerName string
	hash       []byte
}

// NewAPIKeyAuth creates an authenticator. An empty hash disables the check.
func NewAPIKeyAuth(headerName, hash string) *APIKeyAuth {
	if headerName == "" {
		headerName = DefaultAPIKeyHeader
	}
	return &APIKeyAuth{
		headerName: headerName,
		hash:       []byte(hash),
	}
}

// HashAPIKey returns the bcrypt hash to configure for key.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Enabled reports whether requests are checked.
func (a *APIKeyAuth) Enabled() bool {
	return len(a.hash) > 0
}

// IsValid reports whether key matches the configured hash.
func (a *APIKeyAuth) IsValid(key string) bool {
	if key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(key)) == nil
}

// Middleware rejects requests without a valid API key. The key is read from
// the configured header or from a Bearer Authorization header.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(a.headerName)
		if key == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		switch {
		case key == "":
			writeAuthError(w, "missing_api_key", "API key is required")
		case !a.IsValid(key):
			writeAuthError(w, "invalid_api_key", "Invalid API key")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}

// internal/server/middleware.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/markb/logwatch/internal/admin"
	"github.com/markb/logwatch/internal/auth"
)

type contextKey string

const RoleContextKey contextKey = "role"

// apiKeyFromRequest reads the key from the apikey header, a bearer token or,
// for websocket clients that cannot set headers, the apikey query parameter.
func apiKeyFromRequest(r *http.Request) string {
	if key := r.Header.Get("apikey"); key != "" {
		return key
	}
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return r.URL.Query().Get("apikey")
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := apiKeyFromRequest(r)
		if key == "" {
			s.writeError(w, http.StatusUnauthorized, "invalid_api_key", "API key required")
			return
		}

		role, err := s.keys.ValidateAPIKey(key)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
			return
		}

		ctx := context.WithValue(r.Context(), RoleContextKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireWrite rejects keys that may only read.
func (s *Server) requireWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetRoleFromContext(r).CanWrite() {
			s.writeError(w, http.StatusForbidden, "forbidden", "service_role key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetRoleFromContext returns the role of the validated API key, if any.
func GetRoleFromContext(r *http.Request) auth.APIKeyType {
	role, _ := r.Context().Value(RoleContextKey).(auth.APIKeyType)
	return role
}

func (s *Server) writeError(w http.ResponseWriter, status int, errCode, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(admin.ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}

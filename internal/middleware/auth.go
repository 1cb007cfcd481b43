package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var errUnknownSession = errors.New("unknown session token")

// SessionResolver maps an opaque bearer token to an owner identifier.
// Session storage itself is an external concern; the service only consumes
// this contract.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// StaticSessionResolver resolves tokens from a fixed map. It is the
// development and test stand-in for a real session backend.
type StaticSessionResolver map[string]string

func (s StaticSessionResolver) Resolve(_ context.Context, token string) (string, error) {
	if owner, ok := s[token]; ok {
		return owner, nil
	}
	return "", errUnknownSession
}

// Auth authenticates requests with a bearer session token and stores the
// resolved owner id on the request context.
func Auth(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}
			owner, err := resolver.Resolve(r.Context(), token)
			if err != nil || owner == "" {
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), ownerIDKey, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerIDFromContext returns the authenticated owner id, or "" outside an
// authenticated request.
func OwnerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ownerIDKey).(string); ok {
		return v
	}
	return ""
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"missing or invalid session token"}`))
}

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/pubflow/pubflow/pkg/pubflow"
)

// Context keys for middleware
type contextKey string

const principalKey contextKey = "principal"

// NewTokenAuth creates the JWT verifier used by the API routes.
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// PrincipalCtx builds a pubflow.Principal from the verified token claims and
// stores it on the request context. Requests without a valid token proceed as
// the anonymous principal; handlers that need identity reject it themselves.
//
// Recognized claims: "sub" (UUID), "email", "name", "caps" (string list).
func PrincipalCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := pubflow.Anonymous()

		if token, claims, err := jwtauth.FromContext(r.Context()); err == nil && token != nil {
			if user := userFromClaims(claims); user != nil {
				principal = user
			}
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePrincipal rejects requests whose principal is anonymous.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()).Anonymous() {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PrincipalFromContext returns the request principal, anonymous when the
// middleware did not run.
func PrincipalFromContext(ctx context.Context) pubflow.Principal {
	if p, ok := ctx.Value(principalKey).(pubflow.Principal); ok {
		return p
	}
	return pubflow.Anonymous()
}

func userFromClaims(claims map[string]interface{}) *pubflow.User {
	sub, _ := claims["sub"].(string)
	uid, err := uuid.Parse(sub)
	if err != nil {
		return nil
	}

	user := &pubflow.User{UID: uid}
	if email, ok := claims["email"].(string); ok {
		user.Mail = email
	}
	if name, ok := claims["name"].(string); ok {
		user.FullName = name
	}
	if caps, ok := claims["caps"].([]interface{}); ok {
		for _, c := range caps {
			if s, ok := c.(string); ok {
				user.Caps = append(user.Caps, s)
			}
		}
	}
	return user
}

package auth

import (
	"net/http"
	"strings"
)

// CookieName is the HttpOnly cookie that carries the session token.
const CookieName = "token"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the JWT from the "token" cookie or an "Authorization: Bearer"
// header, validates it, and stores the Session in the request context. If the
// token is missing or invalid, it returns 401 Unauthorized and stops the chain.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler. The new handler "wraps" the original:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... do stuff before the handler ...
//	        next.ServeHTTP(w, r)
//	        // ... do stuff after the handler ...
//	    })
//	}
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := extractSession(r, tokens)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// OptionalAuth attaches the Session when a valid token is present but never
// blocks the request. Public catalog routes use it.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sess, err := extractSession(r, tokens); err == nil {
				r = r.WithContext(WithSession(r.Context(), sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireStaff lets through only sessions whose role may manage the catalog
// and orders. It must run after RequireAuth.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
			return
		}
		if !sess.IsStaff() {
			writeAuthError(w, http.StatusForbidden, "forbidden", "staff access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin lets through only administrators. It must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
			return
		}
		if !sess.IsAdmin() {
			writeAuthError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractSession reads the token from the cookie first, then the
// Authorization header.
func extractSession(r *http.Request, tokens *TokenService) (Session, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return tokens.Validate(cookie.Value)
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return tokens.Validate(strings.TrimSpace(token))
		}
	}
	return Session{}, ErrInvalidToken
}

// writeAuthError writes the same {"error","message"} body the handler
// package uses. auth cannot import handler, so the shape is repeated here.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `","message":"` + message + `"}`))
}

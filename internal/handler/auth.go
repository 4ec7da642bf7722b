package handler

import (
	"net/http"
	"time"

	"github.com/sakif/vinyl-storefront/internal/auth"
	"github.com/sakif/vinyl-storefront/internal/service"
)

// AuthHandler manages registration, login and the session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create a customer account
//   - HandleLogin    → check credentials, issue the JWT cookie
//   - HandleLogout   → clear the JWT cookie
//   - HandleMe       → return the currently logged-in user's profile
type AuthHandler struct {
	auth         *service.AuthService
	tokenTTL     time.Duration
	cookieSecure bool
}

// NewAuthHandler creates an AuthHandler. cookieSecure should be true
// whenever the store is served over HTTPS.
func NewAuthHandler(svc *service.AuthService, tokenTTL time.Duration, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		auth:         svc,
		tokenTTL:     tokenTTL,
		cookieSecure: cookieSecure,
	}
}

type registerRequest struct {
	Username        string `json:"username"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	// Identifier is a username or an email address.
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	User  any    `json:"user"`
	Token string `json:"token"`
}

// HandleRegister creates a customer account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"email":"ana@example.com","password":"...","confirmPassword":"..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username:        req.Username,
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin checks credentials and sets the session cookie.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"identifier":"admin","password":"1234"}
//
// The token is returned in the body as well, for clients that prefer the
// Authorization header over cookies.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// HttpOnly = JavaScript cannot read this cookie (XSS protection).
	// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{User: res.User, Token: res.Token})
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /api/auth/logout
//
// Since we're stateless (JWT), "logout" just means deleting the client-side
// cookie. The token remains technically valid until it expires, but without
// the cookie the browser can't send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/auth/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

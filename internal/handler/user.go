package handler

import (
	"net/http"

	"github.com/sakif/vinyl-storefront/internal/model"
	"github.com/sakif/vinyl-storefront/internal/service"
)

// UserHandler covers the caller's own profile and the admin account desk.
type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// HandleUpdateProfile edits the caller's own profile.
//
// HTTP: PUT /api/profile
// REQUEST BODY: {"name":"...","email":"...","phoneNumber":"...","photo":"data:image/png;base64,..."}
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p model.ProfileUpdate
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	sess := session(r)
	user, err := h.users.UpdateProfile(r.Context(), sess, sess.UserID, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// HandleChangePassword replaces the caller's password.
//
// HTTP: PUT /api/profile/password
func (h *UserHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.ChangePassword(r.Context(), session(r), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleList returns every account. Admin only.
//
// HTTP: GET /api/admin/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Username string     `json:"username"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// HandleCreate adds an account with any role. Admin only.
//
// HTTP: POST /api/admin/users
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.users.Create(r.Context(), session(r), service.CreateUserInput(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type roleRequest struct {
	Role model.Role `json:"role"`
}

// HandleSetRole changes an account's role. Admin only.
//
// HTTP: PATCH /api/admin/users/{id}/role
func (h *UserHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.users.SetRole(r.Context(), session(r), id, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// HandleResetPassword sets another account's password. Admin only.
//
// HTTP: PUT /api/admin/users/{id}/password
func (h *UserHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.ResetPassword(r.Context(), session(r), id, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete removes an account by email. Admin only; admins cannot
// delete themselves or other admins.
//
// HTTP: DELETE /api/admin/users?email=ana@example.com
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), session(r), r.URL.Query().Get("email")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

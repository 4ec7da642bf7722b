package auth

import (
	"context"

	"github.com/sakif/vinyl-storefront/internal/model"
)

// Session is the identity of the caller, passed explicitly down the call chain.
//
// It replaces any notion of a process-wide "current user": handlers read it
// from the request context and hand it to services as a plain argument, so
// two concurrent requests can never see each other's identity.
type Session struct {
	UserID   int64      `json:"userId"`
	Username string     `json:"username"`
	Email    string     `json:"email,omitempty"`
	Role     model.Role `json:"role"`
}

// NewSession builds the session for a freshly authenticated user.
func NewSession(u *model.User) Session {
	return Session{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}

// IsAdmin reports whether the session belongs to an administrator.
func (s Session) IsAdmin() bool { return s.Role == model.RoleAdmin }

// IsStaff reports whether the session may manage the catalog and orders.
func (s Session) IsStaff() bool { return s.Role.IsStaff() }

type contextKey string

const sessionKey contextKey = "session"

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the caller's session.
// It returns (Session{}, false) for anonymous requests.
//
//	sess, ok := auth.SessionFromContext(r.Context())
//	if !ok {
//	    // anonymous user
//	}
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok && s.UserID != 0
}

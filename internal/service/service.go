// Package service contains the business logic layer of the storefront.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, so tests run against
// in-memory fakes (see fakes_test.go).
//
// WHO IS CALLING?
// Every operation that depends on the caller takes an auth.Session argument.
// There is no package-level "current user": the session travels with the call.
// Permission rules (staff only, admin only, not your own account) are checked
// here, even though the router also guards the routes, so a CLI or a future
// transport gets the same rules for free.
package service

import (
	"net/mail"
	"strings"

	"github.com/sakif/vinyl-storefront/internal/apperror"
	"github.com/sakif/vinyl-storefront/internal/auth"
)

// Validation constants.
const (
	MinPasswordLength = 4
	MaxPasswordLength = 72 // bcrypt limit
	MaxUsernameLength = 64
	MaxTitleLength    = 200

	DefaultListLimit = 50
	MaxListLimit     = 200
)

func requireStaff(actor auth.Session) error {
	if actor.UserID == 0 {
		return apperror.Unauthorized("valid authentication required")
	}
	if !actor.IsStaff() {
		return apperror.Forbidden("staff access required")
	}
	return nil
}

func requireAdmin(actor auth.Session) error {
	if actor.UserID == 0 {
		return apperror.Unauthorized("valid authentication required")
	}
	if !actor.IsAdmin() {
		return apperror.Forbidden("only administrators can manage accounts")
	}
	return nil
}

// validateEmail accepts a bare address only: "ana@example.com", not
// "Ana <ana@example.com>".
func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperror.ValidationFailed("email", "email address is not valid")
	}
	return nil
}

func validatePassword(field, password string) error {
	if len(password) < MinPasswordLength {
		return apperror.ValidationFailed(field, "password must be at least 4 characters")
	}
	if len(password) > MaxPasswordLength {
		return apperror.ValidationFailed(field, "password must be 72 bytes or fewer")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

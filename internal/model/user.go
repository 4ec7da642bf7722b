// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data: plain values without inheritance.
// The storage layer hands out copies of these structs, never references into the database.
package model

import "time"

// Role is the closed set of account roles. The Users table enforces the same
// set with a CHECK constraint, so a typo here fails loudly at insert time.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleCustomer, RoleEmployee, RoleManager, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleEmployee, RoleManager:
		return true
	}
	return false
}

// IsStaff reports whether the role may manage the catalog and orders.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleEmployee || r == RoleManager
}

// User represents a registered storefront account.
//
// PASSWORD HANDLING:
// Password carries the plaintext only on the way IN (Create, UpdatePassword).
// What the database stores is PasswordHash, a bcrypt string. The JSON tag "-"
// keeps both out of every API response.
//
// Email and PhoneNumber/Photo are optional. Email is still UNIQUE when present;
// SQLite allows many NULLs under a UNIQUE constraint, so an empty Email is
// stored as NULL rather than "".
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Password     string     `json:"-"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Name         string     `json:"name"`
	Email        string     `json:"email,omitempty"`
	PhoneNumber  string     `json:"phoneNumber,omitempty"`
	Photo        string     `json:"photo,omitempty"` // data URI or asset path
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

// ProfileUpdate holds the user-editable profile fields.
type ProfileUpdate struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Photo       string `json:"photo"`
}

// Package repository declares the storage contracts the service layer depends on.
//
// Services take these interfaces, never the concrete sqlite types, so tests can
// swap in in-memory fakes.
//
// "NOT FOUND" CONVENTION:
// Readers that find zero rows return (nil, nil) for a single entity and an empty
// slice for lists. Absence is not an error at this layer; callers that need a
// 404 translate nil into apperror.NotFound themselves.
package repository

import (
	"context"

	"github.com/sakif/vinyl-storefront/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// PasswordHasher hashes and verifies passwords. auth.PasswordService
// implements it; the user repository uses it so plaintext never reaches disk.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) error
	// NeedsRehash reports whether a stored hash predates the current cost.
	NeedsRehash(hash string) bool
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) (int64, error)
	GetAll(ctx context.Context) ([]model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Authenticate(ctx context.Context, identifier, password string) (*model.User, error)
	UpdateProfile(ctx context.Context, id int64, p model.ProfileUpdate) error
	UpdatePassword(ctx context.Context, id int64, plaintext string) error
	UpdateRole(ctx context.Context, id int64, role model.Role) error
	TouchLastLogin(ctx context.Context, id int64) error
	DeleteByEmail(ctx context.Context, email string) (bool, error)
}

type VinylRepository interface {
	Create(ctx context.Context, vinyl *model.Vinyl) (int64, error)
	GetAll(ctx context.Context) ([]model.Vinyl, error)
	GetAvailable(ctx context.Context) ([]model.Vinyl, error)
	GetByID(ctx context.Context, id int64) (*model.Vinyl, error)
	Search(ctx context.Context, term string) ([]model.Vinyl, error)
	Update(ctx context.Context, vinyl *model.Vinyl) error
	UpdateStock(ctx context.Context, id int64, stock int) error
	AdjustStock(ctx context.Context, id int64, delta int) error
	SetAvailability(ctx context.Context, id int64, available bool) error
	Delete(ctx context.Context, id int64) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) (int64, error)
	GetAll(ctx context.Context, opts ListOptions) ([]model.Order, error)
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetByUser(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error
	Delete(ctx context.Context, id int64) error
}

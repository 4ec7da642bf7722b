package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/vinyl-storefront/internal/apperror"
	"github.com/sakif/vinyl-storefront/internal/auth"
	"github.com/sakif/vinyl-storefront/internal/cart"
	"github.com/sakif/vinyl-storefront/internal/model"
	"github.com/sakif/vinyl-storefront/internal/repository"
)

// UserService is account management: admins manage every account, and each
// user edits their own profile and password.
type UserService struct {
	users  repository.UserRepository
	carts  *cart.Store // optional; deleted accounts have their cart dropped
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, carts *cart.Store, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		carts:  carts,
		logger: logger,
	}
}

// CreateUserInput is an admin-created account with an explicit role.
type CreateUserInput struct {
	Username string
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// List returns every account. Admin only.
func (s *UserService) List(ctx context.Context, actor auth.Session) ([]model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Create adds an account with any role. Admin only.
func (s *UserService) Create(ctx context.Context, actor auth.Session, in CreateUserInput) (*model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if in.Username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(in.Username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if in.Email != "" {
		if err := validateEmail(in.Email); err != nil {
			return nil, err
		}
	}
	if err := validatePassword("password", in.Password); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = model.RoleCustomer
	}
	if !in.Role.Valid() {
		return nil, apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", in.Role))
	}

	user := &model.User{
		Username: in.Username,
		Password: in.Password,
		Role:     in.Role,
		Name:     strings.TrimSpace(in.Name),
		Email:    in.Email,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, errAlreadyRegistered
		}
		return nil, fmt.Errorf("creating user %s: %w", in.Username, err)
	}

	s.logger.Info("user created by admin",
		slog.Int64("userID", user.ID),
		slog.String("role", string(user.Role)),
		slog.Int64("actor", actor.UserID),
	)
	return user, nil
}

// UpdateProfile changes name, email, phone and photo. Users edit their own
// profile; admins may edit anyone's.
func (s *UserService) UpdateProfile(ctx context.Context, actor auth.Session, id int64, p model.ProfileUpdate) (*model.User, error) {
	if actor.UserID == 0 {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	if actor.UserID != id && !actor.IsAdmin() {
		return nil, apperror.Forbidden("you can only edit your own profile")
	}

	p.Name = strings.TrimSpace(p.Name)
	p.Email = normalizeEmail(p.Email)
	p.PhoneNumber = strings.TrimSpace(p.PhoneNumber)
	if p.Email != "" {
		if err := validateEmail(p.Email); err != nil {
			return nil, err
		}
	}

	if err := s.users.UpdateProfile(ctx, id, p); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ConflictMessage("that email is already in use")
		}
		return nil, fmt.Errorf("updating profile of user %d: %w", id, err)
	}
	return s.get(ctx, id)
}

// ChangePassword replaces the caller's own password after checking the
// current one.
func (s *UserService) ChangePassword(ctx context.Context, actor auth.Session, current, next string) error {
	if actor.UserID == 0 {
		return apperror.Unauthorized("valid authentication required")
	}
	if err := validatePassword("newPassword", next); err != nil {
		return err
	}

	user, err := s.users.Authenticate(ctx, actor.Username, current)
	if err != nil {
		return fmt.Errorf("verifying current password: %w", err)
	}
	if user == nil || user.ID != actor.UserID {
		return apperror.ValidationFailed("currentPassword", "current password is incorrect")
	}

	if err := s.users.UpdatePassword(ctx, actor.UserID, next); err != nil {
		return fmt.Errorf("changing password of user %d: %w", actor.UserID, err)
	}
	s.logger.Info("password changed", slog.Int64("userID", actor.UserID))
	return nil
}

// ResetPassword sets another account's password without knowing the old
// one. Admin only.
func (s *UserService) ResetPassword(ctx context.Context, actor auth.Session, id int64, password string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := validatePassword("password", password); err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, id, password); err != nil {
		return fmt.Errorf("resetting password of user %d: %w", id, err)
	}
	s.logger.Info("password reset by admin",
		slog.Int64("userID", id),
		slog.Int64("actor", actor.UserID),
	)
	return nil
}

// SetRole changes an account's role. Admin only; admins cannot change
// their own role, so the last admin cannot demote themselves by accident.
func (s *UserService) SetRole(ctx context.Context, actor auth.Session, id int64, role model.Role) (*model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", role))
	}
	if id == actor.UserID {
		return nil, apperror.Forbidden("you cannot change your own role")
	}

	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return nil, fmt.Errorf("setting role of user %d: %w", id, err)
	}
	s.logger.Info("role changed",
		slog.Int64("userID", id),
		slog.String("role", string(role)),
		slog.Int64("actor", actor.UserID),
	)
	return s.get(ctx, id)
}

// Delete removes the account with the given email. Admin only.
//
// Two rules apply: nobody deletes their own account, and admin accounts are
// never deleted. The repository enforces the second one in its query; the
// first is checked here because only this layer knows who is asking.
func (s *UserService) Delete(ctx context.Context, actor auth.Session, email string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	email = normalizeEmail(email)
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}

	target, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up user %s: %w", email, err)
	}
	if target == nil {
		return apperror.NotFound("user", email)
	}
	if target.ID == actor.UserID {
		return apperror.Forbidden("you cannot delete your own account")
	}

	deleted, err := s.users.DeleteByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return apperror.ConflictMessage("this user has orders and cannot be deleted")
		}
		return fmt.Errorf("deleting user %s: %w", email, err)
	}
	if !deleted {
		return apperror.Forbidden("admin accounts cannot be deleted")
	}

	if s.carts != nil {
		s.carts.Drop(target.ID)
	}
	s.logger.Info("user deleted",
		slog.Int64("userID", target.ID),
		slog.Int64("actor", actor.UserID),
	)
	return nil
}

func (s *UserService) get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching user %d: %w", id, err)
	}
	if user == nil {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return user, nil
}

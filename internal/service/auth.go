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
	"github.com/sakif/vinyl-storefront/internal/model"
	"github.com/sakif/vinyl-storefront/internal/repository"
)

// AuthService handles registration and login.
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// AuthResult bundles the user record and the issued JWT together so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User    *model.User
	Session auth.Session
	Token   string
}

// RegisterInput is a self-service sign-up. Username defaults to Email.
type RegisterInput struct {
	Username        string
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

var errAlreadyRegistered = apperror.ConflictMessage("this user is already registered")

// Register creates a customer account.
//
// The checks run in the order a user fixes them: missing fields, mismatched
// passwords, then "already registered". The duplicate check is repeated by the
// database's UNIQUE constraints, so two simultaneous sign-ups with the same
// email still produce exactly one account and one conflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)

	if in.Email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return nil, apperror.ValidationFailed("", "please fill in all fields")
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperror.ValidationFailed("confirmPassword", "passwords do not match")
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validatePassword("password", in.Password); err != nil {
		return nil, err
	}
	if in.Username == "" {
		in.Username = in.Email
	}
	if len(in.Username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}
	if existing != nil {
		return nil, errAlreadyRegistered
	}

	user := &model.User{
		Username: in.Username,
		Password: in.Password,
		Role:     model.RoleCustomer,
		Name:     in.Name,
		Email:    in.Email,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, errAlreadyRegistered
		}
		s.logger.Error("failed to register user",
			slog.String("email", in.Email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/auth: registering %s: %w", in.Email, err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login checks credentials and issues a session token. identifier may be
// the username or the email address.
//
// Wrong credentials are ErrUnauthorized with one message for both causes,
// so the response does not reveal which accounts exist.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	// Case is left alone: usernames match as stored, emails case-insensitively
	// in the repository.
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperror.ValidationFailed("", "please fill in all fields")
	}

	user, err := s.users.Authenticate(ctx, identifier, password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: authenticating: %w", err)
	}
	if user == nil {
		s.logger.Info("login rejected", slog.String("identifier", identifier))
		return nil, apperror.Unauthorized("invalid username or password")
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		// The login itself succeeded; a stale lastLogin is not worth failing it.
		s.logger.Warn("failed to record last login",
			slog.Int64("userID", user.ID),
			slog.String("error", err.Error()),
		)
	}

	sess := auth.NewSession(user)
	token, err := s.tokens.Generate(sess)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in",
		slog.Int64("userID", user.ID),
		slog.String("role", string(user.Role)),
	)
	return &AuthResult{User: user, Session: sess, Token: token}, nil
}

// Me returns the full record of the session's user.
func (s *AuthService) Me(ctx context.Context, sess auth.Session) (*model.User, error) {
	if sess.UserID == 0 {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", sess.UserID, err)
	}
	if user == nil {
		// account deleted while the token was still valid
		return nil, apperror.NotFound("user", strconv.FormatInt(sess.UserID, 10))
	}
	return user, nil
}

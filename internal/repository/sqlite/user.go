package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/vinyl-storefront/internal/model"
	"github.com/sakif/vinyl-storefront/internal/repository"
)

// compile-time check that *UserRepo implements repository.UserRepository
var _ repository.UserRepository = (*UserRepo)(nil)

const userColumns = `id, username, password, role, name, email, phoneNumber, photo, createdAt, lastLogin`

// UserRepo stores storefront accounts in the Users table.
type UserRepo struct {
	db *DB

	dummyOnce sync.Once
	dummyHash string
}

// Create hashes user.Password and inserts the account. It returns the new
// row id and also writes it, plus CreatedAt and PasswordHash, back into user.
//
// A duplicate username or email comes back as a unique ConstraintViolation,
// which matches apperror.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, user *model.User) (int64, error) {
	if user.Role == "" {
		user.Role = model.RoleCustomer
	}
	hash, err := r.db.passwords.Hash(user.Password)
	if err != nil {
		return 0, fmt.Errorf("sqlite: hashing password for %s: %w", user.Username, err)
	}
	now := time.Now().UTC()

	res, err := r.db.Execute(ctx,
		`INSERT INTO Users (username, password, role, name, email, phoneNumber, photo, createdAt)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		hash,
		string(user.Role),
		user.Name,
		nullable(user.Email),
		nullable(user.PhoneNumber),
		nullable(user.Photo),
		formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: inserting user %s: %w", user.Username, err)
	}

	user.ID = res.LastInsertID
	user.PasswordHash = hash
	user.Password = ""
	user.CreatedAt = now
	return user.ID, nil
}

// GetAll returns every account ordered by id.
func (r *UserRepo) GetAll(ctx context.Context) ([]model.User, error) {
	res, err := r.db.Execute(ctx, `SELECT `+userColumns+` FROM Users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	return scanUsers(res.Rows)
}

// GetByID returns (nil, nil) when no account has that id.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, "username", username)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, nil
	}
	return r.getOne(ctx, "email", email)
}

// getOne looks a user up by one column. col is always a literal from this
// file, never caller input.
func (r *UserRepo) getOne(ctx context.Context, col string, value any) (*model.User, error) {
	res, err := r.db.Execute(ctx,
		`SELECT `+userColumns+` FROM Users WHERE `+col+` = ?`,
		value,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", col, err)
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	u, err := scanUser(res.Rows[0])
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Authenticate returns the account whose username or email is identifier and
// whose password matches. Any mismatch returns (nil, nil); only storage
// failures are errors.
//
// Usernames match exactly; emails are stored lower-cased and compared that
// way. One identifier can name two accounts (bob's email is "carol", carol's
// username is "carol"), so the password is checked against each candidate,
// the username match first. Both owners can log in with their own password.
//
// TIMING:
// When no row matches, a dummy bcrypt comparison still runs, so response time
// does not reveal whether the identifier exists.
func (r *UserRepo) Authenticate(ctx context.Context, identifier, password string) (*model.User, error) {
	if identifier == "" {
		return nil, nil
	}
	res, err := r.db.Execute(ctx,
		`SELECT `+userColumns+` FROM Users
		 WHERE username = ? OR email = ?
		 ORDER BY (username = ?) DESC
		 LIMIT 2`,
		identifier, strings.ToLower(identifier), identifier,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: authenticating user: %w", err)
	}

	if len(res.Rows) == 0 {
		_ = r.db.passwords.Verify(r.dummy(), password)
		return nil, nil
	}
	for _, row := range res.Rows {
		u, err := scanUser(row)
		if err != nil {
			return nil, err
		}
		if err := r.db.passwords.Verify(u.PasswordHash, password); err != nil {
			continue
		}
		if r.db.passwords.NeedsRehash(u.PasswordHash) {
			r.rehash(ctx, &u, password)
		}
		return &u, nil
	}
	return nil, nil
}

// rehash upgrades a hash made at an older bcrypt cost. It runs right after a
// successful login, the only time the plaintext is available. A failure
// leaves the old hash in place, which still verifies.
func (r *UserRepo) rehash(ctx context.Context, u *model.User, password string) {
	if err := r.UpdatePassword(ctx, u.ID, password); err != nil {
		r.db.logger.Warn("failed to upgrade password hash",
			slog.Int64("userID", u.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	r.db.logger.Debug("password hash upgraded", slog.Int64("userID", u.ID))
}

func (r *UserRepo) dummy() string {
	r.dummyOnce.Do(func() {
		r.dummyHash, _ = r.db.passwords.Hash("not-a-real-password")
	})
	return r.dummyHash
}

// UpdateProfile overwrites the editable profile fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, id int64, p model.ProfileUpdate) error {
	res, err := r.db.Execute(ctx,
		`UPDATE Users SET name = ?, email = ?, phoneNumber = ?, photo = ? WHERE id = ?`,
		p.Name, nullable(p.Email), nullable(p.PhoneNumber), nullable(p.Photo), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile of user %d: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

// UpdatePassword hashes plaintext and stores it.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, plaintext string) error {
	hash, err := r.db.passwords.Hash(plaintext)
	if err != nil {
		return fmt.Errorf("sqlite: hashing password for user %d: %w", id, err)
	}
	res, err := r.db.Execute(ctx, `UPDATE Users SET password = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating password of user %d: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

// UpdateRole changes the account's role. An unknown role is rejected by the
// table's CHECK constraint.
func (r *UserRepo) UpdateRole(ctx context.Context, id int64, role model.Role) error {
	res, err := r.db.Execute(ctx, `UPDATE Users SET role = ? WHERE id = ?`, string(role), id)
	if err != nil {
		return fmt.Errorf("sqlite: updating role of user %d: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := r.db.Execute(ctx,
		`UPDATE Users SET lastLogin = ? WHERE id = ?`,
		formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording login of user %d: %w", id, err)
	}
	return nil
}

// DeleteByEmail removes a non-admin account. It reports false when nothing
// was deleted: no account has that email, or the account is an admin.
//
// The admin guard lives in the WHERE clause, so no caller can skip it.
func (r *UserRepo) DeleteByEmail(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	res, err := r.db.Execute(ctx,
		`DELETE FROM Users WHERE email = ? AND role != ?`,
		email, string(model.RoleAdmin),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting user %s: %w", email, err)
	}
	return res.RowsAffected > 0, nil
}

func scanUser(row Row) (model.User, error) {
	r := rowReader{row: row}
	u := model.User{
		ID:           r.int64("id"),
		Username:     r.string("username"),
		PasswordHash: r.string("password"),
		Role:         model.Role(r.string("role")),
		Name:         r.string("name"),
		Email:        r.string("email"),
		PhoneNumber:  r.string("phoneNumber"),
		Photo:        r.string("photo"),
		CreatedAt:    r.time("createdAt"),
		LastLogin:    r.timePtr("lastLogin"),
	}
	if r.err != nil {
		return model.User{}, r.err
	}
	return u, nil
}

func scanUsers(rows []Row) ([]model.User, error) {
	users := make([]model.User, 0, len(rows))
	for _, row := range rows {
		u, err := scanUser(row)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

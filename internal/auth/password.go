// Password hashing for storefront accounts.
//
// Users.password only ever holds bcrypt output. Plaintext exists in memory
// between the request body and Hash/Verify, never on disk, and logins are
// checked with bcrypt.CompareHashAndPassword, never with ==.
//
// bcrypt embeds its salt and cost in the hash:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 → 2^12 rounds)
//	 version
//
// Because the cost travels with each hash, raising auth.bcrypt_cost does
// not invalidate existing accounts. NeedsRehash lets the user repository
// upgrade a hash the next time its owner logs in.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is used when the configured cost is out of range.
// Roughly 250ms per hash on current server hardware.
const defaultCost = 12

// maxPasswordBytes is where bcrypt starts ignoring input.
const maxPasswordBytes = 72

// ErrInvalidPassword is returned by Verify when the password does not match.
var ErrInvalidPassword = errors.New("auth: invalid password")

// ErrPasswordTooLong is returned by Hash for inputs bcrypt would truncate.
var ErrPasswordTooLong = fmt.Errorf("auth: password must be %d bytes or fewer", maxPasswordBytes)

// PasswordService hashes and verifies account passwords at a fixed cost.
// The storage layer receives one through repository.PasswordHasher.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the given cost.
// A cost outside bcrypt's accepted range falls back to the default (12).
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = defaultCost
	}
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest skips the range check, so tests in other
// packages can hash at bcrypt.MinCost (4). Never use it in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Cost reports the work factor new hashes are created with.
func (p *PasswordService) Cost() int {
	return p.cost
}

// Hash returns the bcrypt hash of plaintext, ready to store as-is.
// Passwords longer than 72 bytes are rejected instead of silently truncated.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks plaintext against a stored hash in constant time.
//
// A mismatch is ErrInvalidPassword. Anything else (a corrupt or truncated
// hash in the Users table) is a different error, so callers can tell a
// wrong password from a broken row.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidPassword
	}
	return fmt.Errorf("auth: comparing password hash: %w", err)
}

// NeedsRehash reports whether hash was made with a different cost than
// this service uses. An unreadable hash also needs rehashing.
func (p *PasswordService) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != p.cost
}

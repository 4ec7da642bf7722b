// Package auth provides password hashing, session tokens and the HTTP
// middleware that turns a token into a Session.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. Client POSTs credentials to /api/auth/login
// 2. The user repository verifies them against the stored bcrypt hash
// 3. Server issues a signed JWT carrying the Session, sets it in an HttpOnly
//    cookie and also returns it in the body for non-browser clients
// 4. On subsequent API calls, middleware reads the cookie (or a Bearer header),
//    validates the JWT and stores the Session in the request context
//
// WHY JWT?
// JWT (JSON Web Token) is stateless: the server doesn't need to store session
// data. All the information needed (user id, role, expiry) is inside the signed
// token. The signature ensures nobody can tamper with it without the secret key.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims (data) → {"sub":"42","role":"admin","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/sakif/vinyl-storefront/internal/model"
)

const (
	issuer = "vinyl-storefront"

	// DefaultTokenTTL is how long a login stays valid.
	DefaultTokenTTL = 24 * time.Hour
)

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens.
// The same secret must be used for both operations: keep it safe, rotate it
// periodically in production.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and lifetime.
// The secret should be at least 32 bytes of random data in production.
// Example: STOREFRONT_AUTH_JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the lifetime of newly issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// claims is the JWT payload. "sub" holds the user id; the remaining Session
// fields ride along so middleware needs no database lookup.
type claims struct {
	jwt.RegisteredClaims
	Username string     `json:"username"`
	Email    string     `json:"email,omitempty"`
	Role     model.Role `json:"role"`
}

// Generate signs a token for sess that expires after the service's TTL.
func (s *TokenService) Generate(sess Session) (string, error) {
	return s.GenerateWithDuration(sess, s.ttl)
}

// GenerateWithDuration signs a token with a custom expiry.
// Used in tests to mint already-expired tokens.
//
// Signing algorithm: HS256 (HMAC-SHA256)
// - Symmetric: same key for signing and verifying
// - Fast and simple: good for single-server deployments
func (s *TokenService) GenerateWithDuration(sess Session, d time.Duration) (string, error) {
	if sess.UserID == 0 {
		return "", errors.New("auth: session has no user id")
	}
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			Subject:   strconv.FormatInt(sess.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
		Username: sess.Username,
		Email:    sess.Email,
		Role:     sess.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT string and returns the Session it carries.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is in the future)
//   - Issuer matches (prevents tokens from other apps)
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
//
// Every failure wraps ErrInvalidToken.
func (s *TokenService) Validate(tokenStr string) (Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Session{}, fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Session{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, c.Subject)
	}
	if !c.Role.Valid() {
		return Session{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}

	return Session{
		UserID:   userID,
		Username: c.Username,
		Email:    c.Email,
		Role:     c.Role,
	}, nil
}

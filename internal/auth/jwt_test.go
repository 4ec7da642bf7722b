package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/vinyl-storefront/internal/model"
)

// newTestTokenService creates a TokenService for testing.
// It uses a fixed, known secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

var testSession = Session{UserID: 42, Username: "ana", Email: "ana@example.com", Role: model.RoleCustomer}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short", time.Hour)
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	ts, err := NewTokenService("this-is-16-chars", 0)
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
	if ts.TTL() != DefaultTokenTTL {
		t.Errorf("TTL() = %v, want %v", ts.TTL(), DefaultTokenTTL)
	}
}

// =========================================================================
// GENERATE TESTS
// =========================================================================

func TestGenerate_ReturnsJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate(testSession)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// header.payload.signature
	if n := strings.Count(token, "."); n != 2 {
		t.Errorf("Generate() token doesn't look like a JWT (expected 2 dots, got %d)", n)
	}
}

func TestGenerate_EveryTokenIsUnique(t *testing.T) {
	ts := newTestTokenService(t)

	// Same session, same second: the jti still differs.
	token1, _ := ts.Generate(testSession)
	token2, _ := ts.Generate(testSession)

	if token1 == token2 {
		t.Error("Generate() returned identical tokens for two logins")
	}
}

func TestGenerate_RequiresUserID(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Generate(Session{Username: "nobody", Role: model.RoleCustomer}); err == nil {
		t.Fatal("Generate() should reject a session without a user id")
	}
}

// =========================================================================
// VALIDATE TESTS
// =========================================================================

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	for _, role := range model.Roles {
		t.Run(string(role), func(t *testing.T) {
			in := testSession
			in.Role = role

			token, err := ts.Generate(in)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			got, err := ts.Validate(token)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if got != in {
				t.Errorf("Validate() = %+v, want %+v", got, in)
			}
		})
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration(testSession, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	_, err = ts.Validate(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Validate() error = %v, want ErrInvalidToken", err)
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("Validate() error = %v, want it to mention expiry", err)
	}
}

func TestValidate_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Generate(testSession)

	// Flip the tail of the signature to simulate an attacker modifying the payload
	tampered := token[:len(token)-3] + "xxx"

	if _, err := ts.Validate(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Validate() error = %v, want ErrInvalidToken", err)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	ts1, _ := NewTokenService("correct-secret-32-chars-long!!!!", time.Hour)
	ts2, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", time.Hour)

	token, _ := ts1.Generate(testSession)

	if _, err := ts2.Validate(token); err == nil {
		t.Fatal("Validate() should fail when using a different secret")
	}
}

func TestValidate_Garbage(t *testing.T) {
	ts := newTestTokenService(t)

	for _, in := range []string{"", "not.a.jwt.token", "a.b.c"} {
		if _, err := ts.Validate(in); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate(%q) error = %v, want ErrInvalidToken", in, err)
		}
	}
}

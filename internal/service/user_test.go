package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/vinyl-storefront/internal/apperror"
	"github.com/sakif/vinyl-storefront/internal/cart"
	"github.com/sakif/vinyl-storefront/internal/model"
)

func newTestUserService(t *testing.T) (*UserService, *fakeUserRepo, *cart.Store) {
	t.Helper()
	repo := newFakeUserRepo()
	carts := cart.NewStore()
	return NewUserService(repo, carts, testLogger()), repo, carts
}

// =========================================================================
// PERMISSION TESTS
// =========================================================================

func TestUserService_AdminOnly(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	employee := seedUser(t, repo, "staff", "staff@vinyls.local", "1234", model.RoleEmployee)
	actor := sessionFor(employee)
	ctx := context.Background()

	if _, err := svc.List(ctx, actor); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("List() error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Create(ctx, actor, CreateUserInput{Username: "x", Password: "1234"}); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Create() error = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(ctx, actor, "someone@vinyls.local"); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Delete() error = %v, want ErrForbidden", err)
	}
	if _, err := svc.SetRole(ctx, actor, 99, model.RoleAdmin); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("SetRole() error = %v, want ErrForbidden", err)
	}
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestUserService_Create(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	admin := sessionFor(seedUser(t, repo, "admin", "admin@vinyls.local", "1234", model.RoleAdmin))

	u, err := svc.Create(context.Background(), admin, CreateUserInput{
		Username: "vendedor",
		Email:    "Vendedor@Vinyls.local",
		Password: "1234",
		Role:     model.RoleEmployee,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if u.Role != model.RoleEmployee {
		t.Errorf("Role = %q, want employee", u.Role)
	}
	if u.Email != "vendedor@vinyls.local" {
		t.Errorf("Email = %q, want normalized", u.Email)
	}
}

func TestUserService_Create_BadRole(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	admin := sessionFor(seedUser(t, repo, "admin", "admin@vinyls.local", "1234", model.RoleAdmin))

	_, err := svc.Create(context.Background(), admin, CreateUserInput{
		Username: "x",
		Password: "1234",
		Role:     "superuser",
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// PROFILE AND PASSWORD TESTS
// =========================================================================

func TestUserService_UpdateProfile(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	ana := seedUser(t, repo, "ana", "ana@example.com", "1234", model.RoleCustomer)
	bob := seedUser(t, repo, "bob", "bob@example.com", "1234", model.RoleCustomer)
	ctx := context.Background()

	got, err := svc.UpdateProfile(ctx, sessionFor(ana), ana.ID, model.ProfileUpdate{
		Name:        " Ana María ",
		Email:       "ana@example.com",
		PhoneNumber: "+56 9 1234 5678",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if got.Name != "Ana María" {
		t.Errorf("Name = %q, want trimmed", got.Name)
	}

	if _, err := svc.UpdateProfile(ctx, sessionFor(bob), ana.ID, model.ProfileUpdate{Name: "hack"}); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("editing someone else's profile: error = %v, want ErrForbidden", err)
	}

	_, err = svc.UpdateProfile(ctx, sessionFor(bob), bob.ID, model.ProfileUpdate{Email: "ana@example.com"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("taking ana's email: error = %v, want ErrConflict", err)
	}
}

func TestUserService_ChangePassword(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	ana := seedUser(t, repo, "ana", "ana@example.com", "1234", model.RoleCustomer)
	sess := sessionFor(ana)
	ctx := context.Background()

	if err := svc.ChangePassword(ctx, sess, "wrong", "newpass"); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("wrong current password: error = %v, want ErrValidation", err)
	}
	if err := svc.ChangePassword(ctx, sess, "1234", "newpass"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if u, _ := repo.Authenticate(ctx, "ana", "newpass"); u == nil {
		t.Error("new password does not authenticate")
	}
}

func TestUserService_ResetPassword(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	admin := sessionFor(seedUser(t, repo, "admin", "admin@vinyls.local", "1234", model.RoleAdmin))
	ana := seedUser(t, repo, "ana", "ana@example.com", "1234", model.RoleCustomer)

	if err := svc.ResetPassword(context.Background(), admin, ana.ID, "reset-me"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if u, _ := repo.Authenticate(context.Background(), "ana", "reset-me"); u == nil {
		t.Error("reset password does not authenticate")
	}
}

// =========================================================================
// ROLE TESTS
// =========================================================================

func TestUserService_SetRole(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	adminUser := seedUser(t, repo, "admin", "admin@vinyls.local", "1234", model.RoleAdmin)
	admin := sessionFor(adminUser)
	ana := seedUser(t, repo, "ana", "ana@example.com", "1234", model.RoleCustomer)
	ctx := context.Background()

	got, err := svc.SetRole(ctx, admin, ana.ID, model.RoleManager)
	if err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}
	if got.Role != model.RoleManager {
		t.Errorf("Role = %q, want manager", got.Role)
	}

	if _, err := svc.SetRole(ctx, admin, adminUser.ID, model.RoleCustomer); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("changing own role: error = %v, want ErrForbidden", err)
	}
	if _, err := svc.SetRole(ctx, admin, ana.ID, "root"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("unknown role: error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestUserService_Delete(t *testing.T) {
	svc, repo, carts := newTestUserService(t)
	admin := sessionFor(seedUser(t, repo, "admin", "admin@vinyls.local", "1234", model.RoleAdmin))
	ana := seedUser(t, repo, "ana", "ana@example.com", "1234", model.RoleCustomer)
	carts.For(ana.ID).Add(model.Vinyl{ID: 1, Titulo: "Hit me hard & soft"})

	if err := svc.Delete(context.Background(), admin, "ANA@example.com"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if u, _ := repo.GetByID(context.Background(), ana.ID); u != nil {
		t.Error("user still exists after Delete()")
	}
	if n := carts.For(ana.ID).Count(); n != 0 {
		t.Errorf("deleted user's cart has %d items, want 0", n)
	}
}

func TestUserService_Delete_Refusals(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	adminUser := seedUser(t, repo, "admin", "admin@vinyls.local", "1234", model.RoleAdmin)
	admin := sessionFor(adminUser)
	seedUser(t, repo, "other-admin", "root@vinyls.local", "1234", model.RoleAdmin)
	ctx := context.Background()

	tests := []struct {
		name  string
		email string
		want  error
	}{
		{"self", "admin@vinyls.local", apperror.ErrForbidden},
		{"another admin", "root@vinyls.local", apperror.ErrForbidden},
		{"unknown", "nobody@vinyls.local", apperror.ErrNotFound},
		{"empty", "  ", apperror.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Delete(ctx, admin, tt.email)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := svc.Delete(ctx, admin, "admin@vinyls.local"); err.Error() != "you cannot delete your own account" {
		t.Errorf("self-delete message = %q", err.Error())
	}
}

func TestUserService_Delete_HasOrders(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	admin := sessionFor(seedUser(t, repo, "admin", "admin@vinyls.local", "1234", model.RoleAdmin))
	seedUser(t, repo, "ana", "ana@example.com", "1234", model.RoleCustomer)
	repo.deleteErr = apperror.Conflict("user", "ana@example.com")

	err := svc.Delete(context.Background(), admin, "ana@example.com")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

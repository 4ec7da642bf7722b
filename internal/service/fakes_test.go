package service

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/vinyl-storefront/internal/apperror"
	"github.com/sakif/vinyl-storefront/internal/auth"
	"github.com/sakif/vinyl-storefront/internal/model"
	"github.com/sakif/vinyl-storefront/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// In-memory implementations of the repository interfaces. They follow the
// same conventions as the sqlite package: missing rows are (nil, nil),
// writes to a missing id are ErrNotFound, duplicates are ErrConflict.
// Passwords are "hashed" by prefixing them, which is enough to check that
// the plaintext never gets stored.

const fakeHashPrefix = "hashed:"

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	nextID int64
	// set to simulate failures
	createErr error
	deleteErr error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	for _, existing := range f.users {
		if existing.Username == u.Username || (u.Email != "" && existing.Email == u.Email) {
			return 0, apperror.Conflict("user", u.Username)
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.PasswordHash = fakeHashPrefix + u.Password
	u.Password = ""
	u.CreatedAt = time.Now().UTC()
	stored := *u
	f.users[u.ID] = &stored
	return u.ID, nil
}

func (f *fakeUserRepo) GetAll(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Username == username }), nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, nil
	}
	return f.find(func(u *model.User) bool { return u.Email == email }), nil
}

func (f *fakeUserRepo) Authenticate(_ context.Context, identifier, password string) (*model.User, error) {
	// same matching rules as the sqlite repository: exact username first,
	// then lower-cased email, each checked against the password
	email := strings.ToLower(identifier)
	for _, u := range []*model.User{
		f.find(func(u *model.User) bool { return u.Username == identifier }),
		f.find(func(u *model.User) bool { return u.Email != "" && u.Email == email }),
	} {
		if u != nil && u.PasswordHash == fakeHashPrefix+password {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, id int64, p model.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	for _, other := range f.users {
		if other.ID != id && p.Email != "" && other.Email == p.Email {
			return apperror.Conflict("user", p.Email)
		}
	}
	u.Name, u.Email, u.PhoneNumber, u.Photo = p.Name, p.Email, p.PhoneNumber, p.Photo
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id int64, plaintext string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	u.PasswordHash = fakeHashPrefix + plaintext
	return nil
}

func (f *fakeUserRepo) UpdateRole(_ context.Context, id int64, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	u.Role = role
	return nil
}

func (f *fakeUserRepo) TouchLastLogin(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	now := time.Now().UTC()
	u.LastLogin = &now
	return nil
}

func (f *fakeUserRepo) DeleteByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	for id, u := range f.users {
		if u.Email == email && u.Role != model.RoleAdmin {
			delete(f.users, id)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) find(match func(*model.User) bool) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			copied := *u
			return &copied
		}
	}
	return nil
}

type fakeVinylRepo struct {
	mu     sync.Mutex
	vinyls map[int64]*model.Vinyl
	nextID int64
	// adjustErr, when set, fails AdjustStock for that vinyl id
	adjustErr map[int64]error
}

var _ repository.VinylRepository = (*fakeVinylRepo)(nil)

func newFakeVinylRepo() *fakeVinylRepo {
	return &fakeVinylRepo{
		vinyls:    make(map[int64]*model.Vinyl),
		adjustErr: make(map[int64]error),
	}
}

func (f *fakeVinylRepo) Create(_ context.Context, v *model.Vinyl) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.vinyls {
		if existing.Titulo == v.Titulo && existing.Artista == v.Artista {
			return 0, apperror.Conflict("vinyl", v.Titulo)
		}
	}
	f.nextID++
	v.ID = f.nextID
	stored := *v
	f.vinyls[v.ID] = &stored
	return v.ID, nil
}

func (f *fakeVinylRepo) GetAll(_ context.Context) ([]model.Vinyl, error) {
	return f.list(func(*model.Vinyl) bool { return true }), nil
}

func (f *fakeVinylRepo) GetAvailable(_ context.Context) ([]model.Vinyl, error) {
	return f.list(func(v *model.Vinyl) bool { return v.IsAvailable && v.Stock > 0 }), nil
}

func (f *fakeVinylRepo) GetByID(_ context.Context, id int64) (*model.Vinyl, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vinyls[id]
	if !ok {
		return nil, nil
	}
	copied := *v
	return &copied, nil
}

func (f *fakeVinylRepo) Search(_ context.Context, term string) ([]model.Vinyl, error) {
	return f.list(func(v *model.Vinyl) bool {
		return term == "" || containsFold(v.Titulo, term) || containsFold(v.Artista, term)
	}), nil
}

func (f *fakeVinylRepo) Update(_ context.Context, v *model.Vinyl) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.vinyls[v.ID]; !ok {
		return apperror.NotFound("vinyl", strconv.FormatInt(v.ID, 10))
	}
	stored := *v
	f.vinyls[v.ID] = &stored
	return nil
}

func (f *fakeVinylRepo) UpdateStock(_ context.Context, id int64, stock int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vinyls[id]
	if !ok {
		return apperror.NotFound("vinyl", strconv.FormatInt(id, 10))
	}
	v.Stock = stock
	return nil
}

func (f *fakeVinylRepo) AdjustStock(_ context.Context, id int64, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.adjustErr[id]; err != nil {
		return err
	}
	v, ok := f.vinyls[id]
	if !ok {
		return apperror.NotFound("vinyl", strconv.FormatInt(id, 10))
	}
	if v.Stock+delta < 0 {
		return apperror.ConflictMessage("insufficient stock for " + strconv.Quote(v.Titulo))
	}
	v.Stock += delta
	return nil
}

func (f *fakeVinylRepo) SetAvailability(_ context.Context, id int64, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vinyls[id]
	if !ok {
		return apperror.NotFound("vinyl", strconv.FormatInt(id, 10))
	}
	v.IsAvailable = available
	return nil
}

func (f *fakeVinylRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.vinyls[id]; !ok {
		return apperror.NotFound("vinyl", strconv.FormatInt(id, 10))
	}
	delete(f.vinyls, id)
	return nil
}

func (f *fakeVinylRepo) list(match func(*model.Vinyl) bool) []model.Vinyl {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Vinyl, 0, len(f.vinyls))
	for _, v := range f.vinyls {
		if match(v) {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeVinylRepo) stock(t *testing.T, id int64) int {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vinyls[id]
	if !ok {
		t.Fatalf("vinyl %d not in fake repo", id)
	}
	return v.Stock
}

type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[int64]*model.Order
	nextID    int64
	createErr error
}

var _ repository.OrderRepository = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int64]*model.Order)}
}

func (f *fakeOrderRepo) Create(_ context.Context, o *model.Order) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	o.ID = f.nextID
	o.Reference = "ref-" + strconv.FormatInt(o.ID, 10)
	if o.Status == "" {
		o.Status = model.OrderPending
	}
	now := time.Now().UTC().Add(time.Duration(o.ID) * time.Millisecond)
	o.CreatedAt, o.UpdatedAt = now, now
	stored := *o
	f.orders[o.ID] = &stored
	return o.ID, nil
}

func (f *fakeOrderRepo) GetAll(_ context.Context, opts repository.ListOptions) ([]model.Order, error) {
	all := f.list(func(*model.Order) bool { return true })
	if opts.Offset >= len(all) {
		return []model.Order{}, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, id int64) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOrderRepo) GetByUser(_ context.Context, userID int64) ([]model.Order, error) {
	return f.list(func(o *model.Order) bool { return o.UserID == userID }), nil
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, id int64, status model.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return apperror.NotFound("order", strconv.FormatInt(id, 10))
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeOrderRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return apperror.NotFound("order", strconv.FormatInt(id, 10))
	}
	delete(f.orders, id)
	return nil
}

// list returns matching orders newest first, like the sqlite repository.
func (f *fakeOrderRepo) list(match func(*model.Order) bool) []model.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Order, 0, len(f.orders))
	for _, o := range f.orders {
		if match(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// =========================================================================
// SHARED HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sessionFor(u *model.User) auth.Session {
	return auth.NewSession(u)
}

// seedUser stores a user directly in the fake, bypassing service validation.
func seedUser(t *testing.T, repo *fakeUserRepo, username, email, password string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		Username: username,
		Email:    email,
		Password: password,
		Role:     role,
		Name:     username,
	}
	if _, err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("setup: creating user %s: %v", username, err)
	}
	return u
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vinyl-storefront/internal/apperror"
	"github.com/sakif/vinyl-storefront/internal/auth"
	"github.com/sakif/vinyl-storefront/internal/repository"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" gives every test its own fresh database that disappears when the
// connection closes. The pool holds exactly one connection, so the in-memory
// database lives as long as the *DB does.

// newUninitializedDB returns a DB that has not been opened yet.
func newUninitializedDB(t *testing.T, mutate ...func(*Config)) *DB {
	t.Helper()
	cfg := Config{
		Path:         memoryPath,
		ReadyTimeout: 2 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	db := New(cfg, auth.NewPasswordServiceForTest(4), nil)
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestDB returns an initialized, seeded in-memory DB.
func newTestDB(t *testing.T, mutate ...func(*Config)) *DB {
	t.Helper()
	db := newUninitializedDB(t, mutate...)
	require.NoError(t, db.Initialize(context.Background()))
	return db
}

// =========================================================================
// READINESS GATE TESTS
// =========================================================================

func TestExecute_BeforeInitialize_TimesOutNotReady(t *testing.T) {
	db := newUninitializedDB(t, func(c *Config) { c.ReadyTimeout = 30 * time.Millisecond })

	start := time.Now()
	_, err := db.Execute(context.Background(), "SELECT 1")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDatabaseNotReady)
	assert.ErrorIs(t, err, apperror.ErrNotReady)
	var qe *QueryError
	assert.ErrorAs(t, err, &qe)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRepositories_BeforeInitialize_FailNotReady(t *testing.T) {
	db := newUninitializedDB(t, func(c *Config) { c.ReadyTimeout = 10 * time.Millisecond })
	ctx := context.Background()

	_, err := db.Users().GetAll(ctx)
	assert.ErrorIs(t, err, apperror.ErrNotReady)

	_, err = db.Vinyls().GetByID(ctx, 1)
	assert.ErrorIs(t, err, apperror.ErrNotReady)

	_, err = db.Orders().GetByUser(ctx, 1)
	assert.ErrorIs(t, err, apperror.ErrNotReady)
}

func TestExecute_WaitsForLateInitialize(t *testing.T) {
	db := newUninitializedDB(t)

	done := make(chan error, 1)
	go func() {
		_, err := db.Execute(context.Background(), "SELECT COUNT(*) AS n FROM Vinyls")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, db.Initialize(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not resume after initialization")
	}
}

func TestWaitUntilReady(t *testing.T) {
	t.Run("times out", func(t *testing.T) {
		db := newUninitializedDB(t)
		err := db.WaitUntilReady(context.Background(), 10*time.Millisecond)
		assert.ErrorIs(t, err, ErrDatabaseNotReady)
	})

	t.Run("context canceled", func(t *testing.T) {
		db := newUninitializedDB(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := db.WaitUntilReady(ctx, time.Second)
		assert.ErrorIs(t, err, ErrDatabaseNotReady)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("already ready", func(t *testing.T) {
		db := newTestDB(t)
		assert.NoError(t, db.WaitUntilReady(context.Background(), 0))
	})
}

func TestInitialize_ConcurrentCallersShareOneAttempt(t *testing.T) {
	db := newUninitializedDB(t)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = db.Initialize(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, db.Ready())

	counts, err := db.TableCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[tableUsers])
	assert.Equal(t, int64(1), counts[tableVinyls])
}

func TestInitialize_AgainIsNoop(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Initialize(context.Background()))
	assert.True(t, db.Ready())
}

func TestAutoInitialize_FirstCallOpensDatabase(t *testing.T) {
	db := newUninitializedDB(t, func(c *Config) { c.AutoInitialize = true })

	vinyls, err := db.Vinyls().GetAll(context.Background())

	require.NoError(t, err)
	assert.Len(t, vinyls, 1)
	assert.True(t, db.Ready())
}

func TestSubscribe(t *testing.T) {
	db := newUninitializedDB(t)

	states, cancel := db.Subscribe()
	defer cancel()
	assert.False(t, <-states, "first value replays the current state")

	require.NoError(t, db.Initialize(context.Background()))
	select {
	case ready := <-states:
		assert.True(t, ready)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not see the ready transition")
	}

	late, cancelLate := db.Subscribe()
	assert.True(t, <-late, "late subscriber gets the current state immediately")
	cancelLate()
	_, open := <-late
	assert.False(t, open, "cancel closes the channel")
	cancelLate() // second cancel is harmless
}

func TestClose_MarksNotReady(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Close())
	assert.False(t, db.Ready())
}

// =========================================================================
// INITIALIZATION FAILURE TESTS
// =========================================================================

func TestInitialize_FailureReportsStageAndAllowsRetry(t *testing.T) {
	// A regular file where the database directory should be makes MkdirAll fail.
	base := t.TempDir()
	blocker := filepath.Join(base, "data")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	var hookErrs []error
	db := New(Config{
		Dir:          blocker,
		ReadyTimeout: 20 * time.Millisecond,
		OnInitError:  func(err error) { hookErrs = append(hookErrs, err) },
	}, auth.NewPasswordServiceForTest(4), nil)
	t.Cleanup(func() { db.Close() })

	err := db.Initialize(context.Background())
	require.Error(t, err)

	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "open", initErr.Stage)
	assert.ErrorIs(t, err, apperror.ErrNotInitialized)
	assert.Len(t, hookErrs, 1)
	assert.False(t, db.Ready())

	// Data access stays blocked.
	_, err = db.Users().GetAll(context.Background())
	assert.ErrorIs(t, err, ErrDatabaseNotReady)

	// Clear the obstacle; an explicit retry starts from scratch.
	require.NoError(t, os.Remove(blocker))
	require.NoError(t, db.Initialize(context.Background()))
	assert.True(t, db.Ready())
	assert.Len(t, hookErrs, 1)
}

// =========================================================================
// PERSISTENCE TESTS
// =========================================================================

func TestReopen_KeepsDataAndDoesNotReseed(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	passwords := auth.NewPasswordServiceForTest(4)

	first := New(Config{Dir: dir}, passwords, nil)
	require.NoError(t, first.Initialize(ctx))
	assert.Equal(t, filepath.Join(dir, DefaultName+".db"), first.cfg.DSN())

	id, err := first.Users().Create(ctx, newUser("ana"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := New(Config{Dir: dir}, passwords, nil)
	t.Cleanup(func() { second.Close() })
	require.NoError(t, second.Initialize(ctx))

	got, err := second.Users().GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ana", got.Username)

	counts, err := second.TableCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[tableUsers], "two seeded accounts plus ana")
	assert.Equal(t, int64(1), counts[tableVinyls])
}

func TestReset_DropsDataAndReseeds(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Users().Create(ctx, newUser("ana"))
	require.NoError(t, err)

	require.NoError(t, db.Reset(ctx))
	assert.True(t, db.Ready())

	ana, err := db.Users().GetByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Nil(t, ana)

	admin, err := db.Users().GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.NotNil(t, admin)
}

func TestEnsureSchema_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Users().Create(ctx, newUser("ana"))
	require.NoError(t, err)

	require.NoError(t, db.ensureSchema(ctx))
	require.NoError(t, db.ensureSchema(ctx))

	got, err := db.Users().GetByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.NotNil(t, got, "schema creation never drops existing rows")
}

func TestAddColumnIfNotExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.addColumnIfNotExists(ctx, tableVinyls, "sku", "TEXT"))
	require.NoError(t, db.addColumnIfNotExists(ctx, tableVinyls, "sku", "TEXT"))

	_, err := db.Execute(ctx, `UPDATE Vinyls SET sku = 'X1'`)
	assert.NoError(t, err)
}

func TestConfigDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"path wins", Config{Dir: "data", Path: memoryPath}, memoryPath},
		{"default name", Config{Dir: "data"}, filepath.Join("data", "vinyls_db.db")},
		{"custom name", Config{Dir: "/var/lib/shop", Name: "shop"}, "/var/lib/shop/shop.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}

// errHasher fails every Hash call; seeding must surface it as a seed-stage failure.
type errHasher struct{}

var (
	_ repository.PasswordHasher = errHasher{}
	_ repository.PasswordHasher = (*auth.PasswordService)(nil)
)

func (errHasher) Hash(string) (string, error) { return "", errors.New("boom") }
func (errHasher) Verify(string, string) error { return errors.New("boom") }
func (errHasher) NeedsRehash(string) bool { return false }

func TestInitialize_SeedFailure(t *testing.T) {
	db := New(Config{Path: memoryPath}, errHasher{}, nil)
	t.Cleanup(func() { db.Close() })

	err := db.Initialize(context.Background())

	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "seed", initErr.Stage)
	assert.False(t, db.Ready())
}

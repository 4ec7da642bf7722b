// Package sqlite is the storefront's local persistent storage layer.
//
// LIFECYCLE:
// New builds a *DB without touching the disk. Initialize opens the single
// connection, creates the schema and loads the seed rows, then flips the
// readiness gate. Every repository call waits on that gate before it issues
// SQL, so a caller that arrives early either waits and succeeds or fails
// with ErrDatabaseNotReady once ReadyTimeout elapses.
//
//	db := sqlite.New(cfg, passwords, logger)
//	go db.Initialize(ctx)          // or call it synchronously
//	vinyls, err := db.Vinyls().GetAll(ctx)  // waits for the gate
//
// ONE CONNECTION:
// The pool is capped at a single open connection. SQLite serializes writers
// anyway, and ":memory:" databases only exist inside the connection that
// created them, so one handle keeps both file and in-memory databases honest.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no CGo, no C compiler, and it still
// exposes SQLite's extended result codes, which is how constraint failures are
// classified (see errors.go).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/vinyl-storefront/internal/repository"

	_ "modernc.org/sqlite"
)

const (
	// DefaultName is the fixed logical name of the storefront database.
	DefaultName = "vinyls_db"

	DefaultReadyTimeout     = 5 * time.Second
	DefaultStatementTimeout = 5 * time.Second

	// initTimeout bounds a whole open → schema → seed sequence. Seeding
	// hashes passwords with bcrypt, which is deliberately slow.
	initTimeout = 30 * time.Second

	memoryPath = ":memory:"
)

// Config controls where the database lives and how long callers wait.
type Config struct {
	// Dir and Name locate the database file as Dir/Name.db.
	Dir  string
	Name string

	// Path overrides Dir/Name when set. Use ":memory:" in tests.
	Path string

	// ReadyTimeout is how long a data-access call waits for initialization.
	ReadyTimeout time.Duration

	// StatementTimeout bounds each individual statement.
	StatementTimeout time.Duration

	// AutoInitialize makes the first data-access call start initialization
	// when nobody has called Initialize yet. A failed attempt is never
	// restarted automatically.
	AutoInitialize bool

	Seed SeedConfig

	// OnInitError is called once per failed initialization attempt.
	// The HTTP server uses it to raise its blocking alert.
	OnInitError func(error)
}

// SeedConfig holds the credentials of the baseline accounts.
type SeedConfig struct {
	AdminEmail       string
	AdminPassword    string
	CustomerEmail    string
	CustomerPassword string
}

// DSN returns the path handed to the driver.
func (c Config) DSN() string {
	if c.Path != "" {
		return c.Path
	}
	name := c.Name
	if name == "" {
		name = DefaultName
	}
	return filepath.Join(c.Dir, name+".db")
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
	if c.StatementTimeout <= 0 {
		c.StatementTimeout = DefaultStatementTimeout
	}
	return c
}

// DB owns the storefront's database connection and its readiness state.
type DB struct {
	cfg       Config
	passwords repository.PasswordHasher
	logger    *slog.Logger

	mu   sync.RWMutex // guards conn
	conn *sql.DB

	gate      *gate
	initGroup singleflight.Group
	attempted atomic.Bool

	users  *UserRepo
	vinyls *VinylRepo
	orders *OrderRepo
}

// New creates a DB. It does no I/O; call Initialize to open it.
func New(cfg Config, passwords repository.PasswordHasher, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	db := &DB{
		cfg:       cfg.withDefaults(),
		passwords: passwords,
		logger:    logger.With("component", "store"),
		gate:      newGate(),
	}
	db.users = &UserRepo{db: db}
	db.vinyls = &VinylRepo{db: db}
	db.orders = &OrderRepo{db: db}
	return db
}

// Users returns the user repository.
func (db *DB) Users() *UserRepo { return db.users }

// Vinyls returns the catalog repository.
func (db *DB) Vinyls() *VinylRepo { return db.vinyls }

// Orders returns the order repository.
func (db *DB) Orders() *OrderRepo { return db.orders }

// Initialize opens the connection, creates the schema and seeds baseline rows.
//
// It is safe to call from many goroutines: concurrent callers share the one
// in-flight attempt through singleflight, and once the gate is ready every
// call returns nil immediately. If an attempt fails, the gate stays closed
// and the next explicit call starts over from scratch, which is safe because
// schema creation and seeding are both idempotent.
//
// ctx only bounds how long this caller waits. The attempt itself is detached
// from ctx so one impatient caller cannot abort initialization for the others.
func (db *DB) Initialize(ctx context.Context) error {
	if db.gate.isReady() {
		return nil
	}
	db.attempted.Store(true)

	ch := db.initGroup.DoChan("init", func() (any, error) {
		if db.gate.isReady() {
			return nil, nil
		}
		initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), initTimeout)
		defer cancel()
		return nil, db.initialize(initCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("sqlite: waiting for initialization: %w", ctx.Err())
	}
}

func (db *DB) initialize(ctx context.Context) error {
	start := time.Now()

	if err := db.open(ctx); err != nil {
		return db.initFailed("open", err)
	}
	if err := db.ensureSchema(ctx); err != nil {
		return db.initFailed("schema", err)
	}
	if err := db.seedIfEmpty(ctx); err != nil {
		return db.initFailed("seed", err)
	}

	db.gate.set(true)
	db.logger.Info("database ready",
		slog.String("path", db.cfg.DSN()),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// initFailed closes whatever was opened so a retry starts from scratch,
// then reports the failure to the log and the OnInitError hook.
func (db *DB) initFailed(stage string, err error) error {
	db.closeConn()

	initErr := &InitializationError{Stage: stage, Err: err}
	db.logger.Error("database initialization failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
	if db.cfg.OnInitError != nil {
		db.cfg.OnInitError(initErr)
	}
	return initErr
}

// open creates the single connection and applies connection PRAGMAs.
func (db *DB) open(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.conn != nil {
		return nil
	}

	dsn := db.cfg.DSN()
	if dsn != memoryPath {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return fmt.Errorf("sqlite: creating database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", db.cfg.StatementTimeout.Milliseconds()),
	}
	if dsn != memoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			conn.Close()
			return fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db.conn = conn
	return nil
}

func (db *DB) closeConn() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}

// Ready reports whether initialization has completed.
func (db *DB) Ready() bool {
	return db.gate.isReady()
}

// Subscribe returns a stream of readiness states. The current state is
// delivered immediately; afterwards the channel always holds the newest
// state, so a slow reader skips intermediate values but never misses the
// latest one. Call cancel to unsubscribe; it closes the channel.
func (db *DB) Subscribe() (<-chan bool, func()) {
	return db.gate.subscribe()
}

// WaitUntilReady blocks until the database is ready, the timeout elapses or
// ctx is done. Failure is reported as ErrDatabaseNotReady.
func (db *DB) WaitUntilReady(ctx context.Context, timeout time.Duration) error {
	return db.gate.wait(ctx, timeout)
}

// Close marks the database not ready and closes the connection.
// Normal operation never closes it; this is for process teardown and tests.
func (db *DB) Close() error {
	db.gate.set(false)
	if err := db.closeConn(); err != nil {
		return fmt.Errorf("sqlite: closing database: %w", err)
	}
	return nil
}

// awaitReady is the suspension point every repository call passes through.
func (db *DB) awaitReady(ctx context.Context) error {
	if db.gate.isReady() {
		return nil
	}
	if db.cfg.AutoInitialize && db.attempted.CompareAndSwap(false, true) {
		go func() {
			_ = db.Initialize(context.WithoutCancel(ctx))
		}()
	}
	return db.gate.wait(ctx, db.cfg.ReadyTimeout)
}

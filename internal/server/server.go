// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware and
// routes, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and hands it to New, which creates:
//
//	sqlite.DB → UserRepo / VinylRepo / OrderRepo
//	          → Auth/User/Catalog/Cart/Order services
//	          → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
//
// STARTUP ORDER:
// The listener comes up first and the database initializes in the background.
// Until it is ready, data routes wait up to Database.ReadyTimeout and then
// answer 503; /healthz reports "starting" or, after a failure, "failed".
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/vinyl-storefront/internal/auth"
	"github.com/sakif/vinyl-storefront/internal/cart"
	"github.com/sakif/vinyl-storefront/internal/config"
	"github.com/sakif/vinyl-storefront/internal/handler"
	"github.com/sakif/vinyl-storefront/internal/middleware"
	sqliteRepo "github.com/sakif/vinyl-storefront/internal/repository/sqlite"
	"github.com/sakif/vinyl-storefront/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database (db). Start closes it during graceful
// shutdown to flush the WAL and release the file lock.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	tokens *auth.TokenService
	health *handler.HealthHandler
}

// New creates a Server. It does no I/O: the database is opened by Start
// (or by Initialize, in tests).
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("server: auth.jwt_secret is required (set STOREFRONT_AUTH_JWT_SECRET)")
	}
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("server: creating token service: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		tokens: tokens,
	}

	storeCfg := cfg.Store()
	storeCfg.OnInitError = s.onInitError
	s.db = sqliteRepo.New(storeCfg, auth.NewPasswordService(cfg.Auth.BcryptCost), logger)
	s.health = handler.NewHealthHandler(s.db)

	s.setupRoutes()
	return s, nil
}

// onInitError is the blocking alert for a failed database initialization.
// The storefront cannot serve anything useful without storage, so this logs
// at error level for operators and records the error for /healthz.
func (s *Server) onInitError(err error) {
	s.health.RecordInitError(err)
	s.logger.Error("storage unavailable: the store cannot serve requests until the database initializes",
		slog.String("error", err.Error()),
		slog.String("database", s.config.Store().DSN()),
	)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Initialize opens the database synchronously. Start does the same in the
// background.
func (s *Server) Initialize(ctx context.Context) error {
	return s.db.Initialize(ctx)
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                           → readiness
// POST   /api/auth/register|login|logout    → accounts and session cookie
// GET    /api/auth/me                       → current user          [auth]
// GET    /api/vinyls[/search|/{id}]         → catalog (public)
// POST   /api/vinyls, PUT|DELETE /{id}      → catalog edits         [staff]
// PATCH  /api/vinyls/{id}/stock|availability                        [staff]
// *      /api/cart...                       → cart                  [auth]
// POST   /api/orders/checkout, GET /api/orders[/{id}]               [auth]
// PUT    /api/profile[/password]            → own profile           [auth]
// *      /api/admin/orders...               → order desk            [staff]
// *      /api/admin/users...                → accounts              [admin]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: extracts the real client IP from proxy headers
// 3. Logger: logs each request with timing info and the request ID
// 4. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Wiring ===
	// The handlers never touch the database directly. The services never
	// touch HTTP.
	carts := cart.NewStore()
	users, vinyls, orders := s.db.Users(), s.db.Vinyls(), s.db.Orders()

	authService := service.NewAuthService(users, s.tokens, s.logger)
	userService := service.NewUserService(users, carts, s.logger)
	catalogService := service.NewCatalogService(vinyls, s.logger)
	cartService := service.NewCartService(vinyls, carts)
	orderService := service.NewOrderService(orders, vinyls, carts, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.tokens.TTL(), s.config.Auth.CookieSecure)
	userHandler := handler.NewUserHandler(userService)
	vinylHandler := handler.NewVinylHandler(catalogService)
	cartHandler := handler.NewCartHandler(cartService)
	orderHandler := handler.NewOrderHandler(orderService)

	requireAuth := auth.RequireAuth(s.tokens)

	s.router.Get("/healthz", s.health.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.With(requireAuth).Get("/me", authHandler.HandleMe)
		})

		r.Route("/vinyls", func(r chi.Router) {
			// anonymous browsing is allowed; staff get the full catalog
			r.Group(func(r chi.Router) {
				r.Use(auth.OptionalAuth(s.tokens))
				r.Get("/", vinylHandler.HandleList)
				r.Get("/search", vinylHandler.HandleSearch)
				r.Get("/{id}", vinylHandler.HandleGet)
			})
			r.Group(func(r chi.Router) {
				r.Use(requireAuth, auth.RequireStaff)
				r.Post("/", vinylHandler.HandleCreate)
				r.Put("/{id}", vinylHandler.HandleUpdate)
				r.Patch("/{id}/stock", vinylHandler.HandleSetStock)
				r.Patch("/{id}/availability", vinylHandler.HandleSetAvailability)
				r.Delete("/{id}", vinylHandler.HandleDelete)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/cart", cartHandler.HandleView)
			r.Delete("/cart", cartHandler.HandleClear)
			r.Post("/cart/items", cartHandler.HandleAdd)
			r.Delete("/cart/items/{id}", cartHandler.HandleRemove)

			r.Post("/orders/checkout", orderHandler.HandleCheckout)
			r.Get("/orders", orderHandler.HandleListMine)
			r.Get("/orders/{id}", orderHandler.HandleGet)

			r.Put("/profile", userHandler.HandleUpdateProfile)
			r.Put("/profile/password", userHandler.HandleChangePassword)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireStaff)
				r.Get("/orders", orderHandler.HandleListAll)
				r.Patch("/orders/{id}/status", orderHandler.HandleUpdateStatus)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Get("/users", userHandler.HandleList)
				r.Post("/users", userHandler.HandleCreate)
				r.Delete("/users", userHandler.HandleDelete)
				r.Patch("/users/{id}/role", userHandler.HandleSetRole)
				r.Put("/users/{id}/password", userHandler.HandleResetPassword)
			})
		})
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (HTTP.ShutdownTimeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         s.config.HTTP.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.config.Store().DSN()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Initialization failures are reported through onInitError; nothing
	// retries automatically, an operator restarts or runs dbtool init.
	go func() {
		_ = s.db.Initialize(context.Background())
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.HTTP.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

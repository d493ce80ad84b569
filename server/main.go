package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/voralabs/vora/internal/auth"
	"github.com/voralabs/vora/internal/auth/oauth"
	"github.com/voralabs/vora/internal/auth/pkcestore"
	"github.com/voralabs/vora/internal/config"
	"github.com/voralabs/vora/internal/domain/services"
	"github.com/voralabs/vora/internal/infrastructure/database/postgres"
	"github.com/voralabs/vora/internal/pkg/idgen"
	"github.com/voralabs/vora/internal/pkg/logger"
	"github.com/voralabs/vora/internal/pkg/metrics"
	"github.com/voralabs/vora/migrations"
	"github.com/voralabs/vora/server/internal/http/handlers"
	"github.com/voralabs/vora/server/internal/http/middleware"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		forceVersion  int
		configPath    string
		logLevel      string
		logFile       string
		logToStderr   bool
		alsoLogStderr bool
		logFormat     string
	)

	cmd := &cobra.Command{
		Use:   "vora-server",
		Short: "Vora authentication server",
		Long:  "The HTTP backend providing social sign-in for the Vora frontend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return setupServerLogging(logLevel, logFile, logToStderr, alsoLogStderr, logFormat)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configPath, forceVersion)
		},
	}

	cmd.Flags().IntVar(&forceVersion, "force-migration", -1, "Force migration version (use to fix dirty migration state)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (optional)")

	// Add logging flags
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Log file path (if specified, logs to file instead of stderr)")
	cmd.Flags().BoolVar(&logToStderr, "logtostderr", false, "Log to stderr (default behavior unless --log-file specified)")
	cmd.Flags().BoolVar(&alsoLogStderr, "alsologtostderr", false, "Log to both file and stderr")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "Log format (text, json)")

	// Add subcommands
	cmd.AddCommand(newSessionsCommand())

	return cmd
}

// setupServerLogging configures the global logger for the server
func setupServerLogging(logLevel, logFile string, logToStderr, alsoLogStderr bool, logFormat string) error {
	// Default to stderr logging unless file is specified
	if logFile == "" {
		logToStderr = true
	}

	cfg := logger.Config{
		Level:         logger.ParseLevel(logLevel),
		LogFile:       logFile,
		LogToStderr:   logToStderr,
		AlsoLogStderr: alsoLogStderr,
		Format:        logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	// Set as default logger
	slog.SetDefault(globalLogger)

	return nil
}

func runServer(configPath string, forceVersion int) error {
	log := slog.Default().With("component", "server")
	log.Info("Starting server initialization")

	// Initialize Snowflake ID generator
	if err := idgen.Initialize(1); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Info("Initializing PostgreSQL database",
		"user", cfg.Database.Postgres.User,
		"host", cfg.Database.Postgres.Host,
		"database", cfg.Database.Postgres.Database)

	// Connect to PostgreSQL with retries (for container startup ordering)
	pgConn, err := connectWithRetry(cfg.Database.Postgres.ConnectionString(), log)
	if err != nil {
		return err
	}
	defer pgConn.Close()

	// Handle force migration if requested
	if forceVersion >= 0 {
		log.Info("Force setting migration version", "version", forceVersion)
		if err := pgConn.ForceMigrationVersion(migrations.FS, forceVersion); err != nil {
			return fmt.Errorf("failed to force migration version: %w", err)
		}
		log.Info("Migration version forced, exiting", "version", forceVersion)
		return nil
	}

	// Run migrations
	if err := pgConn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run PostgreSQL migrations: %w", err)
	}

	userRepo := postgres.NewUserRepository(pgConn.DB)

	// Token service; TTLs were validated at config load
	accessTTL, _ := auth.ParseTTL(cfg.Auth.JWT.AccessTTL)
	refreshTTL, _ := auth.ParseTTL(cfg.Auth.JWT.RefreshTTL)
	tokenService := auth.NewTokenService(cfg.Auth.JWT.SigningKey, accessTTL, refreshTTL)

	// PKCE store
	pkceTTL, _ := auth.ParseTTL(cfg.PKCE.TTL)
	sweepInterval, _ := auth.ParseTTL(cfg.PKCE.SweepInterval)
	var pkceStore pkcestore.Store
	if cfg.PKCE.Store == "redis" {
		pkceStore, err = pkcestore.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to initialize redis PKCE store: %w", err)
		}
		log.Info("Using redis PKCE store", "addr", cfg.Redis.Addr)
	} else {
		pkceStore = pkcestore.NewMemoryStore(sweepInterval)
		log.Info("Using in-memory PKCE store")
	}
	defer pkceStore.Close()
	metrics.TrackPendingLogins(func() float64 { return float64(pkceStore.Count()) })

	// Provider registry
	registry := oauth.NewRegistry()
	if cfg.Auth.Google.Enabled {
		registry.Register(oauth.NewGoogleProvider(
			cfg.Auth.Google.ClientID,
			cfg.Auth.Google.ClientSecret,
			cfg.Auth.Google.CallbackURL,
			cfg.Auth.Google.Scopes,
		))
	}
	if cfg.Auth.Facebook.Enabled {
		registry.Register(oauth.NewFacebookProvider(
			cfg.Auth.Facebook.ClientID,
			cfg.Auth.Facebook.ClientSecret,
			cfg.Auth.Facebook.CallbackURL,
			cfg.Auth.Facebook.Scopes,
		))
	}
	log.Info("OAuth providers configured", "providers", registry.List())

	// Services and handlers
	authService := services.NewAuthService(registry, pkceStore, tokenService, userRepo, pkceTTL)
	userService := services.NewUserService(userRepo)
	handler := handlers.New(authService, userService, cfg)
	authMW := middleware.NewAuthMiddleware(tokenService, userRepo)

	router := newRouter(cfg, handler, authMW)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("HTTP server starting", "address", address, "environment", cfg.Environment)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}

	return nil
}

// newRouter wires every route with its middleware chain.
func newRouter(cfg *config.Config, handler *handlers.Handler, authMW *middleware.AuthMiddleware) *mux.Router {
	window := time.Duration(cfg.RateLimit.WindowMins) * time.Minute
	authLimiter := middleware.NewRateLimiter("auth", cfg.RateLimit.AuthRequests, window)
	apiLimiter := middleware.NewRateLimiter("api", cfg.RateLimit.APIRequests, window)

	router := mux.NewRouter()
	router.Use(middleware.CORS(cfg.Frontend.URL))
	router.Use(middleware.LogRequest)

	router.HandleFunc("/health", handler.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// OAuth flow endpoints, tightly rate limited
	authRouter := router.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/health", handler.Health).Methods(http.MethodGet)
	authRouter.Handle("/callback/{provider}",
		authLimiter.Middleware(http.HandlerFunc(handler.Callback))).Methods(http.MethodGet)
	authRouter.Handle("/logout",
		authMW.Require(http.HandlerFunc(handler.Logout))).Methods(http.MethodPost)
	authRouter.Handle("/unlink/{provider}",
		authMW.Require(http.HandlerFunc(handler.Unlink))).Methods(http.MethodPost)
	authRouter.Handle("/{provider}/verify-token",
		authLimiter.Middleware(http.HandlerFunc(handler.VerifyToken))).Methods(http.MethodPost)
	authRouter.Handle("/{provider}",
		authLimiter.Middleware(authMW.Optional(http.HandlerFunc(handler.Initiate)))).Methods(http.MethodGet)

	// User endpoints, all authenticated
	userRouter := router.PathPrefix("/user").Subrouter()
	userRouter.Use(apiLimiter.Middleware)
	userRouter.Handle("/me",
		authMW.Require(http.HandlerFunc(handler.Me))).Methods(http.MethodGet)
	userRouter.Handle("/me",
		authMW.Require(http.HandlerFunc(handler.UpdateProfile))).Methods(http.MethodPatch)
	userRouter.Handle("/me",
		authMW.Require(http.HandlerFunc(handler.DeleteAccount))).Methods(http.MethodDelete)
	userRouter.Handle("/sessions",
		authMW.Require(http.HandlerFunc(handler.Sessions))).Methods(http.MethodGet)
	userRouter.Handle("/sessions/revoke-all",
		authMW.Require(http.HandlerFunc(handler.RevokeAllSessions))).Methods(http.MethodPost)
	userRouter.Handle("/sessions/{sessionId}",
		authMW.Require(http.HandlerFunc(handler.RevokeSession))).Methods(http.MethodDelete)

	return router
}

// connectWithRetry dials PostgreSQL with exponential backoff.
func connectWithRetry(connString string, log *slog.Logger) (*postgres.Connection, error) {
	maxRetries := 10
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		pgConn, err := postgres.NewConnection(connString)
		if err == nil {
			log.Info("Successfully connected to PostgreSQL")
			return pgConn, nil
		}

		if i < maxRetries-1 {
			log.Warn("Failed to connect to PostgreSQL",
				"attempt", i+1,
				"max_retries", maxRetries,
				"error", err,
				"retry_delay", retryDelay)
			time.Sleep(retryDelay)
			retryDelay *= 2 // Exponential backoff
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}
		} else {
			return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", maxRetries, err)
		}
	}
	return nil, fmt.Errorf("unreachable")
}

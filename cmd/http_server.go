package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/audit"
	auditPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/audit/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/auth"
	authPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/auth/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog"
	catalogPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/core/events"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/entry"
	entryPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/entry/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/matrix"
	matrixPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/matrix/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/observability"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	permissionPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission/postgres"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport/middleware"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport/rest"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport/swagger"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/user"
	userPostgres "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/user/postgres"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const openAPIPath = "./api/openapi.yml"

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

// Dependencies share one connection pool: sqlx serves the identity
// queries and gorm everything else.
type Dependencies struct {
	Config  *internal.Config
	DB      *sqlx.DB
	Gorm    *gorm.DB
	Router  *chi.Mux
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

// setupRoutes wires repositories, services and handlers onto deps.Router.
func setupRoutes(deps *Dependencies) {
	cfg := deps.Config
	lg := deps.Logger
	base := transport.NewBaseHandler(lg)
	bus := events.NewEventBus(lg)

	catalogService := catalog.NewService(catalogPostgres.NewCatalogRepository(deps.Gorm), lg)
	permissionRepo := permissionPostgres.NewPermissionRepository(deps.Gorm)
	store := permission.NewStore(permissionRepo, catalogService, bus, lg)
	checker := permission.NewChecker(permissionRepo, catalogService, permission.CacheConfig{
		Size: cfg.Authz.CacheSize,
		TTL:  cfg.Authz.CacheTTL,
	}, deps.Metrics, lg)
	bus.Subscribe(events.EventTypePermissionsChanged, checker.HandlePermissionsChanged)

	auditService := audit.NewService(auditPostgres.NewAuditRepository(deps.Gorm), lg)
	manager := matrix.NewManager(store, permissionRepo, catalogService, matrixPostgres.NewUnitOfWork(deps.Gorm), auditService, bus, deps.Metrics, lg)

	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.JWTAccessSecret,
		cfg.Security.JWTRefreshSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(deps.DB), tokens, cfg.Security.BCryptCost, lg)
	userService := user.NewService(userPostgres.NewUserRepository(deps.Gorm), checker, lg)
	entryService := entry.NewService(entryPostgres.NewEntryRepository(deps.Gorm), lg)

	health := rest.NewHealthHandler(deps.DB.DB)
	health.AddCheck("catalog", func(ctx context.Context) error {
		_, err := catalogService.Snapshot(ctx)
		return err
	})

	if _, err := swagger.Load(context.Background(), openAPIPath); err != nil {
		lg.Warn("API docs unavailable", "path", openAPIPath, "error", err)
	}

	rest.RegisterAllRoutes(deps.Router, health, rest.Handlers{
		Auth:       auth.NewHandler(base, authService),
		User:       user.NewHandler(base, userService),
		Catalog:    catalog.NewHandler(base, catalogService),
		Permission: permission.NewHandler(base, checker),
		Matrix:     matrix.NewHandler(base, manager),
		Audit:      audit.NewHandler(base, auditService),
		Entry:      entry.NewHandler(base, entryService),
	}, middleware.NewAuthorization(base, checker), deps.Metrics, rest.Options{
		AllowedOrigins:  splitOrigins(cfg.Server.AllowedOrigins),
		OpenAPIPath:     openAPIPath,
		MetricsPath:     cfg.Observability.Metrics.Path,
		BatchRateLimit:  cfg.RateLimit.BatchRequests,
		BatchRateWindow: cfg.RateLimit.BatchWindow,
	}, lg)
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := setupLogger(config)

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	var metrics *observability.Metrics
	if config.Observability.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	return &Dependencies{
		Config:  config,
		Logger:  lg,
		DB:      db,
		Gorm:    gormDB,
		Router:  chi.NewRouter(),
		Metrics: metrics,
	}, nil
}

// initDB opens the pgx backed pool
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}

// initGorm layers gorm over the existing pool
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}

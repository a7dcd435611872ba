package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/config"
	"github.com/carelink/carelink/internal/domain/doctorcode"
	"github.com/carelink/carelink/internal/domain/grant"
	"github.com/carelink/carelink/internal/domain/record"
	"github.com/carelink/carelink/internal/domain/user"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/internal/platform/docstore"
	"github.com/carelink/carelink/internal/platform/middleware"
	"github.com/carelink/carelink/migrations"
	"github.com/carelink/carelink/pkg/pagination"
)

const version = "0.1.0"

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

func storeOptions(cfg *config.Config) docstore.Options {
	return docstore.Options{
		Driver:             cfg.StoreDriver,
		DatabaseURL:        cfg.DatabaseURL,
		DBMaxConns:         cfg.DBMaxConns,
		DBMinConns:         cfg.DBMinConns,
		MongoURI:           cfg.MongoURI,
		MongoDatabase:      cfg.MongoDatabase,
		FirestoreProjectID: cfg.FirestoreProjectID,
		Timeout:            cfg.StoreTimeout,
	}
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	})
}

func globalRateLimit(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

// shareRateLimit converts the per-minute share budget into a bucket that
// refills continuously and allows the whole budget as a burst.
func shareRateLimit(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	perMin := cfg.ShareAttemptsPerMin
	if perMin <= 0 {
		perMin = 10
	}
	rl.RequestsPerSecond = float64(perMin) / 60
	rl.BurstSize = perMin
	rl.KeyFunc = middleware.UserOrIPKey
	return rl
}

// newServer wires the sharing subsystem over store. pool is nil unless the
// postgres driver is in use.
func newServer(cfg *config.Config, store docstore.Store, pool *pgxpool.Pool, logger zerolog.Logger) *echo.Echo {
	userRepo := user.NewStoreRepo(store)
	codes := doctorcode.NewGenerator(userRepo,
		doctorcode.WithMaxAttempts(cfg.DoctorCodeMaxAttempts),
		doctorcode.WithLogger(logger),
	)
	userSvc := user.NewService(userRepo, codes, logger)

	grantRepo := grant.NewStoreRepo(store)
	grantSvc := grant.NewService(grantRepo, userSvc, userSvc, logger)
	guard := grant.NewGuard(grantRepo, logger)

	recordSvc := record.NewService(record.NewStoreRepo(store), pagination.Limits{
		Default: cfg.RecordsPageSize,
		Max:     cfg.RecordsMaxPageSize,
	}, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.HeaderUserID, auth.HeaderUserRole},
	}))
	if cfg.BodyLimit != "" {
		e.Use(echomw.BodyLimit(cfg.BodyLimit))
	}
	e.Use(echomw.Secure())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"store":   cfg.StoreDriver,
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool, cfg.StoreTimeout))
	}

	apiV1 := e.Group("/api/v1", authMiddleware(cfg), middleware.RateLimit(globalRateLimit(cfg)))

	user.NewHandler(userSvc).RegisterRoutes(apiV1)
	grant.NewHandler(grantSvc, guard, userSvc).RegisterRoutes(apiV1, middleware.RateLimit(shareRateLimit(cfg)))
	record.NewHandler(recordSvc, guard).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	opened, err := docstore.Open(ctx, storeOptions(cfg))
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer opened.Store.Close(context.Background())
	logger.Info().Str("driver", cfg.StoreDriver).Msg("connected to store")

	if opened.Pool != nil {
		count, err := db.NewMigrator(opened.Pool, migrations.FS).Up(ctx, migrationSchema)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to apply migrations")
		}
		logger.Info().Int("applied", count).Msg("migrations up to date")
	}

	e := newServer(cfg, opened.Store, opened.Pool, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

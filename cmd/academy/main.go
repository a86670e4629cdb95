package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/tendant/simple-academy/pkg/accesspolicy"
	"github.com/tendant/simple-academy/pkg/audit"
	"github.com/tendant/simple-academy/pkg/account"
	accountapi "github.com/tendant/simple-academy/pkg/account/api"
	"github.com/tendant/simple-academy/pkg/config"
	"github.com/tendant/simple-academy/pkg/courseaccess"
	courseaccessapi "github.com/tendant/simple-academy/pkg/courseaccess/api"
	"github.com/tendant/simple-academy/pkg/emailverification"
	emailverificationapi "github.com/tendant/simple-academy/pkg/emailverification/api"
	"github.com/tendant/simple-academy/pkg/errors"
	"github.com/tendant/simple-academy/pkg/identity"
	"github.com/tendant/simple-academy/pkg/notification"
	"github.com/tendant/simple-academy/pkg/ratelimit"
	"github.com/tendant/simple-academy/pkg/router"
	"github.com/tendant/simple-academy/pkg/session"
	"github.com/tendant/simple-academy/pkg/telemetry"
	"github.com/tendant/simple-academy/pkg/tokencodec"
)

func main() {
	loadEnvFile()

	cfg, tokens, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	env := cfg.App.Environment()
	setupLogger(env)
	errors.SetVerbose(env != config.Production)

	slog.Info("Starting Simple Academy", "env", env, "persistence", cfg.App.PersistenceType)

	codec, err := tokencodec.NewCodec(tokens.Secret,
		tokencodec.WithIssuer(tokens.Issuer),
		tokencodec.WithAudience(tokens.Audience),
	)
	if err != nil {
		slog.Error("Token signing secret is not usable", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	tel, err := telemetry.Init(ctx, cfg.Telemetry, string(env))
	if err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open identity store", "type", cfg.App.PersistenceType, "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	notificationManager, err := newNotificationManager(cfg.Email)
	if err != nil {
		slog.Error("Failed to initialize notifications", "error", err)
		os.Exit(1)
	}

	authenticator := session.NewAuthenticator(codec, session.WithSessionExpiry(tokens.SessionExpiry))
	gate := accesspolicy.NewGate(authenticator, repo)

	apiBaseURL := strings.TrimRight(cfg.App.BaseURL, "/") + cfg.App.APIPrefix
	verificationService := emailverification.NewEmailVerificationService(repo, codec, apiBaseURL,
		emailverification.WithTokenExpiry(tokens.VerificationExpiry),
		emailverification.WithResendCooldown(tokens.VerificationResendCooldown),
		emailverification.WithNotificationManager(notificationManager),
		emailverification.WithTracer(tel.Tracer()),
	)
	courseAccessService := courseaccess.NewService(repo, codec, cfg.App.FrontendURL,
		courseaccess.WithTokenExpiry(tokens.CourseAccessExpiry),
		courseaccess.WithMaxUses(tokens.CourseAccessMaxUses),
		courseaccess.WithNotificationManager(notificationManager),
		courseaccess.WithTracer(tel.Tracer()),
	)
	accountService := account.NewService(repo, authenticator, verificationService, courseAccessService)

	rateLimiter := ratelimit.NewMiddleware(cfg.RateLimit, session.UserKey)
	defer rateLimiter.Close()

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	router.SetupRoutes(server.R, router.Config{
		APIPrefix:          cfg.App.APIPrefix,
		CORS:               cfg.CORS,
		RateLimit:          rateLimiter,
		Audit:              audit.NewMiddleware(audit.Config{CourseParam: courseaccessapi.CourseParam}),
		Authenticator:      authenticator,
		Gate:               gate,
		VerificationHandle: emailverificationapi.NewHandler(verificationService, cfg.App.FrontendURL),
		CourseAccessHandle: courseaccessapi.NewHandler(courseAccessService, repo),
		AccountHandle:      accountapi.NewHandler(accountService),
	})

	slog.Info("Simple Academy ready",
		"base_url", cfg.App.BaseURL,
		"frontend_url", cfg.App.FrontendURL,
		"session_expiry", tokens.SessionExpiry,
		"course_access_max_uses", tokens.CourseAccessMaxUses,
	)
	server.Run()
}

func setupLogger(env config.Environment) {
	var handler slog.Handler
	if env == config.Production {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		})
	}
	slog.SetDefault(slog.New(handler))
}

// openRepository returns the identity store selected by PERSISTENCE_TYPE and
// a function releasing its connections
func openRepository(ctx context.Context, cfg *config.Config) (identity.Repository, func(), error) {
	noop := func() {}
	repoConfig := identity.RepositoryConfig{DataDir: cfg.App.DataDir}

	switch cfg.App.PersistenceType {
	case "postgres", "postgresql":
		if cfg.Database.Migrate {
			if err := identity.RunMigrations(cfg.Database.ToDatabaseURL()); err != nil {
				return nil, noop, fmt.Errorf("migrations: %w", err)
			}
		}
		pool, err := dbutils.NewDbPool(ctx, cfg.Database.ToDbConfig())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", cfg.Database.Database, "host", cfg.Database.Host, "port", cfg.Database.Port, "user", cfg.Database.User)
			return nil, noop, err
		}
		repoConfig.Pool = pool
		repo, err := identity.NewRepository(cfg.App.PersistenceType, repoConfig)
		return repo, closePool(pool), err

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err := pingRedis(ctx, client, cfg.Redis); err != nil {
			client.Close()
			return nil, noop, err
		}
		repoConfig.Redis = client
		repoConfig.RedisPrefix = cfg.Redis.KeyPrefix
		repo, err := identity.NewRepository("redis", repoConfig)
		return repo, func() { client.Close() }, err

	default:
		repo, err := identity.NewRepository(cfg.App.PersistenceType, repoConfig)
		return repo, noop, err
	}
}

func closePool(pool *pgxpool.Pool) func() {
	return func() { pool.Close() }
}

func pingRedis(ctx context.Context, client *redis.Client, cfg config.RedisConfig) error {
	var err error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if err = client.Ping(ctx).Err(); err == nil {
			slog.Info("Connected to redis", "addr", cfg.Addr(), "db", cfg.DB)
			return nil
		}
		slog.Warn("Redis not reachable, retrying", "addr", cfg.Addr(), "attempt", attempt, "error", err)
		time.Sleep(cfg.RetryInterval)
	}
	return fmt.Errorf("redis ping failed after %d attempts: %w", cfg.MaxRetries, err)
}

func newNotificationManager(cfg config.EmailConfig) (*notification.NotificationManager, error) {
	if !cfg.Enabled {
		slog.Warn("Email delivery disabled, verification and access links will not be mailed")
		return nil, nil
	}
	return notification.NewNotificationManager(
		notification.WithSMTP(cfg.ToSMTPConfig()),
		notification.WithDefaultTemplates(),
	)
}

func loadEnvFile() {
	envFile := ".env"
	if execPath, err := os.Executable(); err == nil {
		if candidate := filepath.Join(filepath.Dir(execPath), ".env"); fileExists(candidate) {
			envFile = candidate
		}
	}
	if !fileExists(envFile) {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load .env file", "path", envFile, "error", err)
		return
	}
	slog.Info("Loaded configuration from .env file", "path", envFile)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

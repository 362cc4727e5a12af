package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/songlist/internal/api"
	"github.com/odvcencio/songlist/internal/auth"
	"github.com/odvcencio/songlist/internal/config"
	"github.com/odvcencio/songlist/internal/database"
	"github.com/odvcencio/songlist/internal/jobs"
	"github.com/odvcencio/songlist/internal/service"
	"github.com/odvcencio/songlist/internal/storage"
)

const sessionSweepInterval = time.Hour

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("songlist", "error", err)
		os.Exit(1)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to YAML configuration file",
		Sources: cli.EnvVars("SONGLIST_CONFIG"),
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "songlist",
		Usage: "Band repertoire and setlist server",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server and maintenance jobs",
				Flags:  []cli.Flag{configFlag()},
				Action: cmdServe,
			},
			{
				Name:   "migrate",
				Usage:  "Apply the database schema",
				Flags:  []cli.Flag{configFlag()},
				Action: cmdMigrate,
			},
			{
				Name:  "backup",
				Usage: "Snapshot the SQLite store to the configured backend",
				Flags: []cli.Flag{configFlag()},
				Commands: []*cli.Command{
					{
						Name:   "run",
						Usage:  "Write one backup archive now",
						Action: cmdBackupRun,
					},
					{
						Name:   "list",
						Usage:  "List stored backup archives",
						Action: cmdBackupList,
					},
				},
				Action: cmdBackupRun,
			},
		},
	}
}

// loadConfig reads the config and installs the default logger it describes.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.Log))
	return cfg, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := parseLevel(cfg.Level)
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openDB(cfg *config.Config) (database.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return database.OpenSQLite(cfg.Database.DSN)
	case "postgres":
		return database.OpenPostgres(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

func openBackend(ctx context.Context, cfg config.BackupConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "local":
		local, err := storage.NewLocalBackend(cfg.Path)
		if err != nil {
			return nil, err
		}
		return local, nil
	case "s3":
		s3, err := storage.NewS3Backend(ctx, storage.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("unsupported backup backend: %s", cfg.Backend)
	}
}

func sessionStore(cfg *config.Config, db database.DB) (auth.SessionStore, func() error) {
	if cfg.Session.Store == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		return auth.NewRedisSessionStore(client), client.Close
	}
	return auth.NewDBSessionStore(db), func() error { return nil }
}

// oauthProviders builds a provider for every configured client. Callbacks
// land on the app URL so they work behind a proxy.
func oauthProviders(cfg *config.Config) []*auth.Provider {
	base := strings.TrimRight(cfg.Server.AppURL, "/")
	var providers []*auth.Provider
	if p := cfg.OAuth.Google; p.Enabled() {
		providers = append(providers, auth.NewGoogleProvider(p.ClientID, p.ClientSecret, base+"/api/auth/google/callback"))
	}
	if p := cfg.OAuth.GitHub; p.Enabled() {
		providers = append(providers, auth.NewGitHubProvider(p.ClientID, p.ClientSecret, base+"/api/auth/github/callback"))
	}
	return providers
}

func cmdServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	ttl, err := cfg.SessionTTL()
	if err != nil {
		return err
	}
	backupInterval, err := cfg.BackupInterval()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	traceShutdown, err := initTracing(ctx)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := traceShutdown(shutdownCtx); err != nil {
			slog.Error("shutdown tracing", "error", err)
		}
	}()

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store, closeStore := sessionStore(cfg, db)
	defer closeStore()
	authSvc := auth.NewService(cfg.Session.Secret, ttl, store)

	backend, err := openBackend(ctx, cfg.Backup)
	if err != nil {
		// Backups are optional at serve time; the endpoint reports 501.
		slog.Warn("backup destination unavailable", "backend", cfg.Backup.Backend, "error", err)
	}
	var backupSvc *service.BackupService
	if backend != nil {
		backupSvc = service.NewBackupService(db, backend, cfg.Backup.Keep)
	}

	providers := oauthProviders(cfg)
	if len(providers) == 0 {
		slog.Warn("no identity providers configured; nobody can log in")
	}
	server := api.NewServer(db, authSvc, api.ServerOptions{
		AppURL:             cfg.Server.AppURL,
		TrustedProxies:     cfg.Server.TrustedProxies,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		PublicRateLimit:    cfg.Server.PublicRateLimit,
		PublicRateBurst:    cfg.Server.PublicRateBurst,
		Providers:          providers,
		Backup:             backupSvc,
	})

	tasks := []jobs.Task{jobs.SessionSweepTask(authSvc, sessionSweepInterval)}
	if backupSvc != nil && backupInterval > 0 {
		tasks = append(tasks, jobs.BackupTask(backupSvc, backupInterval))
	}
	runner := jobs.NewRunner(tasks, jobs.RunnerOptions{})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("songlist listening", "addr", cfg.Addr(), "driver", cfg.Database.Driver, "jobs", runner.Tasks())
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func cmdMigrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	slog.Info("migrations complete")
	return nil
}

func openBackupService(ctx context.Context, cmd *cli.Command) (*service.BackupService, func() error, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateBackup(); err != nil {
		return nil, nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	backend, err := openBackend(ctx, cfg.Backup)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("open backup backend: %w", err)
	}
	return service.NewBackupService(db, backend, cfg.Backup.Keep), db.Close, nil
}

func cmdBackupRun(ctx context.Context, cmd *cli.Command) error {
	svc, closeDB, err := openBackupService(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	res, err := svc.Run(ctx)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	slog.Info("backup stored", "key", res.Key, "bytes", res.Bytes, "raw_bytes", res.RawBytes)
	return nil
}

func cmdBackupList(ctx context.Context, cmd *cli.Command) error {
	svc, closeDB, err := openBackupService(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	keys, err := svc.List(ctx)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	for _, key := range keys {
		fmt.Fprintln(os.Stdout, key)
	}
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/campusdocs/portal/internal/config"
	"github.com/campusdocs/portal/internal/database"
	"github.com/campusdocs/portal/internal/middleware"
	"github.com/campusdocs/portal/internal/modules/notify"
	"github.com/campusdocs/portal/internal/modules/snapshot"
	"github.com/campusdocs/portal/internal/pkg/blob"
	pkgcron "github.com/campusdocs/portal/internal/pkg/cron"
	jwtpkg "github.com/campusdocs/portal/internal/pkg/jwt"
	"github.com/campusdocs/portal/internal/pkg/mail"
	pkgredis "github.com/campusdocs/portal/internal/pkg/redis"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg       *config.AppConfig
	router    *gin.Engine
	db        *gorm.DB
	rdb       *redis.Client
	store     blob.Store
	loc       *time.Location
	notifier  *notify.Notifier
	snapshots *snapshot.Service
	logger    *zap.Logger
	sched     *pkgcron.Scheduler
}

// New initializes the application: config → DB → Redis → mail → storage → routes.
func New(ctx context.Context, logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		jwtpkg.SetSecret(secret)
	} else {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enable {
		rdb, err = pkgredis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			// Rate limiting is the only consumer; run without it.
			logger.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
			rdb = nil
		}
	}

	deliveryLog := notify.NewDeliveryLog(db)
	primary, fallback := mail.BuildTransports(cfg.Mail, logger)
	notifier := notify.NewNotifier(deliveryLog, cfg.Mail.From, primary,
		notify.WithFallback(fallback), notify.WithLogger(logger))
	if err := notify.NewUploadTrigger(db, notifier, deliveryLog, cfg.Mail.From, loc, logger).Register(); err != nil {
		return nil, fmt.Errorf("upload trigger: %w", err)
	}
	if fallback == nil {
		logger.Info("mail fallback disabled, set sendgrid.api_key to enable it")
	}

	store, err := blob.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	snapshotStore, snapshotPrefix, err := newSnapshotStore(cfg, store)
	if err != nil {
		return nil, fmt.Errorf("snapshot storage: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())
	router.Use(newCORS(cfg))

	a := &App{
		cfg:       cfg,
		router:    router,
		db:        db,
		rdb:       rdb,
		store:     store,
		loc:       loc,
		notifier:  notifier,
		snapshots: snapshot.NewService(db, snapshotStore, snapshotPrefix, cfg.Snapshot.Keep, logger),
		logger:    logger,
		sched:     pkgcron.New(logger),
	}
	a.registerRoutes(deliveryLog)
	a.registerCronJobs()
	return a, nil
}

// newSnapshotStore keeps archives next to uploaded files on S3 and in the
// snapshot directory otherwise.
func newSnapshotStore(cfg *config.AppConfig, files blob.Store) (blob.Store, string, error) {
	if cfg.Storage.Driver == config.StorageS3 {
		return files, "snapshots/", nil
	}
	local, err := blob.NewLocalStore(cfg.SnapshotDir())
	if err != nil {
		return nil, "", err
	}
	return local, "", nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Scheduler exposes the background jobs so the caller controls their lifetime.
func (a *App) Scheduler() *pkgcron.Scheduler { return a.sched }

// Close releases the database and redis connections.
func (a *App) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if sqlDB, err := a.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}

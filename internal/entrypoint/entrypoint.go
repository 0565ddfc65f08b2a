package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/audit"
	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/changefeed"
	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/database"
	auditRepo "github.com/mrlokans/library/internal/database/audit"
	"github.com/mrlokans/library/internal/database/books"
	"github.com/mrlokans/library/internal/database/users"
	http_controllers "github.com/mrlokans/library/internal/http"
	"github.com/mrlokans/library/internal/logger"
	"github.com/mrlokans/library/internal/scheduler"
	"github.com/mrlokans/library/internal/screens"
	"github.com/mrlokans/library/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// NewLogger builds the process logger from the log section of the config.
func NewLogger(cfg config.Log) *slog.Logger {
	return logger.New(logger.Config{
		Format:      cfg.Format,
		Environment: cfg.Environment,
		Level:       logger.ParseLevel(cfg.Level),
	})
}

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc, log *slog.Logger) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT. SIGKILL can't be caught.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Open streams hold requests until their context ends, so stop the
	// background machinery first and let Shutdown drain the rest.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	log.Info("server exiting")
}

// csrfSecret decodes AUTH_SESSION_SECRET. Hex is preferred; anything else is
// used as raw bytes. An empty secret gets a generated one for this process.
func csrfSecret(configured string, log *slog.Logger) ([]byte, error) {
	if configured != "" {
		secret, err := hex.DecodeString(configured)
		if err != nil {
			return []byte(configured), nil
		}
		return secret, nil
	}

	generated, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	log.Warn("generated session secret (set AUTH_SESSION_SECRET to persist)")
	return hex.DecodeString(generated)
}

func Run(cfg *config.Config, version string) {
	log := NewLogger(cfg.Log)
	log.Info("starting library", "version", version)

	db, err := database.NewDatabase(cfg.Database.Path, log)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database", "error", err)
		}
	}()

	feed := changefeed.New()
	defer feed.Close()

	bookRepo := books.NewRepository(db.DB, feed)
	userRepo := users.NewRepository(db.DB)
	auditSvc := audit.NewService(auditRepo.NewRepository(db.DB), log)
	defer auditSvc.Wait()

	mailer := tasks.LogMailer{Log: log.With("component", "mailer")}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var notifier auth.ResetNotifier = tasks.NewDirectNotifier(mailer)
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromConfig(cfg.Tasks), log)
		if err != nil {
			log.Error("failed to initialize task queue", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Error("error closing task client", "error", err)
			}
		}()
		notifier = tasks.NewQueueNotifier(taskClient)
	}

	broker := auth.NewStateBroker()
	authService := auth.NewService(userRepo, cfg.Auth, broker, notifier, log)

	var taskCtxCancel context.CancelFunc
	if taskClient != nil {
		taskClient.Register(
			tasks.NewSendPasswordResetEmailQueue(mailer, log),
			tasks.NewCleanupAuditEventsQueue(auditSvc, log),
			tasks.NewPurgeResetTokensQueue(authService, log),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Error("failed to get SQL DB for sessions", "error", err)
		os.Exit(1)
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		log.Error("failed to initialize session manager", "error", err)
		os.Exit(1)
	}
	secret, err := csrfSecret(cfg.Auth.SessionSecret, log)
	if err != nil {
		log.Error("failed to prepare CSRF secret", "error", err)
		os.Exit(1)
	}

	limiter := auth.NewRateLimiter(auth.RateLimitConfig{
		MaxAttempts:     cfg.Auth.MaxLoginAttempts,
		WindowDuration:  cfg.Auth.RateLimitWindow,
		LockoutDuration: cfg.Auth.LockoutDuration,
	})

	if count, err := authService.GetUserCount(context.Background()); err == nil && count == 0 {
		log.Info("no users found, register one at POST /api/auth/register or with the create-user command")
	}

	// Maintenance runs through the queue when there is one, inline otherwise.
	var maintenance *scheduler.MaintenanceScheduler
	maintenanceCtx, maintenanceCancel := context.WithCancel(context.Background())
	defer maintenanceCancel()
	if cfg.Maintenance.Enabled {
		if err := scheduler.ValidateSchedule(cfg.Maintenance.Schedule); err != nil {
			log.Warn("maintenance disabled: invalid schedule", "schedule", cfg.Maintenance.Schedule, "error", err)
		} else {
			var job scheduler.Job
			if taskClient != nil {
				job = scheduler.EnqueueJob(taskClient, cfg.Audit.RetentionDays)
			} else {
				job = scheduler.InlineJob(auditSvc, authService, cfg.Audit.RetentionDays, log)
			}
			maintenance = scheduler.NewMaintenanceScheduler(cfg.Maintenance.Schedule, job, log)
			if err := maintenance.Start(maintenanceCtx); err != nil {
				log.Error("failed to start maintenance scheduler", "error", err)
				maintenance = nil
			}
		}
	}

	routerCfg := http_controllers.RouterConfig{
		Database: db,
		Screens: screens.Deps{
			Books:               bookRepo,
			Changes:             feed,
			Accounts:            authService,
			PageSize:            cfg.Library.PageSize,
			SearchDebounce:      cfg.Library.SearchDebounce,
			SearchMaxScanPages:  cfg.Library.SearchMaxScanPages,
			OptimisticFavorites: cfg.Library.OptimisticFavorites,
			MinPasswordLength:   cfg.Auth.MinPasswordLength,
			Log:                 log,
		},
		Auditor:         auditSvc,
		AuthService:     authService,
		SessionManager:  sessionManager,
		RateLimiter:     limiter,
		CSRFSecret:      secret,
		SecureCookies:   cfg.Auth.SecureCookies,
		StreamHeartbeat: cfg.Library.StreamHeartbeat,
		Version:         version,
		Log:             log,
	}

	if cfg.Log.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if maintenance != nil {
			maintenance.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		limiter.Stop()
		// Ends every live subscription so open streams return.
		feed.Close()
	}

	Serve(router, cfg, onShutdown, log)
}

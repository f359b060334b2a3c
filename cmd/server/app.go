package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/saldanaj97/atlaris-sub007/internal/attempt"
	"github.com/saldanaj97/atlaris-sub007/internal/config"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/events"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/gemini"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/logger"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/postgres"
	"github.com/saldanaj97/atlaris-sub007/internal/quota"
	"github.com/saldanaj97/atlaris-sub007/internal/ratelimit"
	"github.com/saldanaj97/atlaris-sub007/internal/service"
	"github.com/saldanaj97/atlaris-sub007/internal/service/auth"
	"github.com/saldanaj97/atlaris-sub007/internal/task"
)

// application holds the fully wired dependency graph.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	jwtService  auth.JWTService
	userService *service.UserService
	planService *service.PlanService
	limiter     *ratelimit.Window
	runner      *task.Runner
}

// apiRateLimit is the in-process per-caller budget for generation
// endpoints. The durable per-user limit at reservation time is the real
// enforcement; this just sheds bursts early.
const (
	apiRateLimitCeiling = 30
	apiRateLimitWindow  = time.Minute
)

// newApplication loads configuration and wires every component. The
// context bounds startup work (database ping, migrations, client init).
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server.LogLevel)
	slog.SetDefault(log)
	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"worker_count", cfg.Queue.WorkerCount)

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(ctx, db, log); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Stores
	planStore := postgres.NewPostgresPlanStore(db, log)
	attemptStore := postgres.NewPostgresAttemptStore(db, log)
	contentStore := postgres.NewPostgresContentStore(db, log)
	jobStore := postgres.NewPostgresJobStore(db, log)
	quotaStore := postgres.NewPostgresQuotaStore(db, log)
	userStore := postgres.NewPostgresUserStore(db, log)

	// Auth
	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	bcryptService := auth.NewBcryptService(cfg.Auth.BcryptCost)

	userService, err := service.NewUserService(userStore, bcryptService, bcryptService)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}

	// Quota
	emitter := events.NewInMemoryEmitter(log)
	tierResolver, err := service.NewStoreTierResolver(userStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create tier resolver: %w", err)
	}
	capResolver, err := quota.NewTierCapResolver(tierResolver, quota.TierCaps{
		Free:    cfg.Quota.FreeCap,
		Starter: cfg.Quota.StarterCap,
		Pro:     cfg.Quota.ProCap,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cap resolver: %w", err)
	}
	ledger, err := quota.NewLedger(quotaStore, capResolver, emitter, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create quota ledger: %w", err)
	}

	// Attempt orchestration
	reservations, err := attempt.NewReservationManager(db, planStore, attemptStore,
		attempt.ReservationParams{
			AttemptCap:       cfg.Generation.AttemptCap,
			RateLimitWindow:  cfg.Generation.RateLimitWindow,
			RateLimitCeiling: cfg.Generation.RateLimitCeiling,
			TopicMaxLen:      cfg.Generation.TopicMaxLen,
			NotesMaxLen:      cfg.Generation.NotesMaxLen,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create reservation manager: %w", err)
	}
	finalizer, err := attempt.NewFinalizer(db, planStore, attemptStore, contentStore,
		cfg.Generation.AttemptCap)
	if err != nil {
		return nil, fmt.Errorf("failed to create finalizer: %w", err)
	}

	// Generation
	generator, err := gemini.NewGeminiGenerator(ctx, log, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini generator: %w", err)
	}
	processor, err := service.NewPlanGenerationProcessor(generator, finalizer,
		"gemini", cfg.Generation.Timeout, cfg.Generation.ExtendedTimeout,
		cfg.Queue.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation processor: %w", err)
	}

	// Queue
	queue, err := task.NewQueue(jobStore, cfg.Queue.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to create job queue: %w", err)
	}
	if err := queue.RegisterExecutor(domain.JobTypePlanGeneration, processor); err != nil {
		return nil, fmt.Errorf("failed to register generation executor: %w", err)
	}

	var runner *task.Runner
	if cfg.Queue.WorkerCount > 0 {
		runner, err = task.NewRunner(queue, jobStore, task.RunnerConfig{
			WorkerCount:  cfg.Queue.WorkerCount,
			PollInterval: cfg.Queue.PollInterval,
			StuckJobAge:  cfg.Queue.StuckJobAge,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create job runner: %w", err)
		}
	}

	limiter := ratelimit.NewWindow(apiRateLimitCeiling, apiRateLimitWindow)

	planService, err := service.NewPlanService(
		planStore,
		contentStore,
		reservations,
		finalizer,
		ledger,
		queue,
		tierResolver,
		ratelimit.NewWindow(cfg.Generation.RateLimitCeiling, cfg.Generation.RateLimitWindow),
		cfg.Queue.InlineDrainMax,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan service: %w", err)
	}

	return &application{
		config:      cfg,
		logger:      log,
		db:          db,
		jwtService:  jwtService,
		userService: userService,
		planService: planService,
		limiter:     limiter,
		runner:      runner,
	}, nil
}

// run starts the background runner (if configured) and serves HTTP until
// the context is cancelled.
func (app *application) run(ctx context.Context) error {
	if app.runner != nil {
		app.runner.Start(ctx)
		app.logger.Info("job runner started",
			"workers", app.config.Queue.WorkerCount)
	}

	return app.serveHTTP(ctx, app.setupRouter())
}

// cleanup releases resources on shutdown.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}

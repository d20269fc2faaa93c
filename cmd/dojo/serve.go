package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/faixamestre/dojo-hub/config"
	"github.com/faixamestre/dojo-hub/internal/application/command"
	"github.com/faixamestre/dojo-hub/internal/application/eventhandler"
	"github.com/faixamestre/dojo-hub/internal/application/query"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/internal/infrastructure/messaging"
	"github.com/faixamestre/dojo-hub/internal/infrastructure/persistence/postgres"
	"github.com/faixamestre/dojo-hub/internal/infrastructure/persistence/projections"
	"github.com/faixamestre/dojo-hub/internal/infrastructure/persistence/redis"
	"github.com/faixamestre/dojo-hub/internal/infrastructure/scheduler"
	"github.com/faixamestre/dojo-hub/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/faixamestre/dojo-hub/internal/interface/http"
	"github.com/faixamestre/dojo-hub/internal/interface/http/handlers"
	"github.com/faixamestre/dojo-hub/pkg/logger"
	"github.com/faixamestre/dojo-hub/pkg/timeutil"
)

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	log.Info("starting dojo",
		logger.String("academy", cfg.Academy.Name),
		logger.String("timezone", cfg.App.Location.String()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// Storage
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := postgres.Connect(ctx, postgresConfig(cfg), log)
	if err != nil {
		return err
	}
	defer conn.Close()

	if migrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied", logger.Any("versions", applied))
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("postgres", handlers.NewPingCheck(conn))

	var (
		students   student.Repository          = postgres.NewStudentRepository(conn)
		promotions student.PromotionRepository = postgres.NewPromotionRepository(conn)
		attendance                             = postgres.NewAttendanceRepository(conn)
		payments                               = postgres.NewPaymentRepository(conn)
	)

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
		Logger:         log,
	})
	defer bus.Close()

	// Redis is optional: when it is unreachable the service runs without
	// the cache and the fan-out.
	if cache := connectRedis(ctx, cfg, log); cache != nil {
		defer cache.Close()
		health.AddOptionalCheck("redis", handlers.NewPingCheck(cache))

		if cfg.Features.IsEnabled(config.FeatureStudentCache) {
			cached := redis.NewCachedStudentRepository(students, cache, cfg.Redis.StudentTTL, log)
			students = cached
			promotions = redis.NewInvalidatingPromotions(promotions, cached)
		}
		if cfg.Features.IsEnabled(config.FeatureEventFanout) {
			if err := bus.SubscribeAll(redis.NewEventFanout(cache).Handle); err != nil {
				return err
			}
		}
	}

	board := projections.NewOfferBoard()
	offers := eventhandler.NewOnPromotionEligibleHandler(students, board, log, eventhandler.DefaultPromotionEligibleConfig())
	if err := bus.Subscribe(shared.EventPromotionEligible, offers.Handle); err != nil {
		return err
	}
	withdraw := eventhandler.NewOnStudentChangedHandler(board, log)
	for _, et := range withdraw.EventTypes() {
		if err := bus.Subscribe(et, withdraw.Handle); err != nil {
			return err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Application
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.Clock(timeutil.SystemClock)
	loc := cfg.App.Location

	deps := httpapi.Dependencies{
		EnrollStudent:          command.NewEnrollStudentHandler(students, bus, clock, loc, log),
		PromoteStudent:         command.NewPromoteStudentHandler(students, promotions, bus, clock, loc, log),
		LogAttendance:          command.NewLogAttendanceHandler(students, attendance, bus, clock, loc, log),
		RecordPayment:          command.NewRecordPaymentHandler(students, payments, bus, log),
		DeactivateStudent:      command.NewDeactivateStudentHandler(students, bus, log),
		GetEligibility:         query.NewGetEligibilityHandler(students, clock, loc),
		ListUpcomingPromotions: query.NewListUpcomingPromotionsHandler(students, clock, loc, cfg.Academy.UpcomingPromotionsLimit),
		GetStudent:             query.NewGetStudentHandler(students, promotions, attendance, payments, clock, loc),
		ListStudents:           query.NewListStudentsHandler(students),
		Offers:                 board,
		Logger:                 log,
		HealthChecker:          health,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Background jobs
	// ─────────────────────────────────────────────────────────────────────────
	var (
		sched *scheduler.Scheduler
		scan  *jobs.ScanEligibilityJob
	)
	if cfg.Scheduler.Enabled && cfg.Features.IsEnabled(config.FeatureEligibilityScan) {
		sched, scan, err = newScheduler(cfg, students, bus, log)
		if err != nil {
			return err
		}
	}

	deps.Stats = func() map[string]any {
		stats := map[string]any{
			"events":         bus.Metrics(),
			"features":       cfg.Features.All(),
			"pending_offers": board.Count(),
		}
		if sched != nil {
			stats["jobs"] = sched.ListJobs()
			stats["scheduler"] = sched.GetMetrics()
			stats["last_scan"] = scan.LastRunStats()
		}
		return stats
	}

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP
	// ─────────────────────────────────────────────────────────────────────────
	srv, err := httpapi.NewServer(httpConfig(cfg), deps)
	if err != nil {
		return err
	}

	return run(ctx, cfg, log, srv, sched)
}

// run serves until ctx is cancelled or the listener fails, then stops the
// scheduler before draining HTTP.
func run(ctx context.Context, cfg *config.Config, log *logger.Logger, srv *httpapi.Server, sched *scheduler.Scheduler) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	if sched != nil {
		if err := sched.Start(gctx); err != nil {
			return err
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if sched != nil {
			if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
				log.Warn("scheduler stop", logger.Err(err))
			}
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newScheduler(cfg *config.Config, students student.Repository, bus shared.EventPublisher, log *logger.Logger) (*scheduler.Scheduler, *jobs.ScanEligibilityJob, error) {
	loc := cfg.App.Location

	var schedule scheduler.Schedule
	if cfg.Scheduler.EligibilityScanCron != "" {
		cron, err := scheduler.ParseCron(cfg.Scheduler.EligibilityScanCron, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("scheduler.eligibility_scan_cron: %w", err)
		}
		schedule = cron
	} else {
		schedule = scheduler.NewIntervalSchedule(cfg.Scheduler.EligibilityScanInterval)
	}

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:            log,
		Timezone:          loc,
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		OnJobComplete: func(r scheduler.JobResult) {
			if !r.Success {
				log.Warn("job failed", logger.String("job", r.JobName), logger.Err(r.Error))
			}
		},
	})

	scan := jobs.NewScanEligibilityJob(students, bus, log, jobs.ScanEligibilityConfig{
		PageSize: 200,
		Location: loc,
		Clock:    timeutil.SystemClock,
		RetryIf:  postgres.IsTransient,
	})
	if err := sched.Register(scan, schedule); err != nil {
		return nil, nil, err
	}
	return sched, scan, nil
}

func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) *redis.Cache {
	if cfg.Redis.Disabled {
		log.Info("redis disabled")
		return nil
	}
	if !cfg.Features.IsEnabled(config.FeatureStudentCache) && !cfg.Features.IsEnabled(config.FeatureEventFanout) {
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cache, err := redis.NewCache(connectCtx, redis.Config{
		URL:             cfg.Redis.URL,
		Host:            cfg.Redis.Host,
		Port:            cfg.Redis.Port,
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		PoolSize:        cfg.Redis.PoolSize,
		MinIdleConns:    cfg.Redis.MinIdleConns,
		DialTimeout:     cfg.Redis.DialTimeout,
		ReadTimeout:     cfg.Redis.ReadTimeout,
		WriteTimeout:    cfg.Redis.WriteTimeout,
		ConnectAttempts: 3,
	}, log)
	if err != nil {
		log.Warn("redis unavailable, running without cache", logger.Err(err))
		return nil
	}
	return cache
}

func postgresConfig(cfg *config.Config) postgres.Config {
	pc := postgres.DefaultConfig(cfg.Database.URL)
	if cfg.Database.MaxOpenConns > 0 {
		pc.MaxConns = int32(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		pc.MinConns = int32(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	}
	if cfg.Database.ConnectAttempts > 0 {
		pc.ConnectAttempts = cfg.Database.ConnectAttempts
	}
	return pc
}

func httpConfig(cfg *config.Config) httpapi.Config {
	hc := httpapi.DefaultConfig()
	hc.Host = cfg.HTTP.Host
	hc.Port = cfg.HTTP.Port
	hc.ReadTimeout = cfg.HTTP.ReadTimeout
	hc.WriteTimeout = cfg.HTTP.WriteTimeout
	hc.IdleTimeout = cfg.HTTP.IdleTimeout
	hc.AllowedOrigins = cfg.HTTP.AllowedOrigins
	hc.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	hc.APIKeyHashes = cfg.HTTP.APIKeyHashes
	hc.EnableUpcoming = cfg.Features.IsEnabled(config.FeatureUpcomingWidget)
	hc.Version = cfg.App.Version
	return hc
}

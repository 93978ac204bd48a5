package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-ticket-engine/internal/config"
	"github.com/iliyamo/cinema-ticket-engine/internal/database"
	"github.com/iliyamo/cinema-ticket-engine/internal/handler"
	"github.com/iliyamo/cinema-ticket-engine/internal/jobs"
	"github.com/iliyamo/cinema-ticket-engine/internal/logger"
	"github.com/iliyamo/cinema-ticket-engine/internal/memstore"
	"github.com/iliyamo/cinema-ticket-engine/internal/middleware"
	"github.com/iliyamo/cinema-ticket-engine/internal/queue"
	"github.com/iliyamo/cinema-ticket-engine/internal/repository"
	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
	"github.com/iliyamo/cinema-ticket-engine/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("shutdown complete")
}

// stores holds the storage chosen by STORE_DRIVER.
type stores struct {
	engine  reservation.Store
	catalog handler.CatalogStore
	db      *sql.DB
}

func openStores(ctx context.Context, cfg config.Config, log zerolog.Logger) (stores, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		s := memstore.New(memstore.WithLockTimeout(10 * time.Second))
		return stores{engine: s, catalog: s}, nil
	}
	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return stores{}, err
	}
	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return stores{}, err
		}
	}
	return stores{engine: repository.NewStore(db), catalog: repository.NewCatalog(db), db: db}, nil
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	// Redis backs the job queue; caching and rate limiting degrade
	// gracefully without it.
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		if cfg.QueueDriver == config.DriverRedis {
			return err
		}
		log.Warn().Err(err).Msg("redis unavailable, cache and rate limit disabled")
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var jobQueue jobs.Queue
	if cfg.QueueDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory job queue, pending jobs are lost on restart")
		jobQueue = jobs.NewMemoryQueue(cfg.Jobs.VisibilityTimeout)
	} else {
		jobQueue = jobs.NewRedisQueue(rdb, cfg.Jobs.QueuePrefix, cfg.Jobs.VisibilityTimeout)
	}

	// Events leave the request path through a buffer; the breaker stops
	// dialing a broker that keeps failing.
	var events reservation.Publisher = queue.NopPublisher{}
	var async *queue.AsyncPublisher
	if cfg.RabbitURL != "" {
		pubLog := logger.Component(log, "publisher")
		pub := queue.NewPublisher(cfg.RabbitURL, pubLog)
		defer pub.Close()
		async = queue.NewAsyncPublisher(queue.NewBreakerPublisher(pub, 5, 30*time.Second, pubLog), 1024, 5*time.Second, pubLog)
		events = async
	}

	opts := reservation.Options{
		LeaseWindow: cfg.Reservation.LeaseWindow,
		MaxAttempts: cfg.Reservation.MaxAttempts,
		TaxRate:     cfg.Reservation.TaxRate,
	}
	scheduler := jobs.NewScheduler(jobQueue)
	generator := reservation.NewInventoryGenerator(st.engine, events, logger.Component(log, "inventory"))
	coordinator := reservation.NewCoordinator(st.engine, scheduler, events, opts, logger.Component(log, "coordinator"))
	reclaimer := reservation.NewReclaimer(st.engine, events, opts, logger.Component(log, "reclaimer"))
	payments := reservation.NewPayments(st.engine, events, opts, logger.Component(log, "payments"))

	pool := jobs.NewPool(jobQueue, jobs.PoolConfig{
		Workers:      cfg.Jobs.Workers,
		MaxAttempts:  cfg.Jobs.MaxAttempts,
		PollInterval: cfg.Jobs.PollInterval,
	}, logger.Component(log, "jobs"))
	pool.Register(jobs.KindGenerateInventory, jobs.InventoryHandler(generator))
	pool.Register(jobs.KindReclaimBooking, jobs.ReclaimHandler(reclaimer))

	h := handler.New(st.catalog, st.engine, coordinator, payments, scheduler, logger.Component(log, "http"))
	e := router.New(h, router.Options{
		PaymentSecret: cfg.PaymentSecret,
		RateLimit:     middleware.NewTokenBucket(cfg.RateLimit, rdb, logger.Component(log, "ratelimit")),
		Cache:         middleware.NewRedisCache(cfg.Cache, rdb, logger.Component(log, "cache")),
		Ready:         readiness(st.db, rdb),
	}, logger.Component(log, "http"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return pool.Run(gctx) })
	if cfg.Jobs.SweepInterval > 0 {
		g.Go(func() error { return reclaimer.RunSweeper(gctx, cfg.Jobs.SweepInterval, cfg.Jobs.SweepBatch) })
	}
	if async != nil {
		g.Go(func() error { return async.Run(gctx) })
	}
	if cfg.RabbitURL != "" {
		consumer := queue.NewAuditConsumer(cfg.RabbitURL, cfg.AuditLogPath, logger.Component(log, "audit-consumer"))
		g.Go(func() error { return consumer.Run(gctx) })
	}
	return g.Wait()
}

func readiness(db *sql.DB, rdb *redis.Client) map[string]handler.Check {
	checks := map[string]handler.Check{}
	if db != nil {
		checks["mysql"] = db.PingContext
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logger"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewZapLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("api-server starting up",
		zap.String("http_port", cfg.HTTPPort),
		zap.String("timezone", cfg.TimezoneName),
		zap.Duration("lock_ttl", cfg.LockTTL),
		zap.Duration("lock_timeout", cfg.LockTimeout),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to postgres")

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		log.Fatal("migration error", zap.Error(err))
	}

	// Redis is optional: without it slot locks are process-local and the
	// database row locks still serialize bookings.
	var (
		rdb    *redis.Client
		locker redisclient.Locker
	)
	rdb, err = redisclient.NewRedisClient(cfg)
	if err != nil {
		log.Warn("redis unavailable, using local slot locks", zap.Error(err))
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("error closing redis", zap.Error(err))
			}
		}()
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, log.Named("slot_lock"))
		log.Info("connected to redis")
	}

	publisher, closePublisher := newPublisher(cfg, log)
	defer closePublisher()
	queue := notify.NewQueue(publisher, cfg.NotifyBuffer, log.Named("notify"))
	queue.Start()

	directory := appointment.NewPgDirectory(pgPool)
	svc := appointment.NewService(appointment.Deps{
		Store:    appointment.NewPgStore(pgPool, cfg.LockTimeout),
		Doctors:  directory,
		Patients: directory,
		Locker:   locker,
		Notifier: queue,
		Log:      log.Named("appointment"),
		Location: cfg.Location,
	})

	router := api.NewRouter(api.RouterConfig{
		Service:   svc,
		PgPool:    pgPool,
		Redis:     rdb,
		Log:       log.Named("http"),
		RateLimit: cfg.RateLimit,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", zap.Error(err))
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Warn("notification queue did not drain", zap.Error(err))
	}
}

// newPublisher delivers notifications to RabbitMQ when configured and falls
// back to logging them.
func newPublisher(cfg config.Config, log *zap.Logger) (notify.Publisher, func()) {
	if cfg.RabbitMQURL == "" {
		log.Info("RABBITMQ_URL not set, notifications will be logged")
		return notify.NewLogPublisher(log.Named("notify")), func() {}
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Warn("rabbitmq unavailable, notifications will be logged", zap.Error(err))
		return notify.NewLogPublisher(log.Named("notify")), func() {}
	}
	pub, err := notify.NewAMQPPublisher(conn, cfg.NotifyQueue)
	if err != nil {
		_ = conn.Close()
		log.Warn("rabbitmq queue setup failed, notifications will be logged", zap.Error(err))
		return notify.NewLogPublisher(log.Named("notify")), func() {}
	}
	log.Info("publishing notifications to rabbitmq", zap.String("queue", cfg.NotifyQueue))

	return pub, func() {
		if err := pub.Close(); err != nil {
			log.Warn("error closing rabbitmq channel", zap.Error(err))
		}
		if err := conn.Close(); err != nil {
			log.Warn("error closing rabbitmq connection", zap.Error(err))
		}
	}
}

// varflow-daemon — выполняет конвейеры по запросам из RabbitMQ и по
// расписаниям.
//
// Daemon:
//   - Потребляет запросы из очереди runs.pending
//   - Запускает конвейеры по cron-расписаниям из VARFLOW_CONFIG
//     (только лидер, через pg_try_advisory_lock)
//   - Записывает runs и tasks в PostgreSQL
//   - Публикует task.completed и run.finished
//   - Отдаёт REST API (/api/v1), /healthz и /metrics
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/varflow/internal/api"
	"github.com/shaiso/varflow/internal/daemon"
	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/mq"
	"github.com/shaiso/varflow/internal/pipeline"
	"github.com/shaiso/varflow/internal/repo"
	"github.com/shaiso/varflow/internal/scheduler"
	"github.com/shaiso/varflow/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting varflow-daemon")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Расписания
	var schedules []domain.Schedule
	if path := os.Getenv("VARFLOW_CONFIG"); path != "" {
		var err error
		schedules, err = scheduler.LoadSchedules(path)
		if err != nil {
			logger.Error("failed to load daemon config", "path", path, "error", err)
			os.Exit(1)
		}
	}

	// DB pool
	pool, err := repo.NewPool(ctx, repo.DSNFromEnv())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	runRepo := repo.NewRunRepo(pool)
	taskRepo := repo.NewTaskRepo(pool)

	// RabbitMQ: ждём брокер при старте
	mqConn, err := mq.Dial(ctx, mq.URLFromEnv(), logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	publisher := mq.NewPublisher(mqConn, logger)

	svc := pipeline.New(pipeline.Config{
		RunStore:  runRepo,
		TaskStore: taskRepo,
		Runs:      runRepo,
		Publisher: publisher,
		Parallel:  envInt("VARFLOW_PARALLEL", 0),
		Logger:    logger,
	})

	consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
		Queue:    mq.QueueRunsPending,
		Handler:  daemon.RunRequestHandler(svc, logger),
		Prefetch: envInt("VARFLOW_CONCURRENT_RUNS", 1),
	})

	leaderLock := repo.NewAdvisoryLock(pool, repo.SchedulerLockKey)
	defer leaderLock.Release(context.Background())

	sched, err := scheduler.New(scheduler.Config{
		Schedules: schedules,
		Submitter: daemon.Submitter{Requester: publisher},
		Leader:    leaderLock,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	// HTTP mux: API + /healthz + /metrics
	mux := http.NewServeMux()
	api.NewHandler(api.Config{
		Runs:      runRepo,
		Tasks:     taskRepo,
		Requester: publisher,
		Planner:   svc,
		Schedules: sched,
		Logger:    logger,
	}).RegisterRoutes(mux)
	mux.Handle("/healthz", daemon.Health{
		Checks: map[string]daemon.Probe{
			"broker": mqConn.IsConnected,
			"database": func() bool {
				pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				defer cancel()
				return pool.Ping(pingCtx) == nil
			},
		},
		Runs: svc,
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8080"
	if v := os.Getenv("DAEMON_PORT"); v != "" {
		port = ":" + v
	}
	server := &http.Server{Addr: port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		err := consumer.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("daemon stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("varflow-daemon stopped")
}

// envInt читает целое из окружения, def — если не задано или не число.
func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

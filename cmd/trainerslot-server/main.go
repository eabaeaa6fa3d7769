package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"trainerslot/internal/availability"
	"trainerslot/internal/config"
	"trainerslot/internal/lock"
	"trainerslot/internal/metrics"
	"trainerslot/internal/service/booking"
	"trainerslot/internal/store"
	"trainerslot/internal/store/memory"
	"trainerslot/internal/store/postgres"
	grpcTransport "trainerslot/internal/transport/grpc"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "trainerslot-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "trainerslot-server"),
	)
	slog.SetDefault(log)

	log.Info("starting", slog.String("grpc_addr", cfg.GRPCAddr()), slog.String("log_level", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, closeRegistry, err := openRegistry(ctx, log, cfg)
	if err != nil {
		log.Error("registry setup failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer closeRegistry()

	locker, closeLocker, err := openLocker(ctx, log, cfg)
	if err != nil {
		log.Error("lock setup failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
		os.Exit(1)
	}
	defer closeLocker()

	policy, err := availability.PolicyByName(cfg.TiePolicy)
	if err != nil {
		log.Error("tie-break policy invalid", slog.Any("err", err))
		os.Exit(1)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector("trainerslot", promReg)

	svc := booking.NewService(reg, locker, policy, booking.Config{
		LockTTL:              cfg.LockTTL,
		LockWait:             cfg.LockWait,
		LockPoll:             cfg.LockPoll,
		RetryAttempts:        cfg.RetryAttempts,
		RetryInitialInterval: cfg.RetryInitialInterval,
		RetryMaxInterval:     cfg.RetryMaxInterval,
	}, log, m)
	log.Info("booking coordinator ready", slog.String("tie_policy", svc.Policy().Name()))

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcTransport.DefaultRequestTimeout(cfg.GRPCRequestTimeout),
			grpcTransport.Metrics(m),
		),
	)
	grpcTransport.RegisterBookingServiceServer(grpcServer, grpcTransport.NewBookingServer(svc, log))

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		os.Exit(1)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(promReg))
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		log.Info("metrics server started", slog.String("metrics_addr", cfg.MetricsAddr))
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, grpcServer, metricsServer, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func openRegistry(ctx context.Context, log *slog.Logger, cfg config.Config) (store.Registry, func(), error) {
	if cfg.DatabaseURL == "" {
		if len(cfg.Trainers) == 0 {
			return nil, nil, errors.New("in-memory registry needs TRAINERSLOT_TRAINERS when no database url is set")
		}
		log.Info("using in-memory registry", slog.Int("trainers", len(cfg.Trainers)), slog.Int("rooms", len(cfg.Rooms)))
		return memory.NewRegistry(cfg.Trainers, cfg.DBLockTimeout, memory.WithRooms(cfg.Rooms...)), func() {}, nil
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return nil, nil, err
	}
	closeDB := func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}
	return postgres.NewRegistry(db, cfg.DBLockTimeout), closeDB, nil
}

func openLocker(ctx context.Context, log *slog.Logger, cfg config.Config) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		log.Info("using process-local day locks")
		return lock.NewLocalLock(), func() {}, nil
	}

	rl, err := lock.NewRedisLock(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using redis day locks", slog.String("redis_addr", cfg.RedisAddr))
	return rl, func() {
		if err := rl.Close(); err != nil {
			log.Warn("redis close failed", slog.Any("err", err))
		}
	}, nil
}

func shutdown(log *slog.Logger, s *grpc.Server, metricsServer *http.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}

	if metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		log.Warn("metrics server shutdown failed", slog.Any("err", err))
	}
}

func parseLogLevel(level string) slog.Level {
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

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}

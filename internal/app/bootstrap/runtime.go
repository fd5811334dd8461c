package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/gigforge/escrow-engine/internal/adapters/cache"
	eventadapter "github.com/gigforge/escrow-engine/internal/adapters/events"
	httpadapter "github.com/gigforge/escrow-engine/internal/adapters/http"
	"github.com/gigforge/escrow-engine/internal/adapters/memory"
	"github.com/gigforge/escrow-engine/internal/adapters/postgres"
	"github.com/gigforge/escrow-engine/internal/adapters/settlement"
	"github.com/gigforge/escrow-engine/internal/application"
	"github.com/gigforge/escrow-engine/internal/ports"
)

// Runtime holds the wired service and its servers. Unset external
// dependencies (database, redis, kafka) fall back to in-process adapters so
// the engine runs standalone in local and test environments.
type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping escrow engine", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	var (
		jobs        ports.JobRepository
		withdrawals ports.WithdrawalRepository
		idempotency ports.IdempotencyRepository
		outboxRepo  ports.OutboxRepository
		cleanup     = func(context.Context) {}
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		repos := postgres.NewRepositories(db)
		jobs, withdrawals, idempotency, outboxRepo = repos.Jobs, repos.Withdrawals, repos.Idempotency, repos.Outbox
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("gorm sql db: %w", err)
		}
		cleanup = func(context.Context) { _ = sqlDB.Close() }
	} else {
		logger.Warn("no database configured, using in-memory repositories")
		repos := memory.NewRepositories()
		jobs, withdrawals, idempotency, outboxRepo = repos.Jobs, repos.Withdrawals, repos.Idempotency, repos.Outbox
	}

	if cfg.RedisURL != "" {
		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		idempotency = cacheadapter.NewRedisIdempotencyStore(redisClient)
		prev := cleanup
		cleanup = func(c context.Context) { _ = redisClient.Close(); prev(c) }
	}

	var (
		domainEvents ports.DomainPublisher
		analytics    ports.AnalyticsPublisher
		dlq          ports.DLQPublisher
	)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.DLQTopic)
		if err != nil {
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		domainEvents, analytics, dlq = kafkaPub, kafkaPub, kafkaPub
		prev := cleanup
		cleanup = func(c context.Context) { _ = kafkaPub.Close(); prev(c) }
	} else {
		logger.Warn("no kafka brokers configured, using in-memory publishers")
		domainEvents = eventadapter.NewMemoryDomainPublisher()
		analytics = eventadapter.NewMemoryAnalyticsPublisher()
		dlq = eventadapter.NewLoggingDLQPublisher()
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:          cfg.ServiceID,
			IdempotencyTTL:       cfg.IdempotencyTTL,
			OutboxFlushBatchSize: cfg.OutboxFlushBatchSize,
		},
		Jobs:         jobs,
		Withdrawals:  withdrawals,
		Idempotency:  idempotency,
		Outbox:       outboxRepo,
		Settlement:   settlement.NewRailClient(cfg.SettlementRailURL),
		DomainEvents: domainEvents,
		Analytics:    analytics,
		DLQ:          dlq,
	})

	handler := httpadapter.NewHandler(svc)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		cleanup(ctx)
		return nil, fmt.Errorf("listen grpc: %w", err)
	}

	worker := eventadapter.NewOutboxWorker(logger, svc.FlushOutbox, cfg.OutboxFlushInterval)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     worker,
		cleanupFn:  cleanup,
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("grpc server listening", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		r.logger.Info("http server listening", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()
	go func() { _ = r.outbox.Run(ctx) }()

	select {
	case err := <-errCh:
		r.shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	r.shutdown(context.Background())
	return nil
}

func (r *Runtime) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
}

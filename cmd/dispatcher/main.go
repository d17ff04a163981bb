// cmd/dispatcher/main.go
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpc_api "taskchain-dispatcher/internal/api/grpc"
	http_api "taskchain-dispatcher/internal/api/http"
	"taskchain-dispatcher/internal/config"
	"taskchain-dispatcher/internal/domain"
	"taskchain-dispatcher/internal/infra/etcd"
	http_infra "taskchain-dispatcher/internal/infra/http"
	"taskchain-dispatcher/internal/infra/kafka"
	"taskchain-dispatcher/internal/infra/redis"
	"taskchain-dispatcher/internal/infra/shell"
	"taskchain-dispatcher/internal/metrics"
	"taskchain-dispatcher/internal/scheduler"
	"taskchain-dispatcher/internal/tracing"
	"taskchain-dispatcher/internal/usecase"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// 1. Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 3. Create root context for lifecycle management
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(cancel)

	tracerShutdown, err := tracing.InitTracer(rootCtx, cfg.Tracing.ServiceName, cfg.Tracing.Exporter, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}()

	nodeID := uuid.New().String()
	logger = logger.With("node_id", nodeID)
	logger.Info("starting taskchain dispatcher", "record_source", cfg.RecordSource, "push_transport", cfg.Push.Transport)

	// 4. Init etcd client
	etcdClient, err := etcd.NewClient(rootCtx, cfg.EtcdEndpoints, cfg.EtcdTimeout)
	if err != nil {
		log.Fatalf("Failed to create etcd client: %v", err)
	}
	defer etcdClient.Close()
	logger.Info("connected to etcd", "endpoints", cfg.EtcdEndpoints)

	keys := etcd.NewKeyspace(cfg.KeyPrefix)

	// 5. Storage adapters
	recordRepo := etcd.NewEtcdRecordRepository(etcdClient, keys, logger)
	dispatchLog := etcd.NewEtcdDispatchLog(etcdClient, keys, cfg.DispatchLogTTL, logger)
	locker := etcd.NewEtcdLocker(etcdClient, keys)
	nodeRegistry := etcd.NewEtcdNodeRegistry(etcdClient, keys, logger)

	var profiles domain.ProfileRepository = etcd.NewEtcdProfileRepository(etcdClient, keys, logger)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(rootCtx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		profiles = redis.NewRecipientCache(profiles, rdb, cfg.Redis.CacheTTL, logger)
		logger.Info("recipient cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	// 6. Push transport
	var sender domain.Sender
	switch cfg.Push.Transport {
	case config.PushTransportExec:
		sender = shell.NewExecPushSender(cfg.Push.Command, cfg.Push.Timeout, logger)
	default:
		sender = http_infra.NewHttpPushSender(cfg.Push.Endpoint, cfg.Push.AuthToken, cfg.Push.Timeout, logger)
	}

	// 7. Record source
	var source domain.RecordSource
	switch cfg.RecordSource {
	case config.RecordSourceKafka:
		source = kafka.NewRecordConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, logger)
	default:
		source = etcd.NewRecordObserver(etcdClient, keys, logger)
	}

	// 8. Use cases
	engine := usecase.NewDispatchEngine(profiles, cfg.DeliveryHints)
	dispatchService := usecase.NewDispatchService(engine, sender, recordRepo, logger,
		usecase.WithRecordRefresh(recordRepo),
		usecase.WithLocker(locker),
		usecase.WithDispatchLog(dispatchLog),
	)
	recordService := usecase.NewRecordService(recordRepo, profiles, dispatchLog, dispatchService, logger)
	auditService := usecase.NewAuditService(recordRepo, logger)

	healthServer := grpc_api.NewHealthServer(logger)
	leaderGauge := metrics.IsLeader.WithLabelValues(nodeID)
	onLeaderChange := func(leader bool) {
		if leader {
			leaderGauge.Set(1)
		} else {
			leaderGauge.Set(0)
		}
		healthServer.SetLeader(leader)
	}

	leaderManager := etcd.NewEtcdLeaderElectionManager(etcdClient, keys, nodeID, cfg.LeaderElectionTTL, logger)
	leaderService := usecase.NewLeaderService(
		leaderManager,
		source,
		dispatchService.HandleEvent,
		scheduler.NewCronScheduler(logger),
		[]domain.PeriodicJob{auditService.Job(cfg.AuditSchedule)},
		nodeID,
		onLeaderChange,
		logger,
	)

	if err := nodeRegistry.Register(rootCtx, nodeID, cfg.GrpcListenAddr, cfg.LeaderElectionTTL); err != nil {
		log.Fatalf("Failed to register node: %v", err)
	}

	// 9. Register routes and metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	http_api.NewRecordHandler(recordService, leaderManager, nodeRegistry, logger).RegisterRoutes(mux)

	// 10. Start leader campaign
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		if err := leaderService.Start(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("leader service stopped with error", "error", err)
			cancel()
		}
	}()

	// 11. Start HTTP API server
	server := &http.Server{
		Addr:              cfg.HttpListenAddr,
		Handler:           otelhttp.NewHandler(mux, "taskchain-admin"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting HTTP API server", "addr", cfg.HttpListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 12. Start gRPC health server
	lis, err := net.Listen("tcp", cfg.GrpcListenAddr)
	if err != nil {
		log.Fatalf("Failed to listen for gRPC: %v", err)
	}
	go func() {
		if err := healthServer.Serve(lis); err != nil {
			log.Fatalf("gRPC server failed: %v", err)
		}
	}()

	// 13. Block until shutdown
	<-rootCtx.Done()
	logger.Info("shutting down dispatcher gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	<-leaderDone
	if err := nodeRegistry.Deregister(shutdownCtx); err != nil {
		logger.Warn("failed to deregister node", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	healthServer.GracefulStop()

	logger.Info("dispatcher shut down")
}

func setupGracefulShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()
	}()
}

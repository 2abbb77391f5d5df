package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/ticket-booking/internal/adapter/handler"
	"github.com/rl1809/ticket-booking/internal/adapter/handler/bookingpb"
	"github.com/rl1809/ticket-booking/internal/adapter/messaging"
	"github.com/rl1809/ticket-booking/internal/adapter/storage"
	"github.com/rl1809/ticket-booking/internal/config"
	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/core/service"
	"github.com/rl1809/ticket-booking/internal/logging"
	"github.com/rl1809/ticket-booking/internal/metrics"
	"github.com/rl1809/ticket-booking/internal/port"
	"github.com/rl1809/ticket-booking/internal/tracing"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := logging.New(cfg.ServiceName, cfg.Log.Level, cfg.Log.Pretty)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.JaegerEndpoint, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("tracing flush failed")
		}
	}()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mysql: %w", err)
	}
	if cfg.MySQL.Migrate {
		if err := storage.Migrate(ctx, db); err != nil {
			return err
		}
	}
	log.Info().Msg("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	log.Info().Msg("connected to redis")

	// Initialize adapters
	inventory := storage.NewRedisAdapter(rdb)
	ledger := storage.NewMySQLAdapter(db)
	accounts, err := storage.NewAccountRepository(db)
	if err != nil {
		return err
	}

	if err := seedResources(ctx, inventory, cfg.Resources, log); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	deps := service.Dependencies{
		Accounts:  accounts,
		Inventory: inventory,
		Ledger:    ledger,
		Metrics:   m,
		Logger:    log,
	}

	var source *messaging.KafkaIncidentSource
	if len(cfg.Kafka.Brokers) > 0 {
		escalator := messaging.NewKafkaEscalator(cfg.Kafka.Brokers, cfg.Kafka.IncidentTopic)
		defer escalator.Close()
		deps.Escalator = escalator

		source = messaging.NewKafkaIncidentSource(cfg.Kafka.Brokers, cfg.Kafka.IncidentTopic, cfg.Kafka.ConsumerGroup)
		defer source.Close()
	} else {
		log.Warn().Msg("no kafka brokers: stuck compensations are only logged")
	}

	saga := service.NewBookingSaga(deps, service.SagaConfig{
		LedgerTimeout:   cfg.Saga.LedgerTimeout,
		ReleaseTimeout:  cfg.Saga.ReleaseTimeout,
		ReleaseAttempts: cfg.Saga.ReleaseAttempts,
		ReleaseBackoff:  cfg.Saga.ReleaseBackoff,
		EscalateTimeout: cfg.Saga.EscalateTimeout,
	})
	query := service.NewBookingQuery(accounts, ledger)

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLogger(log)))
	bookingpb.RegisterBookingServiceServer(grpcServer, handler.NewGRPCHandler(saga, query))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(saga, query, inventory).Routes(log, reg),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC server listening")
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if source != nil {
		reconciler := service.NewReconciler(source, inventory, m, log, service.ReconcilerConfig{
			InitialBackoff: cfg.Reconciler.Backoff,
			MaxBackoff:     cfg.Reconciler.MaxBackoff,
			ReleaseTimeout: cfg.Reconciler.ReleaseTimeout,
		})
		g.Go(func() error { return reconciler.Run(gctx) })
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown")
		}
		log.Info().Msg("HTTP server stopped")

		grpcServer.GracefulStop()
		log.Info().Msg("gRPC server stopped")
		return nil
	})

	return g.Wait()
}

func seedResources(ctx context.Context, admin port.InventoryAdmin, seeds []config.ResourceSeed, log zerolog.Logger) error {
	for _, seed := range seeds {
		created, err := admin.Provision(ctx, domain.Resource{
			ID:             seed.ID,
			DisplayName:    seed.DisplayName,
			TotalUnits:     seed.Units,
			AvailableUnits: seed.Units,
			Active:         true,
		})
		if err != nil {
			return fmt.Errorf("provision %s: %w", seed.ID, err)
		}
		log.Info().Str("resource_id", seed.ID).Int("units", seed.Units).Bool("created", created).Msg("resource provisioned")
	}
	return nil
}

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

	"golang.org/x/sync/errgroup"

	"vaulttrail/internal/activity"
	"vaulttrail/internal/activity/metrics"
	"vaulttrail/internal/activity/mirror"
	"vaulttrail/internal/handler"
	"vaulttrail/internal/platform/config"
	"vaulttrail/internal/platform/httpserver"
	"vaulttrail/internal/platform/logger"
	"vaulttrail/internal/storage"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal/activity packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, closeKV, err := newKV(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init store backend: %w", err)
	}
	if closeKV != nil {
		defer closeKV()
	}

	storeOpts := []activity.BlobStoreOption{activity.WithStoreLogger(log)}
	if cfg.MaxLogs > 0 {
		storeOpts = append(storeOpts, activity.WithMaxLogs(cfg.MaxLogs))
	}
	store, err := activity.NewBlobStore(kv, storeOpts...)
	if err != nil {
		return err
	}

	m := metrics.New()

	serviceOpts := []activity.Option{
		activity.WithLogger(log),
		activity.WithMetrics(m),
	}
	kafkaMirror, err := mirror.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		return fmt.Errorf("init activity mirror: %w", err)
	}
	if kafkaMirror != nil {
		defer kafkaMirror.Close()
		serviceOpts = append(serviceOpts, activity.WithSink(kafkaMirror))
	}

	service, err := activity.New(store, serviceOpts...)
	if err != nil {
		return err
	}
	query := activity.NewQuery(store)
	aggregator := activity.NewAggregator(store)
	exporter, err := activity.NewExporter(store, service,
		activity.WithExporterLogger(log),
		activity.WithExporterMetrics(m),
	)
	if err != nil {
		return err
	}

	h := handler.New(service, query, aggregator, exporter, log)
	srv := httpserver.New(cfg.Addr, handler.NewRouter(h))

	log.Info("starting vaulttrail", "addr", cfg.Addr, "store", cfg.StoreBackend)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newKV selects the durable backend holding the activity collection.
func newKV(ctx context.Context, cfg config.Server) (storage.KV, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return storage.NewInMemoryKV(), nil, nil
	case config.BackendFile:
		kv, err := storage.NewFileKV(cfg.DataDir)
		return kv, nil, err
	case config.BackendRedis:
		kv, err := storage.NewRedisKV(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() { _ = kv.Close() }, nil
	case config.BackendPostgres:
		kv, err := storage.NewPostgresKV(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return kv, kv.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Command server runs the key-value server: a sharded TTL cache behind a
// RESP TCP front end, with optional Prometheus metrics.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweepkv/sweepkv/cache"
	"github.com/sweepkv/sweepkv/internal/server"
	"github.com/sweepkv/sweepkv/internal/util"
	"github.com/sweepkv/sweepkv/metrics/prom"
)

func main() {
	var (
		addr        = flag.String("addr", ":6379", "TCP listen address")
		shards      = flag.Int("shards", 0, "number of cache shards (0 = auto)")
		sweep       = flag.Duration("sweep", cache.DefaultSweepInterval, "sweep interval per shard")
		metricsAddr = flag.String("metrics", ":9100", "Prometheus /metrics address (empty = disabled)")
		debug       = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logger := newLogger(*debug)
	defer func() { _ = logger.Sync() }()

	shardCount := *shards
	if shardCount <= 0 {
		shardCount = util.ReasonableShardCount()
	}

	c, err := cache.New(cache.Options{
		Shards:        shardCount,
		SweepInterval: *sweep,
		Metrics:       prom.New(nil, "sweepkv", "cache", nil),
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("cache construction failed", zap.Error(err))
	}
	defer func() { _ = c.Close() }()

	logger.Info("cache ready",
		zap.Int("shards", shardCount),
		zap.Duration("sweep_interval", *sweep),
	)

	srv := server.New(server.Config{Addr: *addr}, c, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)

	var metricsSrv *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: *metricsAddr, Handler: mux}
		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", *metricsAddr))
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return srv.Close()
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("bye")
}

func newLogger(debug bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

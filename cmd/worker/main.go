package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ayoubray/tdrassist/internal/bootstrap"
	"github.com/ayoubray/tdrassist/internal/config"
	"github.com/ayoubray/tdrassist/internal/observability/logging"
	"github.com/ayoubray/tdrassist/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux(workerMetrics),
	}
	go func() {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("worker subscribed", "subject", cfg.NATSExtractSubject)
		return app.Queue.SubscribeExtractRequested(groupCtx, func(handlerCtx context.Context, documentID string) error {
			stageCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
			defer cancel()

			workerMetrics.StartStage()
			start := time.Now()
			err := app.ProcessUC.ProcessByID(stageCtx, documentID)
			workerMetrics.FinishStage("worker", metrics.StageProcess, time.Since(start), err)
			return err
		})
	})

	group.Go(func() error {
		logger.Info("worker subscribed", "subject", cfg.NATSIndexSubject)
		return app.Queue.SubscribeIndexRequested(groupCtx, func(handlerCtx context.Context, documentID string) error {
			stageCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
			defer cancel()

			workerMetrics.StartStage()
			start := time.Now()
			stats, err := app.IndexUC.IndexByID(stageCtx, documentID)
			workerMetrics.FinishStage("worker", metrics.StageIndex, time.Since(start), err)
			if stats != nil {
				workerMetrics.ObserveChunksIndexed("worker", stats.PointsUpserted)
			}
			return err
		})
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func metricsMux(workerMetrics *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

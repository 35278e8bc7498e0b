package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	grpcapi "ai-speech-coach-service/internal/api/grpc"
	"ai-speech-coach-service/internal/app"
	"ai-speech-coach-service/internal/config"
	"ai-speech-coach-service/internal/events"
	apihttp "ai-speech-coach-service/internal/http"
	"ai-speech-coach-service/internal/observability"
	"ai-speech-coach-service/internal/observability/metrics"
	"ai-speech-coach-service/internal/service/stt"
	"ai-speech-coach-service/internal/service/stt/google"
	"ai-speech-coach-service/internal/service/stt/mock"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	app.SetupLogging(cfg)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Service exited with error")
	}
}

func recognizerFactory(cfg config.STTConfig) (stt.Factory, error) {
	switch cfg.Provider {
	case "mock":
		return func(ctx context.Context) (stt.Recognizer, error) { return mock.New(), nil }, nil
	case "google":
		return google.NewFactory(google.Config{
			LanguageCode:   cfg.LanguageCode,
			SampleRateHz:   int32(cfg.SampleRateHz),
			InterimResults: cfg.InterimResults,
			AudioEncoding:  cfg.AudioEncoding,
		}), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.Provider)
	}
}

func run(cfg *config.Config) error {
	factory, err := recognizerFactory(cfg.STT)
	if err != nil {
		return err
	}

	// Kafka publisher with separate topics for live feedback and summaries
	publisher := events.New(&events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicFeedback: cfg.Kafka.TopicFeedback,
		TopicSummary:  cfg.Kafka.TopicSummary,
		Principal:     cfg.Kafka.Principal,
	})
	defer publisher.Close()

	hub := apihttp.NewHub()
	application := app.New(cfg, app.Dependencies{
		Recognizers: factory,
		Publisher:   publisher,
		Sink:        hub,
		Metrics:     metrics.DefaultMetrics,
	})
	if err := application.Start(); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	grpcServer := grpcapi.New(metrics.DefaultMetrics)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           apihttp.NewRouter(application, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}
	obsServer := observability.NewServer(cfg.Service.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	g.Go(func() error { return hub.Run(hubCtx) })
	g.Go(func() error { return application.WatchLexicon(gctx) })
	g.Go(func() error { return grpcServer.Serve(lis) })
	g.Go(obsServer.ListenAndServe)
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("Starting HTTP API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	grpcServer.SetServing(true)
	obsServer.SetReady(true)
	log.Info().
		Str("grpcPort", cfg.Service.GRPCPort).
		Str("httpPort", cfg.Service.HTTPPort).
		Str("metricsAddr", cfg.Service.MetricsAddr).
		Str("sttProvider", cfg.STT.Provider).
		Bool("kafka", publisher.Enabled()).
		Msg("AI Speech Coach service started")

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.SetServing(false)
		obsServer.SetReady(false)

		// Sessions stop first so their summaries still reach the hub and Kafka.
		application.Shutdown(shutdownCtx)
		stopHub()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP API server shutdown")
		}
		if err := obsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Observability server shutdown")
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("AI Speech Coach service stopped")
	return nil
}

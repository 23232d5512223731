package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohamedkhairy/trade-breakout/internal/api"
	"github.com/mohamedkhairy/trade-breakout/internal/bars"
	"github.com/mohamedkhairy/trade-breakout/internal/chart"
	"github.com/mohamedkhairy/trade-breakout/internal/config"
	"github.com/mohamedkhairy/trade-breakout/internal/data"
	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/internal/notify"
	"github.com/mohamedkhairy/trade-breakout/internal/pubsub"
	"github.com/mohamedkhairy/trade-breakout/internal/signal"
	"github.com/mohamedkhairy/trade-breakout/internal/storage"
	"github.com/mohamedkhairy/trade-breakout/internal/wsgateway"
	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

// streamHandler adapts the service to the stream consumer
type streamHandler struct {
	ctx     context.Context
	service *signal.Service
}

func (h streamHandler) ProcessTick(tick *models.Tick) error {
	return h.service.ProcessTick(h.ctx, tick)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	svcCfg := signal.ConfigFrom(cfg)
	logger.Info("Starting breakout service",
		logger.Symbol(svcCfg.Symbol),
		logger.String("chart_timeframe", svcCfg.Chart.Label()),
		logger.String("timeframe", svcCfg.Coarse.Label()),
		logger.Int("period", svcCfg.Engine.Period),
		logger.String("price", svcCfg.Engine.Price.String()),
		logger.String("trigger", svcCfg.Engine.Trigger.String()),
		logger.String("tick_source", cfg.Market.TickSource),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := pubsub.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to initialize Redis client", logger.ErrorField(err))
	}
	defer redisClient.Close()

	history, writer, err := storage.NewHistoryStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open history store",
			logger.String("backend", cfg.History.Backend),
			logger.ErrorField(err),
		)
	}
	defer history.Close()

	hub := wsgateway.NewHub(cfg.WSGateway)
	if err := hub.Start(); err != nil {
		logger.Fatal("Failed to start WebSocket hub", logger.ErrorField(err))
	}
	defer hub.Stop()

	annotator := chart.NewAnnotator(cfg.Arrows, svcCfg.Coarse, hub)
	var notifier signal.Notifier
	if cfg.Alerts.Enabled {
		notifier = notify.FromConfig(redisClient, cfg.Alerts)
	}

	service, err := signal.NewService(svcCfg, notifier, annotator)
	if err != nil {
		logger.Fatal("Failed to create breakout service", logger.ErrorField(err))
	}
	service.SetBroadcaster(hub)

	recorder := bars.NewRecorder(redisClient, writer, svcCfg.Chart, bars.DefaultRecorderConfig())
	if err := recorder.Start(); err != nil {
		logger.Fatal("Failed to start bar recorder", logger.ErrorField(err))
	}
	defer recorder.Stop()
	service.SetRecorder(recorder)

	warmCtx, warmCancel := context.WithTimeout(ctx, cfg.History.Timeout)
	if err := service.Warmup(warmCtx, history); err != nil {
		logger.Error("Warm-up failed, starting from live data only", logger.ErrorField(err))
	}
	warmCancel()

	stopTicks, err := startTicks(ctx, cfg, redisClient, service)
	if err != nil {
		logger.Fatal("Failed to start tick source", logger.ErrorField(err))
	}
	defer stopTicks()

	router := mux.NewRouter()
	handler := api.NewHandler(service, annotator)
	handler.RegisterRoutes(router)
	router.Handle("/ws", wsgateway.NewHandler(hub, wsgateway.NewAuthManager(cfg.WSGateway.JWTSecret)))
	router.Use(
		mux.MiddlewareFunc(api.ErrorHandlingMiddleware()),
		mux.MiddlewareFunc(api.RequestIDMiddleware()),
		mux.MiddlewareFunc(api.LoggingMiddleware()),
		mux.MiddlewareFunc(api.CORSMiddleware()),
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.Port),
		Handler: router,
	}
	go func() {
		logger.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", logger.ErrorField(err))
		}
	}()

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", handler.Health)
	healthMux.HandleFunc("/ready", handler.Ready)
	healthMux.HandleFunc("/stats", hub.ServeStats)
	healthMux.Handle("/metrics", promhttp.Handler())
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.HealthCheckPort),
		Handler: healthMux,
	}
	go func() {
		logger.Info("Starting health check server", logger.String("addr", healthServer.Addr))
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health check server error", logger.ErrorField(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down breakout service")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", logger.ErrorField(err))
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", logger.ErrorField(err))
	}

	st := service.Status()
	logger.Info("Breakout service stopped",
		logger.Int("bars", st.Bars),
		logger.String("last_signal", st.State.Last.String()),
	)
}

// startTicks feeds the service from the configured tick source and returns
// a function that stops it.
func startTicks(ctx context.Context, cfg *config.Config, redis storage.RedisClient, service *signal.Service) (func(), error) {
	switch cfg.Market.TickSource {
	case "redis":
		consumer := pubsub.NewTickConsumer(redis, streamHandler{ctx: ctx, service: service},
			pubsub.DefaultTickConsumerConfig(cfg.Market.TickStream, cfg.Market.TickGroup, cfg.Market.Symbol))
		if err := consumer.Start(ctx); err != nil {
			return nil, err
		}
		return func() {
			consumer.Stop()
			stats := consumer.GetStats()
			logger.Info("Tick consumer stopped",
				logger.Int64("processed", stats.MessagesProcessed),
				logger.Int64("skipped", stats.MessagesSkipped),
				logger.Int64("failed", stats.MessagesFailed),
			)
		}, nil
	default:
		provider, err := data.NewProviderFactory().CreateProvider(cfg.Market.TickSource, data.ProviderConfig{
			Interval:  cfg.Market.MockInterval,
			BasePrice: cfg.Market.MockPrice,
		})
		if err != nil {
			return nil, err
		}
		if err := provider.Connect(ctx); err != nil {
			return nil, err
		}
		ticks, err := provider.Subscribe(ctx, cfg.Market.Symbol)
		if err != nil {
			provider.Close()
			return nil, err
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			for tick := range ticks {
				if err := service.ProcessTick(ctx, tick); err != nil {
					logger.Debug("Tick rejected", logger.ErrorField(err))
				}
			}
		}()
		logger.Info("Tick provider started", logger.String("provider", provider.GetName()))
		return func() {
			provider.Close()
			<-done
		}, nil
	}
}

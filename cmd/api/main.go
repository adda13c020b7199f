package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IANDYI/vitals-service/internal/adapters/handler"
	"github.com/IANDYI/vitals-service/internal/adapters/middleware"
	"github.com/IANDYI/vitals-service/internal/adapters/repository"
	"github.com/IANDYI/vitals-service/internal/adapters/websocket"
	"github.com/IANDYI/vitals-service/internal/config"
	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	"github.com/IANDYI/vitals-service/internal/core/services"
	"github.com/IANDYI/vitals-service/internal/core/triage"
	"go.uber.org/zap"
)

// store is what both datastore implementations provide
type store interface {
	ports.ReadingRepository
	ports.AlertRepository
	handler.Pinger
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Select the datastore: PostgreSQL when configured, otherwise in-memory
	var repo store
	if cfg.DatabaseURL != "" {
		db, err := config.ConnectDatabase(cfg.DatabaseURL, cfg.DBMaxRetries, 2*time.Second, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := config.InitDatabase(ctx, db, logger); err != nil {
			logger.Fatal("failed to initialize database schema", zap.Error(err))
		}

		breaker := repository.DefaultBreakerSettings()
		breaker.MaxRequests = cfg.CircuitBreakerMaxRequests
		breaker.Interval = cfg.CircuitBreakerInterval
		breaker.Timeout = cfg.CircuitBreakerTimeout
		repo = repository.NewSQLRepository(db, breaker, logger)
	} else {
		logger.Warn("DB_CONNECTION_STRING not set, using in-memory store")
		repo = repository.NewMemoryRepository()
	}

	// WebSocket hub for real-time subject channels
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	// Notifiers. With Redis, every replica's hub is fed through the relay, so
	// the local hub is not published to directly.
	var notifiers []ports.Notifier
	if cfg.RedisAddr != "" {
		redisClient, err := repository.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()

		notifiers = append(notifiers, repository.NewRedisNotifier(redisClient, logger))

		relay := websocket.NewRedisRelay(redisClient, hub, repository.SubjectChannelPrefix+"*", logger)
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("redis relay stopped", zap.Error(err))
			}
		}()
	} else {
		notifiers = append(notifiers, hub)
	}

	if cfg.RabbitMQURL != "" {
		rabbitMQPublisher, err := repository.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.AlertsQueueName, logger)
		if err != nil {
			logger.Fatal("failed to initialize RabbitMQ publisher", zap.Error(err))
		}
		defer rabbitMQPublisher.Close()
		notifiers = append(notifiers, rabbitMQPublisher)
	}
	notifier := repository.NewFanoutNotifier(notifiers...)
	logger.Info("notifiers configured", zap.Int("count", notifier.Len()))

	// Initialize services
	vitalsService := services.NewVitalsService(repo, repo, notifier, triage.DefaultPolicy(), cfg.IntakeTimeout, logger)
	alertService := services.NewAlertService(repo, notifier, logger)

	// Device ingestion
	repository.RegisterIngestMetrics()

	if cfg.RabbitMQURL != "" {
		readingConsumer, err := repository.NewReadingConsumer(cfg.RabbitMQURL, cfg.ReadingsQueueName, vitalsService, logger)
		if err != nil {
			logger.Fatal("failed to initialize RabbitMQ reading consumer", zap.Error(err))
		}
		defer readingConsumer.Close()

		// With several replicas RabbitMQ distributes readings across their consumers
		if err := readingConsumer.StartConsuming(ctx); err != nil {
			logger.Error("reading consumer failed to start", zap.Error(err))
		}
	}

	if cfg.MQTTBrokerURL != "" {
		mqttIngest, err := repository.NewMQTTIngest(repository.MQTTConfig{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Topic:     cfg.MQTTTopic,
			QoS:       1,
		}, vitalsService, logger)
		if err != nil {
			logger.Fatal("failed to initialize MQTT ingest", zap.Error(err))
		}
		if err := mqttIngest.Start(ctx); err != nil {
			logger.Error("MQTT ingest failed to start", zap.Error(err))
		}
		defer mqttIngest.Close()
	}

	// Initialize handlers
	vitalsHandler := handler.NewVitalsHandler(vitalsService, logger)
	alertHandler := handler.NewAlertHandler(alertService, logger)
	healthHandler := handler.NewHealthHandler(repo, logger)

	// Initialize JWT middleware and the per-subject intake limiter
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTPublicKey, logger)
	defer authMiddleware.Stop()
	limiter := middleware.NewRateLimiterStore(cfg.IntakeRatePerMinute, cfg.IntakeBurst, logger)
	defer limiter.Stop()

	wsHandler := handler.NewWebSocketHandler(hub, authMiddleware, logger)

	// Setup HTTP router
	mux := http.NewServeMux()

	// Health endpoints (OpenShift compatible, no auth required)
	mux.HandleFunc("GET /metrics", handler.Metrics)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /health/ready", healthHandler.Ready)
	mux.HandleFunc("GET /health/live", healthHandler.Live)

	// Intake - PATIENT only, rate limited per subject
	mux.HandleFunc("POST /vitals", authMiddleware.RequireRole(domain.RolePatient, limiter.Limit(vitalsHandler.RecordReading)))
	mux.HandleFunc("POST /vitals/kicks", authMiddleware.RequireRole(domain.RolePatient, limiter.Limit(vitalsHandler.RecordKicks)))
	mux.HandleFunc("POST /vitals/contractions", authMiddleware.RequireRole(domain.RolePatient, limiter.Limit(vitalsHandler.RecordContraction)))

	// Reads - PATIENT: own subject, DOCTOR: any subject
	mux.HandleFunc("GET /vitals", authMiddleware.RequireAuth(vitalsHandler.ListReadings))
	mux.HandleFunc("GET /vitals/summary", authMiddleware.RequireAuth(vitalsHandler.GetSummary))

	// Alerts
	mux.HandleFunc("GET /alerts", authMiddleware.RequireAuth(alertHandler.ListAlerts))
	mux.HandleFunc("POST /alerts", authMiddleware.RequireRole(domain.RoleDoctor, alertHandler.CreateAlert))
	mux.HandleFunc("PATCH /alerts/{alert_id}/acknowledge", authMiddleware.RequireAuth(alertHandler.AcknowledgeAlert))

	// WebSocket authenticates itself so browsers can pass ?token=
	mux.HandleFunc("GET /ws", wsHandler.HandleWebSocket)

	// Wrap mux with metrics middleware to track all HTTP requests
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      middleware.MetricsMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting vitals service", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Stop consumers, relay and hub before draining HTTP
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

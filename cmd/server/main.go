package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"chatstream/internal/auth"
	"chatstream/internal/blobstore"
	"chatstream/internal/capabilities"
	"chatstream/internal/config"
	"chatstream/internal/crypto"
	chatSvc "chatstream/internal/domain/services/chat"
	"chatstream/internal/handler"
	"chatstream/internal/handler/sse"
	"chatstream/internal/middleware"
	"chatstream/internal/observability"
	"chatstream/internal/repository/postgres"
	postgresChat "chatstream/internal/repository/postgres/chat"
	serviceChat "chatstream/internal/service/chat"
	"chatstream/internal/service/jobs"
	serviceLLM "chatstream/internal/service/llm"
	"chatstream/internal/service/llm/streaming"
	"chatstream/internal/service/notify"
)

// Secrets used when the environment leaves them unset in dev/test only
const (
	devVaultSecret   = "chatstream-dev-vault-secret"
	devSigningSecret = "chatstream-dev-signing-secret"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := config.NewLogger(os.Stdout, cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing is a no-op unless an OTLP endpoint is configured
	telemetry, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.OTelEndpoint,
		Headers:     cfg.OTelHeaders,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	if telemetry != nil {
		logger.Info("tracing enabled", "endpoint", cfg.OTelEndpoint)
	}
	metrics := observability.NewMetrics()

	// Database
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if err := postgres.EnsureSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	logger.Info("database connected", "max_conns", pool.Config().MaxConns)

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	conversationRepo := postgresChat.NewConversationRepository(repoConfig)
	messageRepo := postgresChat.NewMessageRepository(repoConfig)
	attachmentRepo := postgresChat.NewAttachmentRepository(repoConfig)
	summaryRepo := postgresChat.NewSummaryRepository(repoConfig)
	apiKeyRepo := postgresChat.NewAPIKeyRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Replies left streaming by a crashed process or a failed finalize will never finish
	sweeper := streaming.NewAbandonedSweeper(messageRepo, config.AbandonedTurnAge, logger)
	if _, err := sweeper.Sweep(ctx); err != nil {
		log.Fatalf("Failed to seal abandoned messages: %v", err)
	}
	go sweeper.Run(ctx, config.AbandonedSweepInterval)

	// Job queue and change notifications: Redis when configured, else in-process
	var (
		queue    jobs.Queue
		notifier chatSvc.ChangeNotifier
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}

		consumer, _ := os.Hostname()
		redisQueue, err := jobs.NewRedisQueue(ctx, redisClient, jobs.DefaultRedisQueueConfig(consumer), logger)
		if err != nil {
			log.Fatalf("Failed to create job queue: %v", err)
		}
		queue = redisQueue
		notifier = notify.NewRedisNotifier(redisClient, cfg.TablePrefix+"conversation:", logger)
		logger.Info("redis connected", "consumer", consumer)
	} else {
		queue = jobs.NewMemoryQueue(256, time.Second, logger)
		notifier = notify.NewMemoryNotifier()
		logger.Warn("REDIS_URL not set - jobs and live updates stay in this process")
	}
	defer queue.Close()
	scheduler := jobs.NewScheduler(queue)

	vault, err := crypto.NewVault(devSecret(cfg, "VAULT_SECRET", cfg.VaultSecret, devVaultSecret, logger))
	if err != nil {
		log.Fatalf("Failed to create key vault: %v", err)
	}

	signer, err := blobstore.NewSigner(devSecret(cfg, "SIGNING_SECRET", cfg.SigningSecret, devSigningSecret, logger))
	if err != nil {
		log.Fatalf("Failed to create blob signer: %v", err)
	}
	blobs, err := blobstore.NewLocalStore(cfg.BlobDir, cfg.PublicBaseURL, signer, logger)
	if err != nil {
		log.Fatalf("Failed to create blob store: %v", err)
	}

	models, err := capabilities.NewRegistry(cfg.IsDev())
	if err != nil {
		log.Fatalf("Failed to initialize model registry: %v", err)
	}

	// Services
	conversationService := serviceChat.NewConversationService(conversationRepo, messageRepo, txManager, logger)
	summaryService := serviceChat.NewSummaryService(summaryRepo, conversationRepo, messageRepo)
	attachmentService := serviceChat.NewAttachmentService(attachmentRepo, conversationRepo, blobs, logger)
	apiKeyService := serviceChat.NewAPIKeyService(apiKeyRepo, vault, logger)

	llmServices := serviceLLM.SetupServices(cfg, serviceLLM.ServiceDeps{
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Attachments:   attachmentRepo,
		Blobs:         blobs,
		APIKeys:       apiKeyService,
		Notifier:      notifier,
		Jobs:          scheduler,
		TxManager:     txManager,
		Models:        models,
		Metrics:       metrics,
	}, logger)

	// Background jobs
	worker := jobs.NewWorker(queue, metrics, jobs.WorkerConfig{}, logger)
	worker.Register(chatSvc.JobKindTitle, jobs.NewTitleHandler(
		llmServices.Providers,
		conversationService,
		summaryService,
		cfg.HostGoogleAPIKey,
		logger,
	))
	worker.Register(chatSvc.JobKindTokenCount, jobs.NewTokenCountHandler(attachmentService))
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("job worker stopped", "error", err)
		}
	}()

	// Bearer tokens are optional; without Supabase every caller is a guest
	var verifier auth.JWTVerifier
	if cfg.SupabaseJWKSURL != "" {
		jwtVerifier, err := auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwtVerifier.Close()
		verifier = jwtVerifier
	} else {
		logger.Warn("SUPABASE_URL not set - bearer tokens will be rejected")
	}

	// Handlers
	healthHandler := handler.NewHealthHandler(pool)
	modelsHandler := handler.NewModelsHandler(models)
	conversationHandler := handler.NewConversationHandler(conversationService, summaryService, attachmentService, logger)
	messageHandler := handler.NewMessageHandler(llmServices.Messages, summaryService, logger)
	liveHandler := handler.NewLiveHandler(llmServices.Messages, notifier, sse.DefaultKeepAliveInterval, logger)
	attachmentHandler := handler.NewAttachmentHandler(attachmentService, logger)
	blobHandler := handler.NewBlobHandler(blobs, logger)
	apiKeyHandler := handler.NewAPIKeyHandler(apiKeyService, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/models", modelsHandler.ListModels)

	// Conversation routes
	mux.HandleFunc("POST /api/conversations", conversationHandler.CreateConversation)
	mux.HandleFunc("GET /api/conversations", conversationHandler.ListConversations)
	mux.HandleFunc("GET /api/conversations/with-last-message", conversationHandler.ListWithLastMessage)
	mux.HandleFunc("GET /api/conversations/by-uuid/{uuid}", conversationHandler.GetByUUID)
	mux.HandleFunc("GET /api/conversations/{id}", conversationHandler.GetConversation)
	mux.HandleFunc("PATCH /api/conversations/{id}", conversationHandler.UpdateConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", conversationHandler.DeleteConversation)
	mux.HandleFunc("POST /api/conversations/{id}/branch", conversationHandler.BranchConversation)
	mux.HandleFunc("POST /api/conversations/{id}/public", conversationHandler.TogglePublic)
	mux.HandleFunc("GET /api/conversations/{id}/summaries", conversationHandler.ListSummaries)
	mux.HandleFunc("GET /api/conversations/{id}/attachments", conversationHandler.ListAttachments)
	mux.HandleFunc("DELETE /api/guest-data", conversationHandler.ClearGuestData)

	// Message routes
	mux.HandleFunc("GET /api/conversations/{id}/messages", messageHandler.ListMessages)
	mux.HandleFunc("POST /api/conversations/{id}/messages", messageHandler.SendTurn)
	mux.HandleFunc("DELETE /api/conversations/{id}/messages", messageHandler.DeleteTrailing)
	mux.HandleFunc("GET /api/conversations/{id}/live", liveHandler.StreamConversation) // SSE
	mux.HandleFunc("POST /api/messages/{id}/cancel", messageHandler.CancelMessage)
	mux.HandleFunc("POST /api/messages/{id}/title", messageHandler.GenerateTitle)
	mux.HandleFunc("GET /api/messages/{id}/summary", messageHandler.GetSummary)

	// Attachment and blob routes
	mux.HandleFunc("POST /api/attachments/upload-url", attachmentHandler.GenerateUploadURL)
	mux.HandleFunc("POST /api/attachments", attachmentHandler.SaveAttachment)
	mux.HandleFunc("GET /api/attachments", attachmentHandler.ListAttachments)
	mux.HandleFunc("GET /api/attachments/{id}", attachmentHandler.GetAttachment)
	mux.HandleFunc("DELETE /api/attachments/{id}", attachmentHandler.DeleteAttachment)
	mux.HandleFunc("PUT /api/blobs/{storageId}", blobHandler.Upload)
	mux.HandleFunc("GET /api/blobs/{storageId}", blobHandler.Download)

	// Stored API keys
	mux.HandleFunc("GET /api/keys", apiKeyHandler.ListKeys)
	mux.HandleFunc("PUT /api/keys", apiKeyHandler.PutKey)
	mux.HandleFunc("DELETE /api/keys/{provider}", apiKeyHandler.DeleteKey)

	// Build middleware chain
	// Order: CORS → Recovery → Auth → Metrics → Routes
	// Metrics wraps the mux directly so the matched pattern is visible to it
	var h http.Handler = mux
	h = middleware.Metrics(metrics)(h)
	h = middleware.OptionalAuth(verifier, logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID", middleware.SessionHeader},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	worker.Stop()
	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}
	logger.Info("server stopped")
}

// devSecret returns value, or in dev/test a fixed fallback. Production refuses to start without it.
func devSecret(cfg *config.Config, name, value, fallback string, logger *slog.Logger) string {
	if value != "" {
		return value
	}
	if !cfg.IsDev() {
		log.Fatalf("%s is required outside dev", name)
	}
	logger.Warn(name + " not set - using an insecure development secret")
	return fallback
}

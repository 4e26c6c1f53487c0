package llm

import (
	"context"
	"log/slog"
	"time"

	mstream "github.com/haowjy/meridian-stream-go"

	"chatstream/internal/capabilities"
	"chatstream/internal/config"
	"chatstream/internal/domain/repositories"
	chatRepo "chatstream/internal/domain/repositories/chat"
	chatSvc "chatstream/internal/domain/services/chat"
	llmSvc "chatstream/internal/domain/services/llm"
	"chatstream/internal/observability"
	"chatstream/internal/service/llm/streaming"
	"chatstream/internal/service/llm/tools"
	"chatstream/internal/service/llm/tools/external"
)

// imageFetchTimeout bounds one history image download
const imageFetchTimeout = 30 * time.Second

// Services holds all LLM-related services
type Services struct {
	Messages     *streaming.Service
	Orchestrator *streaming.Orchestrator
	Providers    *ProviderFactory
	Streams      *mstream.Registry
}

// ServiceDeps are the repositories and infrastructure the LLM services need
type ServiceDeps struct {
	Conversations chatRepo.ConversationRepository
	Messages      chatRepo.MessageRepository
	Attachments   chatRepo.AttachmentRepository
	Blobs         chatSvc.BlobStore
	APIKeys       chatSvc.APIKeyService
	Notifier      chatSvc.ChangeNotifier
	Jobs          chatSvc.JobScheduler
	TxManager     repositories.TransactionManager
	Models        *capabilities.Registry
	Metrics       *observability.Metrics
}

// SetupServices initializes all LLM services with proper dependency injection
func SetupServices(cfg *config.Config, deps ServiceDeps, logger *slog.Logger) *Services {
	// Create mstream registry (live streams, cancellation, catchup)
	streamRegistry := mstream.NewRegistry()

	// Start cleanup goroutine for old streams
	go streamRegistry.StartCleanup(context.Background())

	providers := NewProviderFactory(cfg)

	// Tools are built per turn; a missing search key fails only turns that enable web search
	search, searchErr := external.NewTavilyClient(cfg.TavilyAPIKey)
	webSearch := func() (llmSvc.ToolSet, error) {
		if searchErr != nil {
			return nil, searchErr
		}
		return tools.NewTurnTools(tools.WithWebSearch(search)), nil
	}

	history := streaming.NewHistoryBuilder(
		streaming.NewHTTPImageFetcher(imageFetchTimeout),
		logger,
	)

	orchestrator := streaming.NewOrchestrator(streaming.OrchestratorConfig{
		Models:        deps.Models,
		Engines:       providers,
		Prompts:       streaming.NewSystemPromptComposer(deps.Models),
		Tools:         webSearch,
		History:       history,
		Messages:      deps.Messages,
		APIKeys:       deps.APIKeys,
		Notifier:      deps.Notifier,
		Jobs:          deps.Jobs,
		Registry:      streamRegistry,
		Metrics:       deps.Metrics,
		HostGoogleKey: cfg.HostGoogleAPIKey,
		Debug:         cfg.Debug,
		Logger:        logger,
	})

	messages := streaming.NewService(
		deps.Conversations,
		deps.Messages,
		deps.Attachments,
		deps.Blobs,
		deps.TxManager,
		orchestrator,
		deps.Jobs,
		logger,
	)

	if cfg.TavilyAPIKey == "" {
		logger.Warn("TAVILY_API_KEY not set - web search turns will fail")
	}
	if cfg.HostGoogleAPIKey == "" {
		logger.Warn("HOST_GOOGLE_API_KEY not set - guests need their own keys")
	}
	logger.Info("llm services initialized", "models", len(deps.Models.List()))

	return &Services{
		Messages:     messages,
		Orchestrator: orchestrator,
		Providers:    providers,
		Streams:      streamRegistry,
	}
}

package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	mstream "github.com/haowjy/meridian-stream-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chatstream/internal/capabilities"
	"chatstream/internal/config"
	"chatstream/internal/domain"
	models "chatstream/internal/domain/models/chat"
	chatRepo "chatstream/internal/domain/repositories/chat"
	chatSvc "chatstream/internal/domain/services/chat"
	llmSvc "chatstream/internal/domain/services/llm"
	"chatstream/internal/observability"
)

var tracer = otel.Tracer("chatstream/service/llm/streaming")

// errorPrefix starts every user-visible failure message
const errorPrefix = "Sorry, I ran into an error: "

const (
	// persistAttempts bounds claim and finalize writes that fail for reasons other than ownership
	persistAttempts     = 3
	defaultPersistDelay = 200 * time.Millisecond
)

// displayError pairs a Go error with the text shown in the failed reply
type displayError struct {
	display string
	err     error
}

func (e *displayError) Error() string { return e.err.Error() }
func (e *displayError) Unwrap() error { return e.err }

// userFacing returns the text a failed reply shows for err
func userFacing(err error) string {
	var de *displayError
	if errors.As(err, &de) {
		return de.display
	}
	return err.Error()
}

// ToolSetFactory builds the web search tool set for one turn.
// A missing tool credential is returned as an error and fails the turn.
type ToolSetFactory func() (llmSvc.ToolSet, error)

// TurnInput is everything a turn needs once its messages are persisted
type TurnInput struct {
	ConversationID     string
	AssistantMessageID string
	History            []models.Message // ascending; may end with the placeholder
	Model              string
	Provider           string // optional override of the registry default
	Credential         string // optional caller key for the selected provider
	UserID             string // empty for guests
	WebSearchEnabled   bool
	ThinkingEnabled    bool
	AttachmentIDs      []string
}

// turnState tracks the lifecycle of one turn
type turnState string

const (
	stateCreated    turnState = "created"
	stateStreaming  turnState = "streaming"
	stateFinalizing turnState = "finalizing"
	stateCompleted  turnState = "completed"
	stateFailed     turnState = "failed"
)

// Orchestrator starts and runs conversation turns
type Orchestrator struct {
	models        *capabilities.Registry
	engines       llmSvc.EngineFactory
	prompts       llmSvc.SystemPromptComposer
	tools         ToolSetFactory
	history       *HistoryBuilder
	messages      chatRepo.MessageRepository
	apiKeys       chatSvc.APIKeyService
	notifier      chatSvc.ChangeNotifier
	jobs          chatSvc.JobScheduler
	registry      *mstream.Registry
	metrics       *observability.Metrics
	hostGoogleKey string
	debug         bool
	logger        *slog.Logger
	now           func() time.Time
	persistDelay  time.Duration // base backoff between persistence attempts
}

// OrchestratorConfig groups the orchestrator's collaborators
type OrchestratorConfig struct {
	Models        *capabilities.Registry
	Engines       llmSvc.EngineFactory
	Prompts       llmSvc.SystemPromptComposer
	Tools         ToolSetFactory
	History       *HistoryBuilder
	Messages      chatRepo.MessageRepository
	APIKeys       chatSvc.APIKeyService // optional; nil disables stored keys
	Notifier      chatSvc.ChangeNotifier
	Jobs          chatSvc.JobScheduler
	Registry      *mstream.Registry
	Metrics       *observability.Metrics
	HostGoogleKey string
	Debug         bool
	Logger        *slog.Logger
}

// NewOrchestrator creates a new turn orchestrator
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		models:        cfg.Models,
		engines:       cfg.Engines,
		prompts:       cfg.Prompts,
		tools:         cfg.Tools,
		history:       cfg.History,
		messages:      cfg.Messages,
		apiKeys:       cfg.APIKeys,
		notifier:      cfg.Notifier,
		jobs:          cfg.Jobs,
		registry:      cfg.Registry,
		metrics:       cfg.Metrics,
		hostGoogleKey: cfg.HostGoogleKey,
		debug:         cfg.Debug,
		logger:        cfg.Logger,
		now:           time.Now,
		persistDelay:  defaultPersistDelay,
	}
}

// Start registers a live stream for the assistant message and begins the turn.
// The stream is registered before it starts so observers and Cancel can find it immediately.
func (o *Orchestrator) Start(in *TurnInput) {
	te := o.newTurnExecutor(in)
	o.registry.Register(te.stream)
	te.stream.Start()

	o.logger.Info("turn started",
		"conversation_id", in.ConversationID,
		"message_id", in.AssistantMessageID,
		"run_id", te.runID,
		"model", in.Model,
	)
}

// Cancel stops the live stream for messageID. It reports false when no stream is running.
func (o *Orchestrator) Cancel(messageID string) bool {
	stream := o.registry.Get(messageID)
	if stream == nil {
		return false
	}
	stream.Cancel()
	return true
}

// eventBuffer is the part of mstream.Stream that guards persistence against catchup
type eventBuffer interface {
	PersistAndClear(fn func(events []mstream.Event) error) error
}

type streamBuffer struct {
	stream *mstream.Stream
}

func (b streamBuffer) PersistAndClear(fn func(events []mstream.Event) error) error {
	return b.stream.PersistAndClear(fn)
}

// turnExecutor runs one turn inside an mstream WorkFunc
type turnExecutor struct {
	o      *Orchestrator
	in     *TurnInput
	runID  string
	stream *mstream.Stream
	buffer eventBuffer
	logger *slog.Logger

	state     turnState
	parts     models.Parts
	reasoning string
	provider  string
}

func (o *Orchestrator) newTurnExecutor(in *TurnInput) *turnExecutor {
	runID := uuid.NewString()
	te := &turnExecutor{
		o:     o,
		in:    in,
		runID: runID,
		logger: o.logger.With(
			"message_id", in.AssistantMessageID,
			"conversation_id", in.ConversationID,
			"run_id", runID,
		),
		state:    stateCreated,
		provider: in.Provider,
	}

	te.stream = mstream.NewStream(
		in.AssistantMessageID,
		te.workFunc,
		mstream.WithCatchup(buildCatchupFunc(o.messages, o.logger)),
		mstream.WithEventIDs(o.debug),
	)
	te.buffer = streamBuffer{stream: te.stream}
	return te
}

// turnResult is how a run ended
type turnResult struct {
	outcome string
	err     error // the failure shown to the user, for failed outcomes
}

func (te *turnExecutor) workFunc(ctx context.Context, send func(mstream.Event)) error {
	started := te.o.now()
	te.o.metrics.TurnsInFlight.Inc()
	defer te.o.metrics.TurnsInFlight.Dec()

	ctx, span := tracer.Start(ctx, "chat.turn", trace.WithAttributes(
		attribute.String("chat.conversation_id", te.in.ConversationID),
		attribute.String("chat.message_id", te.in.AssistantMessageID),
		attribute.String("llm.model", te.in.Model),
	))
	defer span.End()

	// Writes must land even after the stream is cancelled, so the message can be sealed
	persistCtx := context.WithoutCancel(ctx)

	res := te.run(ctx, persistCtx, send)

	provider := te.provider
	if provider == "" {
		provider = "unknown"
	}
	span.SetAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("chat.outcome", res.outcome),
	)
	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
	}
	te.o.metrics.RecordTurn(provider, res.outcome, te.o.now().Sub(started))

	te.logger.Info("turn finished",
		"outcome", res.outcome,
		"state", te.state,
		"duration_ms", te.o.now().Sub(started).Milliseconds(),
	)

	if res.outcome == observability.OutcomeFailed {
		return res.err
	}
	return nil
}

// run claims the message, streams the completion and seals the message
func (te *turnExecutor) run(ctx, persistCtx context.Context, send func(mstream.Event)) turnResult {
	claim := func() error {
		return te.o.messages.Claim(persistCtx, te.in.AssistantMessageID, te.runID)
	}
	if err := te.retryPersist("claim", claim); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			te.logger.Warn("assistant message is owned by another run, not streaming")
			return turnResult{outcome: observability.OutcomeConflict}
		}
		// Unclaimed, the placeholder cannot be sealed here; the abandoned-message sweep closes it
		te.logger.Error("failed to claim assistant message", "error", err)
		return turnResult{outcome: observability.OutcomeFailed, err: err}
	}

	te.transition(stateStreaming)

	eff, err := te.consume(ctx, persistCtx, send)
	if errors.Is(err, domain.ErrConflict) {
		te.logger.Warn("lost the assistant message to another run, stopping")
		return turnResult{outcome: observability.OutcomeConflict}
	}

	if err != nil && ctx.Err() == nil {
		return te.fail(persistCtx, send, err)
	}

	outcome := observability.OutcomeCompleted
	if ctx.Err() != nil {
		outcome = observability.OutcomeCancelled
		te.logger.Info("turn cancelled, sealing partial reply", "chars", len(models.JoinText(te.parts)))
	}
	return te.complete(persistCtx, send, eff, outcome)
}

// consume resolves the route, opens the completion and applies every event.
// It returns ctx's error when cancelled and the effective model once resolved.
func (te *turnExecutor) consume(ctx, persistCtx context.Context, send func(mstream.Event)) (*capabilities.EffectiveModel, error) {
	cfg, ok := te.o.models.Resolve(te.in.Model)
	if !ok {
		return nil, &displayError{
			display: "Configuration not found for model: " + te.in.Model,
			err:     fmt.Errorf("model %q is not in the registry: %w", te.in.Model, domain.ErrNotFound),
		}
	}

	selected := te.in.Provider
	if selected == "" {
		selected = cfg.Provider
	}
	te.provider = selected

	eff, err := capabilities.ResolveEffective(cfg, te.in.Provider, te.keyLookup(persistCtx, selected), te.o.hostGoogleKey)
	if err != nil {
		return nil, err
	}
	te.provider = eff.Provider

	engine, err := te.o.engines.CreateEngine(eff.Provider, eff.Credential)
	if err != nil {
		return eff, fmt.Errorf("failed to create %s client: %w", eff.Provider, err)
	}

	req := &llmSvc.CompletionRequest{
		Model:     eff.ModelID,
		System:    te.o.prompts.Compose(cfg.Name, te.o.now(), llmSvc.PromptFeatures{WebSearchEnabled: te.in.WebSearchEnabled}),
		Messages:  te.o.history.Build(ctx, te.in.History),
		MaxSteps:  1,
		Reasoning: eff.Config.WantsReasoning(te.in.ThinkingEnabled),
	}
	if te.in.WebSearchEnabled {
		tools, err := te.o.tools()
		if err != nil {
			return eff, err
		}
		req.Tools = tools
		req.MaxSteps = config.MaxToolSteps
	}

	te.logger.Debug("opening completion stream",
		"provider", eff.Provider,
		"model_id", eff.ModelID,
		"host_key", eff.UsingHostKey,
		"history", len(req.Messages),
		"reasoning", req.Reasoning,
		"web_search", te.in.WebSearchEnabled,
	)

	events, err := engine.StreamCompletion(ctx, req)
	if err != nil {
		return eff, err
	}

	for ev := range events {
		// Nothing arriving after a cancel is applied, so the sealed text matches the last write
		if err := ctx.Err(); err != nil {
			return eff, err
		}

		switch v := ev.(type) {
		case llmSvc.Done:
			te.logger.Debug("completion finished",
				"input_tokens", v.Usage.InputTokens,
				"output_tokens", v.Usage.OutputTokens,
			)
			return eff, nil
		case llmSvc.ErrorEvent:
			if ctx.Err() != nil {
				return eff, ctx.Err()
			}
			return eff, v.Err
		case llmSvc.StepFinish:
			continue
		}

		delta, ok := te.apply(ev)
		if !ok {
			continue
		}

		if err := te.persist(ctx, persistCtx, send, delta); err != nil {
			return eff, err
		}
	}

	if err := ctx.Err(); err != nil {
		return eff, err
	}
	return eff, errors.New("stream ended without completing")
}

// apply folds one event into the part accumulator
func (te *turnExecutor) apply(ev llmSvc.Event) (DeltaEvent, bool) {
	delta := DeltaEvent{MessageID: te.in.AssistantMessageID, Kind: llmSvc.Kind(ev)}

	switch v := ev.(type) {
	case llmSvc.TextDelta:
		te.parts = models.AppendText(te.parts, v.Text)
		delta.Text = v.Text
	case llmSvc.ReasoningDelta:
		te.parts, te.reasoning = models.UpsertReasoning(te.parts, v.Text)
		delta.Text = v.Text
	case llmSvc.ToolCall:
		te.parts = append(te.parts, models.ToolCallPart{ID: v.ID, Name: v.Name, Args: v.Args})
		delta.ToolCall = &models.ToolCall{ID: v.ID, Name: v.Name, Args: v.Args}
	case llmSvc.ToolResult:
		te.parts = append(te.parts, models.ToolResultPart{ToolCallID: v.ToolCallID, Result: v.Result})
		delta.ToolOutput = &models.ToolOutput{ToolCallID: v.ToolCallID, Result: v.Result}
		te.o.metrics.RecordToolCall(v.Name, v.IsError)
	default:
		return delta, false
	}
	return delta, true
}

// persist sends the delta to live clients, then writes the full snapshot.
// Cancellation is checked before the write; a cancelled turn keeps what was last written.
func (te *turnExecutor) persist(ctx, persistCtx context.Context, send func(mstream.Event), delta DeltaEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ev, err := newEvent(SSEEventMessageDelta, delta); err == nil {
		send(ev)
	} else {
		te.logger.Error("failed to encode delta event", "error", err)
	}

	snap := models.NewSnapshot(te.parts, te.reasoning)

	var writeErr error
	if err := te.buffer.PersistAndClear(func(events []mstream.Event) error {
		writeErr = te.o.messages.WriteSnapshot(persistCtx, te.in.AssistantMessageID, te.runID, snap)
		return writeErr
	}); err != nil {
		if writeErr != nil {
			err = writeErr
		}
		return fmt.Errorf("persist snapshot: %w", err)
	}
	te.o.metrics.StreamWritesTotal.Inc()

	te.publish(persistCtx)
	return nil
}

// complete seals the accumulated reply and schedules follow-up jobs
func (te *turnExecutor) complete(persistCtx context.Context, send func(mstream.Event), eff *capabilities.EffectiveModel, outcome string) turnResult {
	te.transition(stateFinalizing)

	parts := models.FoldReasoning(te.parts.Clone(), te.reasoning)
	snap := models.NewSnapshot(parts, "")
	snap.Reasoning = ""

	if err := te.finalize(persistCtx, snap); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return turnResult{outcome: observability.OutcomeConflict}
		}
		te.logger.Error("failed to finalize assistant message", "error", err)
		return turnResult{outcome: observability.OutcomeFailed, err: err}
	}
	te.transition(stateCompleted)

	if ev, err := newEvent(SSEEventMessageComplete, CompleteEvent{
		MessageID: te.in.AssistantMessageID,
		Outcome:   outcome,
		Content:   snap.Content,
	}); err == nil {
		send(ev)
	}

	te.scheduleJobs(persistCtx, eff, snap.Content)
	return turnResult{outcome: outcome}
}

// fail overwrites the reply with the error text through the same finalize path
func (te *turnExecutor) fail(persistCtx context.Context, send func(mstream.Event), cause error) turnResult {
	te.transition(stateFinalizing)
	te.logger.Error("turn failed", "error", cause)

	text := errorPrefix + userFacing(cause)
	snap := models.MessageSnapshot{
		Content: text,
		Parts:   models.Parts{models.TextPart{Text: text}},
	}

	if err := te.finalize(persistCtx, snap); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return turnResult{outcome: observability.OutcomeConflict}
		}
		te.logger.Error("failed to persist error message, leaving it to the abandoned-message sweep", "error", err)
	}
	te.transition(stateFailed)

	if ev, err := newEvent(SSEEventMessageError, ErrorEvent{
		MessageID: te.in.AssistantMessageID,
		Error:     userFacing(cause),
		Content:   text,
	}); err == nil {
		send(ev)
	}
	return turnResult{outcome: observability.OutcomeFailed, err: cause}
}

func (te *turnExecutor) finalize(persistCtx context.Context, snap models.MessageSnapshot) error {
	err := te.retryPersist("finalize", func() error {
		var writeErr error
		if err := te.buffer.PersistAndClear(func(events []mstream.Event) error {
			writeErr = te.o.messages.Finalize(persistCtx, te.in.AssistantMessageID, te.runID, snap)
			return writeErr
		}); err != nil {
			if writeErr != nil {
				return writeErr
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	te.publish(persistCtx)
	return nil
}

// retryPersist runs write up to persistAttempts times with linear backoff.
// Ownership conflicts are final and return at once.
func (te *turnExecutor) retryPersist(op string, write func() error) error {
	var err error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		if err = write(); err == nil || errors.Is(err, domain.ErrConflict) {
			return err
		}
		if attempt < persistAttempts {
			te.logger.Warn("persistence write failed, retrying",
				"op", op,
				"attempt", attempt,
				"error", err,
			)
			time.Sleep(te.o.persistDelay * time.Duration(attempt))
		}
	}
	return err
}

func (te *turnExecutor) publish(ctx context.Context) {
	if err := te.o.notifier.Publish(ctx, chatSvc.MessageChange{
		ConversationID: te.in.ConversationID,
		MessageID:      te.in.AssistantMessageID,
	}); err != nil {
		te.logger.Warn("failed to publish message change", "error", err)
	}
}

// scheduleJobs submits token accounting and first-exchange title generation.
// Failures are logged; they never affect the sealed turn.
func (te *turnExecutor) scheduleJobs(ctx context.Context, eff *capabilities.EffectiveModel, finalContent string) {
	if len(te.in.AttachmentIDs) > 0 {
		if err := te.o.jobs.ScheduleTokenCount(ctx, &chatSvc.TokenCountJob{
			AttachmentIDs: te.in.AttachmentIDs,
			FinalContent:  finalContent,
		}); err != nil {
			te.logger.Error("failed to schedule token count", "error", err)
		}
	}

	// History holds the first user message and this placeholder on the first exchange
	if len(te.in.History) != 2 {
		return
	}
	first := te.in.History[0]
	if first.Role != models.RoleUser {
		return
	}

	job := &chatSvc.TitleJob{
		Prompt:         first.Content,
		IsTitle:        true,
		MessageID:      first.ID,
		ConversationID: te.in.ConversationID,
	}
	if eff != nil && eff.Provider == llmSvc.ProviderGoogle && !eff.UsingHostKey {
		job.UserGoogleKey = eff.Credential
	}
	if err := te.o.jobs.ScheduleTitle(ctx, job); err != nil {
		te.logger.Error("failed to schedule title generation", "error", err)
	}
}

// keyLookup prefers the request credential for the selected provider, then stored keys
func (te *turnExecutor) keyLookup(ctx context.Context, selected string) capabilities.KeyLookup {
	return func(provider string) string {
		if provider == selected && te.in.Credential != "" {
			return te.in.Credential
		}
		if te.in.UserID == "" || te.o.apiKeys == nil {
			return ""
		}
		key, err := te.o.apiKeys.Lookup(ctx, te.in.UserID, provider)
		if err != nil {
			te.logger.Warn("failed to look up stored API key", "provider", provider, "error", err)
			return ""
		}
		return key
	}
}

func (te *turnExecutor) transition(next turnState) {
	te.logger.Debug("turn state", "from", te.state, "to", next)
	te.state = next
}

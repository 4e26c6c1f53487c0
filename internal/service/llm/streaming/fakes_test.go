package streaming

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	mstream "github.com/haowjy/meridian-stream-go"

	"chatstream/internal/capabilities"
	"chatstream/internal/domain"
	models "chatstream/internal/domain/models/chat"
	chatSvc "chatstream/internal/domain/services/chat"
	llmSvc "chatstream/internal/domain/services/llm"
	"chatstream/internal/observability"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMessageRepo is an in-memory MessageRepository with the single-writer rules
type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  map[string]*models.Message
	writers   map[string]string
	writes    []models.MessageSnapshot
	finalized []models.MessageSnapshot

	// onWrite runs after each successful snapshot write
	onWrite func(n int)
	// onCount runs between counting and returning, widening check-then-insert races
	onCount func()

	// claimFailures and finalizeFailures fail that many calls with a transient error
	claimFailures    int
	finalizeFailures int
}

var errTransient = errors.New("connection reset by peer")

func newFakeMessageRepo(msgs ...models.Message) *fakeMessageRepo {
	r := &fakeMessageRepo{
		messages: make(map[string]*models.Message),
		writers:  make(map[string]string),
	}
	for i := range msgs {
		m := msgs[i]
		r.messages[m.ID] = &m
	}
	return r
}

func (r *fakeMessageRepo) Get(ctx context.Context, id string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, domain.NotFound("Message not found")
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Message{}
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeMessageRepo) CountByRole(ctx context.Context, conversationID string, role models.Role) (int, error) {
	msgs, _ := r.ListByConversation(ctx, conversationID)
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	if r.onCount != nil {
		r.onCount()
	}
	return n, nil
}

func (r *fakeMessageRepo) Last(ctx context.Context, conversationID string) (*models.Message, error) {
	msgs, _ := r.ListByConversation(ctx, conversationID)
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[len(msgs)-1], nil
}

func (r *fakeMessageRepo) Claim(ctx context.Context, messageID, writerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimFailures > 0 {
		r.claimFailures--
		return errTransient
	}
	m, ok := r.messages[messageID]
	if !ok || m.IsComplete {
		return domain.ErrConflict
	}
	if w := r.writers[messageID]; w != "" && w != writerID {
		return domain.ErrConflict
	}
	r.writers[messageID] = writerID
	return nil
}

func (r *fakeMessageRepo) owned(messageID, writerID string) (*models.Message, bool) {
	m, ok := r.messages[messageID]
	if !ok || m.IsComplete || r.writers[messageID] != writerID {
		return nil, false
	}
	return m, true
}

func (r *fakeMessageRepo) WriteSnapshot(ctx context.Context, messageID, writerID string, snap models.MessageSnapshot) error {
	r.mu.Lock()
	m, ok := r.owned(messageID, writerID)
	if !ok {
		r.mu.Unlock()
		return domain.ErrConflict
	}
	m.Content = snap.Content
	m.Parts = snap.Parts
	reasoning := snap.Reasoning
	m.Reasoning = &reasoning
	m.ToolCalls = snap.ToolCalls
	m.ToolOutputs = snap.ToolOutputs
	r.writes = append(r.writes, snap)
	n := len(r.writes)
	hook := r.onWrite
	r.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

func (r *fakeMessageRepo) Finalize(ctx context.Context, messageID, writerID string, snap models.MessageSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalizeFailures > 0 {
		r.finalizeFailures--
		return errTransient
	}
	m, ok := r.owned(messageID, writerID)
	if !ok {
		return domain.ErrConflict
	}
	m.Content = snap.Content
	m.Parts = snap.Parts
	m.Reasoning = nil
	m.IsComplete = true
	delete(r.writers, messageID)
	r.finalized = append(r.finalized, snap)
	return nil
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	r.messages[msg.ID] = &cp
	return nil
}

func (r *fakeMessageRepo) DeleteFrom(ctx context.Context, conversationID string, cutoff time.Time, inclusive bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if m.CreatedAt.After(cutoff) || (inclusive && m.CreatedAt.Equal(cutoff)) {
			delete(r.messages, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeMessageRepo) SealAbandoned(ctx context.Context, olderThan time.Time, content string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.messages {
		if m.IsComplete || !m.CreatedAt.Before(olderThan) {
			continue
		}
		if m.Content == "" {
			m.Content = content
			m.Parts = models.Parts{models.TextPart{Text: content}}
		}
		m.IsComplete = true
		m.Reasoning = nil
		delete(r.writers, id)
		n++
	}
	return n, nil
}

// steal hands the claim on messageID to another writer
func (r *fakeMessageRepo) steal(messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writers[messageID] = "someone-else"
}

func (r *fakeMessageRepo) message(t *testing.T, id string) models.Message {
	t.Helper()
	m, err := r.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("message %s: %v", id, err)
	}
	return *m
}

// scriptEngine replays fixed events, stopping early when ctx is cancelled
type scriptEngine struct {
	events  []llmSvc.Event
	openErr error
	req     *llmSvc.CompletionRequest
}

func (e *scriptEngine) StreamCompletion(ctx context.Context, req *llmSvc.CompletionRequest) (<-chan llmSvc.Event, error) {
	e.req = req
	if e.openErr != nil {
		return nil, e.openErr
	}
	ch := make(chan llmSvc.Event)
	go func() {
		defer close(ch)
		for _, ev := range e.events {
			select {
			case <-ctx.Done():
				return
			case ch <- ev:
			}
		}
	}()
	return ch, nil
}

// fakeEngineFactory hands out one engine and records the route it was asked for
type fakeEngineFactory struct {
	engine     *scriptEngine
	provider   string
	credential string
	calls      int
}

func (f *fakeEngineFactory) CreateEngine(provider, credential string) (llmSvc.Engine, error) {
	f.calls++
	f.provider = provider
	f.credential = credential
	return f.engine, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	changes []chatSvc.MessageChange
}

func (n *fakeNotifier) Publish(ctx context.Context, change chatSvc.MessageChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
	return nil
}

func (n *fakeNotifier) Subscribe(ctx context.Context, conversationID string) (<-chan chatSvc.MessageChange, func(), error) {
	return nil, func() {}, errors.New("not supported")
}

type fakeJobs struct {
	titles []*chatSvc.TitleJob
	tokens []*chatSvc.TokenCountJob
}

func (j *fakeJobs) ScheduleTitle(ctx context.Context, job *chatSvc.TitleJob) error {
	j.titles = append(j.titles, job)
	return nil
}

func (j *fakeJobs) ScheduleTokenCount(ctx context.Context, job *chatSvc.TokenCountJob) error {
	j.tokens = append(j.tokens, job)
	return nil
}

type fakeAPIKeys struct {
	keys map[string]string // provider -> key
}

func (f *fakeAPIKeys) Put(ctx context.Context, provider, key string, caller models.Caller) (*models.StoredAPIKey, error) {
	return nil, errors.New("not supported")
}

func (f *fakeAPIKeys) List(ctx context.Context, caller models.Caller) ([]models.StoredAPIKey, error) {
	return nil, nil
}

func (f *fakeAPIKeys) Delete(ctx context.Context, provider string, caller models.Caller) error {
	return nil
}

func (f *fakeAPIKeys) Lookup(ctx context.Context, userID, provider string) (string, error) {
	return f.keys[provider], nil
}

type fakeToolSet struct{}

func (fakeToolSet) Definitions() []llmSvc.ToolDefinition {
	return []llmSvc.ToolDefinition{{Name: "web_search"}}
}

func (fakeToolSet) Execute(ctx context.Context, call llmSvc.ToolCall) llmSvc.ToolResult {
	return llmSvc.ToolResult{ToolCallID: call.ID, Name: call.Name, Result: []any{}}
}

// passthroughBuffer runs persistence directly, standing in for the stream's buffer
type passthroughBuffer struct{}

func (passthroughBuffer) PersistAndClear(fn func(events []mstream.Event) error) error {
	return fn(nil)
}

type fakeImageFetcher struct {
	urls map[string]string // remote url -> data url; missing entries fail
}

func (f *fakeImageFetcher) FetchDataURL(ctx context.Context, url, mimeType string) (string, error) {
	if d, ok := f.urls[url]; ok {
		return d, nil
	}
	return "", errors.New("404")
}

// orchestratorFixture wires an orchestrator to fakes
type orchestratorFixture struct {
	orch     *Orchestrator
	repo     *fakeMessageRepo
	engines  *fakeEngineFactory
	notifier *fakeNotifier
	jobs     *fakeJobs
	apiKeys  *fakeAPIKeys
	toolsErr error
}

func newOrchestratorFixture(t *testing.T, events ...llmSvc.Event) *orchestratorFixture {
	t.Helper()
	registry, err := capabilities.NewRegistry(true)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	f := &orchestratorFixture{
		repo:     newFakeMessageRepo(),
		engines:  &fakeEngineFactory{engine: &scriptEngine{events: events}},
		notifier: &fakeNotifier{},
		jobs:     &fakeJobs{},
		apiKeys:  &fakeAPIKeys{keys: map[string]string{}},
	}
	f.orch = NewOrchestrator(OrchestratorConfig{
		Models:  registry,
		Engines: f.engines,
		Prompts: NewSystemPromptComposer(registry),
		Tools: func() (llmSvc.ToolSet, error) {
			if f.toolsErr != nil {
				return nil, f.toolsErr
			}
			return fakeToolSet{}, nil
		},
		History:       NewHistoryBuilder(&fakeImageFetcher{}, testLogger()),
		Messages:      f.repo,
		APIKeys:       f.apiKeys,
		Notifier:      f.notifier,
		Jobs:          f.jobs,
		Registry:      mstream.NewRegistry(),
		Metrics:       observability.NewMetrics(),
		HostGoogleKey: "host-google",
		Logger:        testLogger(),
	})
	f.orch.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	f.orch.persistDelay = time.Millisecond
	return f
}

// firstExchange seeds a conversation with a user message and an empty placeholder
func (f *orchestratorFixture) firstExchange(model string) *TurnInput {
	base := time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC)
	user := models.Message{
		ID: "u1", ConversationID: "c1", Role: models.RoleUser,
		Content: "What's the weather in Paris?", CreatedAt: base, IsComplete: true,
	}
	placeholder := models.Message{
		ID: "a1", ConversationID: "c1", Role: models.RoleAssistant,
		CreatedAt: base.Add(time.Millisecond),
	}
	_ = f.repo.Create(context.Background(), &user)
	_ = f.repo.Create(context.Background(), &placeholder)

	return &TurnInput{
		ConversationID:     "c1",
		AssistantMessageID: "a1",
		History:            []models.Message{user, placeholder},
		Model:              model,
	}
}

// run executes one turn synchronously and returns the events sent to live clients
func (f *orchestratorFixture) run(ctx context.Context, in *TurnInput) ([]mstream.Event, error) {
	te := f.orch.newTurnExecutor(in)
	te.buffer = passthroughBuffer{}

	var sent []mstream.Event
	err := te.workFunc(ctx, func(ev mstream.Event) { sent = append(sent, ev) })
	return sent, err
}

package chat

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatstream/internal/domain"
	models "chatstream/internal/domain/models/chat"
	"chatstream/internal/domain/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

// fakeConversationRepo is an in-memory ConversationRepository
type fakeConversationRepo struct {
	mu    sync.Mutex
	convs map[string]*models.Conversation
}

func newFakeConversationRepo(convs ...*models.Conversation) *fakeConversationRepo {
	r := &fakeConversationRepo{convs: map[string]*models.Conversation{}}
	for _, c := range convs {
		r.convs[c.ID] = c
	}
	return r
}

func (r *fakeConversationRepo) Create(ctx context.Context, conv *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	cp := *conv
	r.convs[conv.ID] = &cp
	return nil
}

func (r *fakeConversationRepo) Get(ctx context.Context, id string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return nil, domain.NotFound("conversation not found")
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConversationRepo) GetByUUID(ctx context.Context, uuid string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.UUID == uuid {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.NotFound("conversation not found")
}

func (r *fakeConversationRepo) FindForOwner(ctx context.Context, uuid, userID, sessionID string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.UUID != uuid {
			continue
		}
		if (userID != "" && c.OwnedByUser(userID)) || (userID == "" && c.OwnedBySession(sessionID)) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.NotFound("conversation not found")
}

func (r *fakeConversationRepo) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Conversation{}
	for _, c := range r.convs {
		if c.OwnedByUser(userID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

func (r *fakeConversationRepo) ListBySession(ctx context.Context, sessionID string) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Conversation{}
	for _, c := range r.convs {
		if c.OwnedBySession(sessionID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) UpdateTitle(ctx context.Context, id, title string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Title, c.UpdatedAt = title, at
	return nil
}

func (r *fakeConversationRepo) SetPublic(ctx context.Context, id string, isPublic bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[id].IsPublic = isPublic
	return nil
}

func (r *fakeConversationRepo) LockForUpdate(ctx context.Context, id string) error {
	return nil
}

func (r *fakeConversationRepo) Touch(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (r *fakeConversationRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.convs, id)
	return nil
}

func (r *fakeConversationRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.convs {
		if c.OwnedBySession(sessionID) {
			delete(r.convs, id)
			n++
		}
	}
	return n, nil
}

// fakeMessageRepo covers the read and create paths used by these services
type fakeMessageRepo struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (r *fakeMessageRepo) Get(ctx context.Context, id string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ID == id {
			cp := m
			return &cp, nil
		}
	}
	return nil, domain.NotFound("message not found")
}

func (r *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Message{}
	for _, m := range r.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeMessageRepo) CountByRole(ctx context.Context, conversationID string, role models.Role) (int, error) {
	list, _ := r.ListByConversation(ctx, conversationID)
	n := 0
	for _, m := range list {
		if m.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *fakeMessageRepo) Last(ctx context.Context, conversationID string) (*models.Message, error) {
	list, _ := r.ListByConversation(ctx, conversationID)
	if len(list) == 0 {
		return nil, nil
	}
	m := list[len(list)-1]
	return &m, nil
}

func (r *fakeMessageRepo) Claim(ctx context.Context, messageID, writerID string) error { return nil }

func (r *fakeMessageRepo) WriteSnapshot(ctx context.Context, messageID, writerID string, snap models.MessageSnapshot) error {
	return nil
}

func (r *fakeMessageRepo) Finalize(ctx context.Context, messageID, writerID string, snap models.MessageSnapshot) error {
	return nil
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, *msg)
	return nil
}

func (r *fakeMessageRepo) DeleteFrom(ctx context.Context, conversationID string, cutoff time.Time, inclusive bool) (int64, error) {
	return 0, nil
}

func (r *fakeMessageRepo) SealAbandoned(ctx context.Context, olderThan time.Time, content string) (int64, error) {
	return 0, nil
}

// fakeAttachmentRepo is an in-memory AttachmentRepository
type fakeAttachmentRepo struct {
	items map[string]*models.Attachment
}

func newFakeAttachmentRepo(items ...models.Attachment) *fakeAttachmentRepo {
	r := &fakeAttachmentRepo{items: map[string]*models.Attachment{}}
	for i := range items {
		a := items[i]
		r.items[a.ID] = &a
	}
	return r
}

func (r *fakeAttachmentRepo) Create(ctx context.Context, a *models.Attachment) error {
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *fakeAttachmentRepo) Get(ctx context.Context, id string) (*models.Attachment, error) {
	a, ok := r.items[id]
	if !ok {
		return nil, domain.NotFound("attachment not found")
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAttachmentRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Attachment, error) {
	out := []models.Attachment{}
	for _, a := range r.items {
		if a.ConversationID != nil && *a.ConversationID == conversationID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAttachmentRepo) ListByUser(ctx context.Context, userID string) ([]models.Attachment, error) {
	out := []models.Attachment{}
	for _, a := range r.items {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAttachmentRepo) LinkConversation(ctx context.Context, id, conversationID string) error {
	r.items[id].ConversationID = &conversationID
	return nil
}

func (r *fakeAttachmentRepo) SetPromptTokens(ctx context.Context, ids []string, promptTokens int) error {
	for _, id := range ids {
		n := promptTokens
		r.items[id].PromptTokens = &n
	}
	return nil
}

func (r *fakeAttachmentRepo) Delete(ctx context.Context, id string) error {
	delete(r.items, id)
	return nil
}

// fakeSummaryRepo is an append-only slice
type fakeSummaryRepo struct {
	items []models.MessageSummary
}

func (r *fakeSummaryRepo) Create(ctx context.Context, s *models.MessageSummary) error {
	r.items = append(r.items, *s)
	return nil
}

func (r *fakeSummaryRepo) ListByMessage(ctx context.Context, messageID string) ([]models.MessageSummary, error) {
	out := []models.MessageSummary{}
	for _, s := range r.items {
		if s.MessageID == messageID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSummaryRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.MessageSummary, error) {
	out := []models.MessageSummary{}
	for _, s := range r.items {
		if s.ConversationID == conversationID {
			out = append(out, s)
		}
	}
	return out, nil
}

// fakeAPIKeyRepo keys rows by user and provider
type fakeAPIKeyRepo struct {
	rows map[string]models.StoredAPIKey
}

func newFakeAPIKeyRepo() *fakeAPIKeyRepo {
	return &fakeAPIKeyRepo{rows: map[string]models.StoredAPIKey{}}
}

func (r *fakeAPIKeyRepo) Upsert(ctx context.Context, key *models.StoredAPIKey) error {
	r.rows[key.UserID+"/"+key.Provider] = *key
	return nil
}

func (r *fakeAPIKeyRepo) Get(ctx context.Context, userID, provider string) (*models.StoredAPIKey, error) {
	k, ok := r.rows[userID+"/"+provider]
	if !ok {
		return nil, domain.NotFound("api key not found")
	}
	return &k, nil
}

func (r *fakeAPIKeyRepo) List(ctx context.Context, userID string) ([]models.StoredAPIKey, error) {
	out := []models.StoredAPIKey{}
	for _, k := range r.rows {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (r *fakeAPIKeyRepo) Delete(ctx context.Context, userID, provider string) error {
	delete(r.rows, userID+"/"+provider)
	return nil
}

// fakeBlobStore signs deterministic URLs and records deletes
type fakeBlobStore struct {
	deleted []string
}

func (b *fakeBlobStore) UploadURL(ctx context.Context, storageID string, ttl time.Duration) (string, time.Time, error) {
	return "https://blobs.test/upload/" + storageID, time.Unix(0, 0).Add(ttl), nil
}

func (b *fakeBlobStore) ReadURL(ctx context.Context, storageID string, ttl time.Duration) (string, error) {
	return "https://blobs.test/read/" + storageID, nil
}

func (b *fakeBlobStore) Delete(ctx context.Context, storageID string) error {
	b.deleted = append(b.deleted, storageID)
	return nil
}

// fakeTxManager runs fn inline
type fakeTxManager struct{}

func (fakeTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}

package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatstream/internal/domain"
	models "chatstream/internal/domain/models/chat"
	chatSvc "chatstream/internal/domain/services/chat"
)

var (
	owner    = models.Caller{UserID: "user-1"}
	stranger = models.Caller{UserID: "user-2"}
	guest    = models.Caller{SessionID: "sess-1"}
)

func newConversationFixture(convs ...*models.Conversation) (*ConversationService, *fakeConversationRepo, *fakeMessageRepo) {
	convRepo := newFakeConversationRepo(convs...)
	msgRepo := &fakeMessageRepo{}
	svc := NewConversationService(convRepo, msgRepo, fakeTxManager{}, testLogger())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, convRepo, msgRepo
}

func TestConversationService_Create(t *testing.T) {
	tests := []struct {
		name        string
		caller      models.Caller
		wantErr     error
		wantUser    bool
		wantSession bool
	}{
		{name: "authenticated owner", caller: owner, wantUser: true},
		{name: "guest session", caller: guest, wantSession: true},
		{name: "authenticated ignores session", caller: models.Caller{UserID: "user-1", SessionID: "sess-9"}, wantUser: true},
		{name: "nobody", caller: models.Caller{}, wantErr: domain.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newConversationFixture()
			conv, err := svc.Create(context.Background(), &chatSvc.CreateConversationRequest{UUID: "u-1", Caller: tt.caller})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if conv.Title != models.DefaultConversationTitle {
				t.Errorf("Title = %q", conv.Title)
			}
			if (conv.UserID != nil) != tt.wantUser || (conv.SessionID != nil) != tt.wantSession {
				t.Errorf("owner fields user=%v session=%v", conv.UserID, conv.SessionID)
			}
		})
	}
}

func TestConversationService_CreateIsIdempotentPerOwner(t *testing.T) {
	svc, repo, _ := newConversationFixture()
	ctx := context.Background()

	first, err := svc.Create(ctx, &chatSvc.CreateConversationRequest{UUID: "u-1", Caller: owner})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	again, err := svc.Create(ctx, &chatSvc.CreateConversationRequest{UUID: "u-1", Caller: owner})
	if err != nil {
		t.Fatalf("Create() again error = %v", err)
	}
	if first.ID != again.ID {
		t.Errorf("second Create returned a new conversation")
	}
	if len(repo.convs) != 1 {
		t.Errorf("conversations = %d, want 1", len(repo.convs))
	}
}

func TestConversationService_GetVisibility(t *testing.T) {
	private := &models.Conversation{ID: "c1", UUID: "u1", UserID: strPtr("user-1")}
	public := &models.Conversation{ID: "c2", UUID: "u2", UserID: strPtr("user-1"), IsPublic: true}
	guestConv := &models.Conversation{ID: "c3", UUID: "u3", SessionID: strPtr("sess-1")}

	tests := []struct {
		name    string
		id      string
		caller  models.Caller
		visible bool
	}{
		{name: "owner sees private", id: "c1", caller: owner, visible: true},
		{name: "stranger blocked", id: "c1", caller: stranger},
		{name: "anyone sees public", id: "c2", caller: models.Caller{}, visible: true},
		{name: "guest sees own", id: "c3", caller: guest, visible: true},
		{name: "signed-in user with same session blocked", id: "c3", caller: models.Caller{UserID: "user-9", SessionID: "sess-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newConversationFixture(private, public, guestConv)
			_, err := svc.Get(context.Background(), tt.id, tt.caller)
			if tt.visible && err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !tt.visible && !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("Get() error = %v, want not found", err)
			}
		})
	}
}

func TestConversationService_ListWithLastMessage(t *testing.T) {
	older := &models.Conversation{ID: "c1", UserID: strPtr("user-1"), LastMessageAt: time.Unix(100, 0)}
	newer := &models.Conversation{ID: "c2", UserID: strPtr("user-1"), LastMessageAt: time.Unix(200, 0)}
	svc, _, msgs := newConversationFixture(older, newer)
	msgs.msgs = []models.Message{
		{ID: "m1", ConversationID: "c1", Role: models.RoleUser, Content: "hi", CreatedAt: time.Unix(1, 0), IsComplete: true},
		{ID: "m2", ConversationID: "c1", Role: models.RoleAssistant, Content: "hello", CreatedAt: time.Unix(2, 0), IsComplete: true},
	}

	list, err := svc.ListWithLastMessage(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListWithLastMessage() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != "c2" {
		t.Fatalf("order = %+v, want newest first", list)
	}
	if list[0].LastMessage != nil {
		t.Errorf("empty conversation has last message %+v", list[0].LastMessage)
	}
	if lm := list[1].LastMessage; lm == nil || lm.Content != "hello" || lm.Role != models.RoleAssistant {
		t.Errorf("last message = %+v", lm)
	}

	guestList, _ := svc.ListWithLastMessage(context.Background(), guest)
	if len(guestList) != 0 {
		t.Errorf("guest list = %d, want 0", len(guestList))
	}
}

func TestConversationService_OwnerOnlyMutations(t *testing.T) {
	conv := func() *models.Conversation { return &models.Conversation{ID: "c1", Title: "T", UserID: strPtr("user-1")} }

	tests := []struct {
		name    string
		caller  models.Caller
		run     func(svc *ConversationService, caller models.Caller) error
		wantErr error
		wantMsg string
	}{
		{
			name: "update unauthenticated", caller: guest,
			run: func(svc *ConversationService, c models.Caller) error {
				_, err := svc.Update(context.Background(), "c1", &chatSvc.UpdateConversationRequest{Title: strPtr("x")}, c)
				return err
			},
			wantErr: domain.ErrUnauthorized, wantMsg: "Must be authenticated to update conversations",
		},
		{
			name: "update stranger", caller: stranger,
			run: func(svc *ConversationService, c models.Caller) error {
				_, err := svc.Update(context.Background(), "c1", &chatSvc.UpdateConversationRequest{Title: strPtr("x")}, c)
				return err
			},
			wantErr: domain.ErrForbidden, wantMsg: "Not authorised to update this conversation",
		},
		{
			name: "remove stranger", caller: stranger,
			run: func(svc *ConversationService, c models.Caller) error {
				return svc.Remove(context.Background(), "c1", c)
			},
			wantErr: domain.ErrForbidden, wantMsg: "Not authorised to delete this conversation",
		},
		{
			name: "toggle unauthenticated", caller: guest,
			run: func(svc *ConversationService, c models.Caller) error {
				_, err := svc.TogglePublic(context.Background(), "c1", c)
				return err
			},
			wantErr: domain.ErrUnauthorized, wantMsg: "Must be authenticated to toggle conversation visibility",
		},
		{
			name: "toggle stranger", caller: stranger,
			run: func(svc *ConversationService, c models.Caller) error {
				_, err := svc.TogglePublic(context.Background(), "c1", c)
				return err
			},
			wantErr: domain.ErrForbidden, wantMsg: "Not authorised to modify this conversation",
		},
		{
			name: "branch unauthenticated", caller: guest,
			run: func(svc *ConversationService, c models.Caller) error {
				_, err := svc.Branch(context.Background(), &chatSvc.BranchRequest{ConversationID: "c1", BranchPointMessageID: "m1", Caller: c})
				return err
			},
			wantErr: domain.ErrUnauthorized, wantMsg: "Must be authenticated to branch conversations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newConversationFixture(conv())
			err := tt.run(svc, tt.caller)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestConversationService_UpdateAndToggle(t *testing.T) {
	svc, repo, _ := newConversationFixture(&models.Conversation{ID: "c1", Title: "Old", UserID: strPtr("user-1")})
	ctx := context.Background()

	conv, err := svc.Update(ctx, "c1", &chatSvc.UpdateConversationRequest{Title: strPtr("  New title ")}, owner)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if conv.Title != "New title" || repo.convs["c1"].Title != "New title" {
		t.Errorf("title = %q / %q", conv.Title, repo.convs["c1"].Title)
	}

	isPublic, err := svc.TogglePublic(ctx, "c1", owner)
	if err != nil || !isPublic {
		t.Fatalf("TogglePublic() = %v, %v; want true", isPublic, err)
	}
	isPublic, _ = svc.TogglePublic(ctx, "c1", owner)
	if isPublic {
		t.Errorf("second toggle = true, want false")
	}
}

func TestConversationService_Branch(t *testing.T) {
	svc, repo, msgs := newConversationFixture(&models.Conversation{ID: "c1", Title: "Trip", UserID: strPtr("user-1")})
	base := time.Unix(1000, 0)
	msgs.msgs = []models.Message{
		{ID: "m1", ConversationID: "c1", Role: models.RoleUser, Content: "a", CreatedAt: base, IsComplete: true},
		{ID: "m2", ConversationID: "c1", Role: models.RoleAssistant, Content: "b", CreatedAt: base.Add(time.Second), IsComplete: true,
			Parts: models.Parts{models.TextPart{Text: "b"}}},
		{ID: "m3", ConversationID: "c1", Role: models.RoleUser, Content: "c", CreatedAt: base.Add(2 * time.Second), IsComplete: true},
	}

	newUUID, err := svc.Branch(context.Background(), &chatSvc.BranchRequest{
		ConversationID: "c1", BranchPointMessageID: "m2", Caller: owner,
	})
	if err != nil {
		t.Fatalf("Branch() error = %v", err)
	}

	branched, err := repo.GetByUUID(context.Background(), newUUID)
	if err != nil {
		t.Fatalf("branched conversation missing: %v", err)
	}
	if branched.Title != "Trip (branched)" || !branched.IsBranched {
		t.Errorf("branched = %+v", branched)
	}
	if branched.BranchedFrom == nil || *branched.BranchedFrom != "c1" || *branched.BranchedFromTitle != "Trip" {
		t.Errorf("lineage = %v / %v", branched.BranchedFrom, branched.BranchedFromTitle)
	}

	copied, _ := msgs.ListByConversation(context.Background(), branched.ID)
	if len(copied) != 2 {
		t.Fatalf("copied %d messages, want 2", len(copied))
	}
	if copied[0].Content != "a" || copied[1].Content != "b" || copied[1].ID == "m2" {
		t.Errorf("copied = %+v", copied)
	}
}

func TestConversationService_BranchPointMustBelong(t *testing.T) {
	svc, _, msgs := newConversationFixture(&models.Conversation{ID: "c1", UserID: strPtr("user-1")})
	msgs.msgs = []models.Message{{ID: "other", ConversationID: "c9"}}

	_, err := svc.Branch(context.Background(), &chatSvc.BranchRequest{
		ConversationID: "c1", BranchPointMessageID: "other", Caller: owner,
	})
	if !errors.Is(err, domain.ErrNotFound) || err.Error() != "Branch point message not found in the original conversation." {
		t.Fatalf("error = %v", err)
	}
}

func TestConversationService_ClearGuestData(t *testing.T) {
	svc, repo, _ := newConversationFixture(
		&models.Conversation{ID: "c1", SessionID: strPtr("sess-1")},
		&models.Conversation{ID: "c2", SessionID: strPtr("sess-1")},
		&models.Conversation{ID: "c3", SessionID: strPtr("sess-2")},
	)

	if err := svc.ClearGuestData(context.Background(), "sess-1"); err != nil {
		t.Fatalf("ClearGuestData() error = %v", err)
	}
	if len(repo.convs) != 1 {
		t.Errorf("remaining = %d, want 1", len(repo.convs))
	}
	if err := svc.ClearGuestData(context.Background(), " "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank session error = %v", err)
	}
}

package chat

import (
	"context"
	"errors"
	"testing"

	"chatstream/internal/domain"
	models "chatstream/internal/domain/models/chat"
	chatSvc "chatstream/internal/domain/services/chat"
)

func newAttachmentFixture(items ...models.Attachment) (*AttachmentService, *fakeAttachmentRepo, *fakeBlobStore) {
	repo := newFakeAttachmentRepo(items...)
	blobs := &fakeBlobStore{}
	convs := newFakeConversationRepo(
		&models.Conversation{ID: "c1", UserID: strPtr("user-1")},
		&models.Conversation{ID: "c2", UserID: strPtr("user-2")},
	)
	return NewAttachmentService(repo, convs, blobs, testLogger()), repo, blobs
}

func TestAttachmentService_GenerateUploadURL(t *testing.T) {
	svc, _, _ := newAttachmentFixture()

	if _, err := svc.GenerateUploadURL(context.Background(), guest); err == nil || err.Error() != "You must be logged in to upload a file." {
		t.Fatalf("guest error = %v", err)
	}

	resp, err := svc.GenerateUploadURL(context.Background(), owner)
	if err != nil {
		t.Fatalf("GenerateUploadURL() error = %v", err)
	}
	if resp.StorageID == "" || resp.UploadURL != "https://blobs.test/upload/"+resp.StorageID {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAttachmentService_Save(t *testing.T) {
	tests := []struct {
		name    string
		req     chatSvc.SaveAttachmentRequest
		wantErr error
	}{
		{name: "ok", req: chatSvc.SaveAttachmentRequest{StorageID: "s1", FileName: "a.png", ContentType: "image/png", Caller: owner}},
		{name: "linked to own conversation", req: chatSvc.SaveAttachmentRequest{StorageID: "s1", FileName: "a.png", ContentType: "image/png", ConversationID: strPtr("c1"), Caller: owner}},
		{name: "guest", req: chatSvc.SaveAttachmentRequest{StorageID: "s1", FileName: "a.png", ContentType: "image/png", Caller: guest}, wantErr: domain.ErrUnauthorized},
		{name: "missing file name", req: chatSvc.SaveAttachmentRequest{StorageID: "s1", ContentType: "image/png", Caller: owner}, wantErr: domain.ErrValidation},
		{name: "someone else's conversation", req: chatSvc.SaveAttachmentRequest{StorageID: "s1", FileName: "a.png", ContentType: "image/png", ConversationID: strPtr("c2"), Caller: owner}, wantErr: domain.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newAttachmentFixture()
			req := tt.req
			a, err := svc.Save(context.Background(), &req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if len(repo.items) != 0 {
					t.Errorf("rejected save wrote a row")
				}
				return
			}
			if err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if a.UserID != "user-1" || repo.items[a.ID] == nil {
				t.Errorf("saved = %+v", a)
			}
		})
	}
}

func TestAttachmentService_Delete(t *testing.T) {
	items := []models.Attachment{
		{ID: "a1", UserID: "user-1", StorageID: "s1"},
		{ID: "a2", UserID: "user-2", StorageID: "s2"},
	}

	tests := []struct {
		name    string
		id      string
		caller  models.Caller
		wantMsg string
	}{
		{name: "owner", id: "a1", caller: owner},
		{name: "missing", id: "nope", caller: owner, wantMsg: "Attachment not found"},
		{name: "not owner", id: "a2", caller: owner, wantMsg: "Not authorised to delete this attachment"},
		{name: "guest", id: "a1", caller: guest, wantMsg: "Not authenticated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, blobs := newAttachmentFixture(items...)
			err := svc.Delete(context.Background(), tt.id, tt.caller)
			if tt.wantMsg != "" {
				if err == nil || err.Error() != tt.wantMsg {
					t.Fatalf("error = %v, want %q", err, tt.wantMsg)
				}
				if len(blobs.deleted) != 0 {
					t.Errorf("blob deleted on rejected request")
				}
				return
			}
			if err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, ok := repo.items[tt.id]; ok {
				t.Errorf("row still present")
			}
			if len(blobs.deleted) != 1 || blobs.deleted[0] != "s1" {
				t.Errorf("deleted blobs = %v", blobs.deleted)
			}
		})
	}
}

func TestAttachmentService_Listing(t *testing.T) {
	svc, _, _ := newAttachmentFixture(
		models.Attachment{ID: "a1", UserID: "user-1", StorageID: "s1", ConversationID: strPtr("c1")},
		models.Attachment{ID: "a2", UserID: "user-1", StorageID: "s2"},
		models.Attachment{ID: "a3", UserID: "user-2", StorageID: "s3", ConversationID: strPtr("c2")},
	)
	ctx := context.Background()

	mine, _ := svc.ListForUser(ctx, owner)
	if len(mine) != 2 {
		t.Errorf("ListForUser = %d, want 2", len(mine))
	}
	for _, a := range mine {
		if a.URL == "" {
			t.Errorf("attachment %s has no url", a.ID)
		}
	}

	inConv, _ := svc.ListForConversation(ctx, "c1", owner)
	if len(inConv) != 1 || inConv[0].ID != "a1" {
		t.Errorf("ListForConversation = %+v", inConv)
	}
	others, _ := svc.ListForConversation(ctx, "c2", owner)
	if len(others) != 0 {
		t.Errorf("listed another user's conversation attachments")
	}

	if _, err := svc.Get(ctx, "a3", owner); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get other user's attachment error = %v", err)
	}
}

func TestAttachmentService_UpdateTokenCount(t *testing.T) {
	svc, repo, _ := newAttachmentFixture(
		models.Attachment{ID: "a1", UserID: "user-1"},
		models.Attachment{ID: "a2", UserID: "user-1"},
	)
	if err := svc.UpdateTokenCount(context.Background(), []string{"a1", "a2"}, 250); err != nil {
		t.Fatalf("UpdateTokenCount() error = %v", err)
	}
	for _, id := range []string{"a1", "a2"} {
		if p := repo.items[id].PromptTokens; p == nil || *p != 250 {
			t.Errorf("%s prompt tokens = %v", id, p)
		}
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"workbridge/internal/apperrors"
	"workbridge/internal/model"
)

func TestNotificationBoxLifecycle(t *testing.T) {
	repo := &fakeNotificationRepo{}
	box := NewNotificationBox(repo)
	ctx := context.Background()

	var firstID string
	for i := 0; i < 3; i++ {
		id, err := repo.Insert(ctx, &model.Notification{
			UserID:    "bob",
			Type:      model.NotificationProposal,
			Message:   "m",
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("seed insert: %v", err)
		}
		if i == 0 {
			firstID = id
		}
	}

	count, err := box.CountUnread(ctx, "bob")
	if err != nil || count != 3 {
		t.Fatalf("CountUnread = %d, %v, want 3", count, err)
	}

	if err := box.MarkRead(ctx, firstID, "bob"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if count, _ = box.CountUnread(ctx, "bob"); count != 2 {
		t.Errorf("unread after single read = %d, want 2", count)
	}

	marked, err := box.MarkAllRead(ctx, "bob")
	if err != nil || marked != 2 {
		t.Fatalf("MarkAllRead = %d, %v, want 2", marked, err)
	}

	if err := box.Delete(ctx, firstID, "bob"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	listed, err := box.List(ctx, "bob", 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed.Data) != 2 {
		t.Errorf("visible notifications = %d, want 2 after delete", len(listed.Data))
	}
}

func TestNotificationBoxOwnership(t *testing.T) {
	repo := &fakeNotificationRepo{}
	box := NewNotificationBox(repo)
	ctx := context.Background()

	id, err := repo.Insert(ctx, &model.Notification{UserID: "bob", Type: model.NotificationSystem, Message: "m"})
	if err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	// Another user acting on the record sees NotFound, never Forbidden.
	if err := box.MarkRead(ctx, id, "mallory"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("foreign MarkRead: got %v, want not found", err)
	}
	if err := box.Delete(ctx, id, "mallory"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("foreign Delete: got %v, want not found", err)
	}
}

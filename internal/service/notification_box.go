package service

import (
	"context"
	"fmt"

	"workbridge/internal/apperrors"
	"workbridge/internal/db"
	"workbridge/internal/model"
	"workbridge/internal/repo"
)

// NotificationBox is the owning user's view of their notifications:
// list, read, delete. Creation belongs to the fan-out only.
type NotificationBox interface {
	List(ctx context.Context, callerID string, page int64) (*db.PaginatedResult[model.Notification], error)
	CountUnread(ctx context.Context, callerID string) (int64, error)
	MarkRead(ctx context.Context, notificationID, callerID string) error
	MarkAllRead(ctx context.Context, callerID string) (int64, error)
	Delete(ctx context.Context, notificationID, callerID string) error
}

type notificationBox struct {
	notifications repo.NotificationRepository
}

func NewNotificationBox(notifications repo.NotificationRepository) NotificationBox {
	return &notificationBox{notifications: notifications}
}

func (b *notificationBox) List(ctx context.Context, callerID string, page int64) (*db.PaginatedResult[model.Notification], error) {
	return b.notifications.ListForUser(ctx, callerID, page)
}

func (b *notificationBox) CountUnread(ctx context.Context, callerID string) (int64, error) {
	return b.notifications.CountUnread(ctx, callerID)
}

func (b *notificationBox) MarkRead(ctx context.Context, notificationID, callerID string) error {
	ok, err := b.notifications.MarkRead(ctx, notificationID, callerID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: notification", apperrors.ErrNotFound)
	}
	return nil
}

func (b *notificationBox) MarkAllRead(ctx context.Context, callerID string) (int64, error) {
	return b.notifications.MarkAllRead(ctx, callerID)
}

func (b *notificationBox) Delete(ctx context.Context, notificationID, callerID string) error {
	ok, err := b.notifications.SoftDelete(ctx, notificationID, callerID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: notification", apperrors.ErrNotFound)
	}
	return nil
}

package repo

import (
	"context"
	"fmt"

	"workbridge/internal/db"
	"workbridge/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type NotificationRepository interface {
	Insert(ctx context.Context, n *model.Notification) (string, error)
	ListForUser(ctx context.Context, userID string, page int64) (*db.PaginatedResult[model.Notification], error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, notificationID, userID string) (bool, error)
	MarkEmailSent(ctx context.Context, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	SoftDelete(ctx context.Context, notificationID, userID string) (bool, error)
}

type notificationRepository struct {
	mongoRepo *db.Repository[model.Notification]
	logger    *zap.Logger
}

func NewNotificationRepository(repo *db.Repository[model.Notification], logger *zap.Logger) NotificationRepository {
	return &notificationRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *notificationRepository) Insert(ctx context.Context, n *model.Notification) (string, error) {
	if n == nil {
		return "", ErrInvalidDocument
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.Create(ctx, *n)
	if err != nil {
		return "", fmt.Errorf("insert notification failed: %w", err)
	}

	insertedID := ""
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		insertedID = oid.Hex()
	}
	return insertedID, nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID string, page int64) (*db.PaginatedResult[model.Notification], error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("user_id", userID).Eq("deleted", false).Build()
	return r.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
		Page:     page,
		PageSize: 20,
		SortBy:   "created_at",
		SortDesc: true,
	})
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("user_id", userID).Eq("read", false).Eq("deleted", false).Build()
	return r.mongoRepo.Count(ctx, filter)
}

func (r *notificationRepository) MarkRead(ctx context.Context, notificationID, userID string) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		return false, ErrInvalidID
	}

	result, err := r.mongoRepo.Update(ctx,
		bson.M{"_id": objectID, "user_id": userID},
		bson.M{"read": true},
	)
	if err != nil {
		return false, fmt.Errorf("mark notification read failed: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *notificationRepository) MarkEmailSent(ctx context.Context, notificationID string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.mongoRepo.UpdateByID(ctx, notificationID, bson.M{"email_sent": true})
	if err != nil {
		return fmt.Errorf("mark email sent failed: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.UpdateMany(ctx,
		bson.M{"user_id": userID, "read": false},
		bson.M{"read": true},
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read failed: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *notificationRepository) SoftDelete(ctx context.Context, notificationID, userID string) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		return false, ErrInvalidID
	}

	result, err := r.mongoRepo.Update(ctx,
		bson.M{"_id": objectID, "user_id": userID},
		bson.M{"deleted": true},
	)
	if err != nil {
		return false, fmt.Errorf("delete notification failed: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

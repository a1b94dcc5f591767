package repo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"workbridge/internal/db"
	"workbridge/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) (string, error)
	GetByID(ctx context.Context, messageID string) (*model.Message, error)
	ListPage(ctx context.Context, conversationID, viewerID string, page int64) (*db.PaginatedResult[model.Message], error)
	CountUnread(ctx context.Context, conversationID, receiverID string) (int64, error)
	MarkAllRead(ctx context.Context, conversationID, receiverID string, at time.Time) (int64, error)
	MarkRead(ctx context.Context, messageID, receiverID string, at time.Time) (bool, error)
	ApplyEdit(ctx context.Context, messageID, newText string, removedURLs []string, newAttachments []model.Attachment, at time.Time) error
	AddDeletedBy(ctx context.Context, messageID, userID string) error
	AddReaction(ctx context.Context, messageID string, reaction model.Reaction) error
	RemoveReaction(ctx context.Context, messageID string, reaction model.Reaction) error
	Search(ctx context.Context, userID, query string, page int64) (*db.PaginatedResult[model.Message], error)
}

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (m *messageRepository) Insert(ctx context.Context, msg *model.Message) (string, error) {
	if msg == nil {
		return "", ErrInvalidDocument
	}
	if msg.ConversationID.IsZero() {
		return "", ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return "", err
			}
		}

		result, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			insertedID := ""
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				insertedID = oid.Hex()
			}
			m.logger.Info("message inserted",
				zap.String("inserted_id", insertedID),
				zap.String("conversation_id", msg.ConversationID.Hex()),
				zap.Int("attempt", attempt+1),
			)
			return insertedID, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("conversation_id", msg.ConversationID.Hex()),
	)
	return "", fmt.Errorf("insert message failed: %w", lastErr)
}

func (m *messageRepository) GetByID(ctx context.Context, messageID string) (*model.Message, error) {
	if messageID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	return msg, nil
}

// ListPage returns one page of a conversation's log, oldest first, with
// rows the viewer soft-deleted filtered out.
func (m *messageRepository) ListPage(ctx context.Context, conversationID, viewerID string, page int64) (*db.PaginatedResult[model.Message], error) {
	if conversationID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		ObjectID("conversation_id", conversationID).
		Ne("deleted_by", viewerID).
		Build()

	result, err := m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
		Page:     page,
		PageSize: 30,
		SortBy:   "created_at",
		SortDesc: false,
	})
	if err != nil {
		m.logger.Error("failed to list messages",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return result, nil
}

func (m *messageRepository) CountUnread(ctx context.Context, conversationID, receiverID string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		ObjectID("conversation_id", conversationID).
		Eq("receiver_id", receiverID).
		Eq("read", false).
		Ne("deleted_by", receiverID).
		Build()
	return m.mongoRepo.Count(ctx, filter)
}

// MarkAllRead flips every unread message addressed to receiverID in the
// conversation to read/seen and returns how many changed.
func (m *messageRepository) MarkAllRead(ctx context.Context, conversationID, receiverID string, at time.Time) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		ObjectID("conversation_id", conversationID).
		Eq("receiver_id", receiverID).
		Eq("read", false).
		Build()

	result, err := m.mongoRepo.UpdateMany(ctx, filter, bson.M{
		"read":    true,
		"read_at": at,
		"status":  model.MessageStatusSeen,
	})
	if err != nil {
		return 0, fmt.Errorf("mark conversation read failed: %w", err)
	}
	return result.ModifiedCount, nil
}

func (m *messageRepository) MarkRead(ctx context.Context, messageID, receiverID string, at time.Time) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return false, ErrInvalidID
	}

	filter := bson.M{"_id": objectID, "receiver_id": receiverID, "read": false}
	result, err := m.mongoRepo.Update(ctx, filter, bson.M{
		"read":    true,
		"read_at": at,
		"status":  model.MessageStatusSeen,
	})
	if err != nil {
		return false, fmt.Errorf("mark message read failed: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (m *messageRepository) ApplyEdit(ctx context.Context, messageID, newText string, removedURLs []string, newAttachments []model.Attachment, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return ErrInvalidID
	}

	set := bson.M{
		"is_edited": true,
		"edited_at": at,
	}
	if newText != "" {
		set["text"] = newText
	}

	// Removal by URL match and append run as separate updates; Mongo rejects
	// $pull and $push on the same field in one document.
	if len(removedURLs) > 0 {
		_, err = m.mongoRepo.UpdateRaw(ctx, bson.M{"_id": objectID}, bson.M{
			"$pull": bson.M{"attachments": bson.M{"url": bson.M{"$in": removedURLs}}},
		})
		if err != nil {
			return fmt.Errorf("remove attachments failed: %w", err)
		}
	}

	update := bson.M{"$set": set}
	if len(newAttachments) > 0 {
		update["$push"] = bson.M{"attachments": bson.M{"$each": newAttachments}}
	}
	if _, err = m.mongoRepo.UpdateRaw(ctx, bson.M{"_id": objectID}, update); err != nil {
		return fmt.Errorf("apply edit failed: %w", err)
	}
	return nil
}

func (m *messageRepository) AddDeletedBy(ctx context.Context, messageID, userID string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return ErrInvalidID
	}

	_, err = m.mongoRepo.UpdateRaw(ctx, bson.M{"_id": objectID}, bson.M{
		"$addToSet": bson.M{"deleted_by": userID},
	})
	if err != nil {
		return fmt.Errorf("soft delete failed: %w", err)
	}
	return nil
}

func (m *messageRepository) AddReaction(ctx context.Context, messageID string, reaction model.Reaction) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return ErrInvalidID
	}

	_, err = m.mongoRepo.UpdateRaw(ctx, bson.M{"_id": objectID}, bson.M{
		"$addToSet": bson.M{"reactions": reaction},
	})
	if err != nil {
		return fmt.Errorf("add reaction failed: %w", err)
	}
	return nil
}

func (m *messageRepository) RemoveReaction(ctx context.Context, messageID string, reaction model.Reaction) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return ErrInvalidID
	}

	_, err = m.mongoRepo.UpdateRaw(ctx, bson.M{"_id": objectID}, bson.M{
		"$pull": bson.M{"reactions": bson.M{"user_id": reaction.UserID, "emoji": reaction.Emoji}},
	})
	if err != nil {
		return fmt.Errorf("remove reaction failed: %w", err)
	}
	return nil
}

// Search finds the caller's messages (either direction) whose text contains
// the query, excluding rows the caller soft-deleted. The query is end-user
// input, so it is quoted before it reaches $regex: "1+1" must match the
// literal text and an unbalanced "(" must not error the request.
func (m *messageRepository) Search(ctx context.Context, userID, query string, page int64) (*db.PaginatedResult[model.Message], error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Or(
			bson.M{"sender_id": userID},
			bson.M{"receiver_id": userID},
		).
		Contains("text", regexp.QuoteMeta(query)).
		Ne("deleted_by", userID).
		Build()

	result, err := m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
		Page:     page,
		PageSize: 20,
		SortBy:   "created_at",
		SortDesc: true,
	})
	if err != nil {
		return nil, fmt.Errorf("search messages failed: %w", err)
	}
	return result, nil
}

func waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

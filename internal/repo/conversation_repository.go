package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workbridge/internal/db"
	"workbridge/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type ConversationRepository interface {
	GetByID(ctx context.Context, conversationID string) (*model.Conversation, error)
	CreateOrGet(ctx context.Context, conv *model.Conversation) (*model.Conversation, bool, error)
	ListForUser(ctx context.Context, userID string, page, limit int64) ([]model.Conversation, error)
	UpdateLastMessage(ctx context.Context, conversationID string, lm *model.LastMessage) error
	SetFlag(ctx context.Context, conversationID, userID, field string, on bool) error
}

type conversationRepository struct {
	mongoRepo *db.Repository[model.Conversation]
	logger    *zap.Logger
}

func NewConversationRepository(repo *db.Repository[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *conversationRepository) GetByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	if conversationID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conv, err := r.mongoRepo.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		r.logger.Error("failed to fetch conversation",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}
	return conv, nil
}

// CreateOrGet upserts on the unique pair_key. Exactly one of N concurrent
// first contacts creates the row; the rest read it back. The bool result is
// true when this call was the creator.
func (r *conversationRepository) CreateOrGet(ctx context.Context, conv *model.Conversation) (*model.Conversation, bool, error) {
	if conv == nil {
		return nil, false, ErrInvalidDocument
	}
	if conv.PairKey == "" {
		return nil, false, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	existing, err := r.mongoRepo.FindOne(ctx, bson.M{"pair_key": conv.PairKey})
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to look up conversation: %w", err)
	}

	setOnInsert := bson.M{
		"pair_key":        conv.PairKey,
		"participant_ids": conv.ParticipantIds,
		"context":         conv.Context,
		"last_message":    nil,
		"muted_by":        []string{},
		"pinned_by":       []string{},
		"created_at":      conv.CreatedAt,
		"updated_at":      conv.UpdatedAt,
	}

	result, created, err := r.mongoRepo.Upsert(ctx, bson.M{"pair_key": conv.PairKey}, setOnInsert)
	if err != nil {
		// A concurrent writer can still win between the lookup and the
		// upsert; the unique index turns that into a duplicate-key error
		// and the winner's row is authoritative.
		if db.IsDuplicateKeyError(err) {
			winner, findErr := r.mongoRepo.FindOne(ctx, bson.M{"pair_key": conv.PairKey})
			if findErr != nil {
				return nil, false, fmt.Errorf("failed to read conversation after upsert race: %w", findErr)
			}
			return winner, false, nil
		}
		r.logger.Error("failed to upsert conversation",
			zap.String("pair_key", conv.PairKey),
			zap.Error(err),
		)
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}

	r.logger.Info("conversation resolved",
		zap.String("pair_key", conv.PairKey),
		zap.Bool("created", created),
	)
	return result, created, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID string, page, limit int64) ([]model.Conversation, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("participant_ids", userID).Build()
	result, err := r.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
		Page:     page,
		PageSize: limit,
		SortBy:   "updated_at",
		SortDesc: true,
	})
	if err != nil {
		r.logger.Error("failed to list conversations",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return result.Data, nil
}

func (r *conversationRepository) UpdateLastMessage(ctx context.Context, conversationID string, lm *model.LastMessage) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.mongoRepo.UpdateByID(ctx, conversationID, bson.M{
		"last_message": lm,
		"updated_at":   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to update last message: %w", err)
	}
	return nil
}

// SetFlag adds or removes userID from a per-user set field (muted_by,
// pinned_by).
func (r *conversationRepository) SetFlag(ctx context.Context, conversationID, userID, field string, on bool) error {
	if field != "muted_by" && field != "pinned_by" {
		return fmt.Errorf("unknown conversation flag field %q", field)
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return ErrInvalidID
	}

	op := "$addToSet"
	if !on {
		op = "$pull"
	}
	_, err = r.mongoRepo.UpdateRaw(ctx, bson.M{"_id": objectID}, bson.M{op: bson.M{field: userID}})
	if err != nil {
		return fmt.Errorf("failed to update conversation flag: %w", err)
	}
	return nil
}

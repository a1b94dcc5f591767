package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workbridge/internal/apperrors"
	"workbridge/internal/db"
	"workbridge/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ProposalRepository exposes single-document primitives. The accept
// transaction composes them under a session context supplied by the caller,
// so every method must pass ctx straight through to the driver.
type ProposalRepository interface {
	Create(ctx context.Context, p *model.Proposal) (string, error)
	GetByID(ctx context.Context, proposalID string) (*model.Proposal, error)
	FindByTaskAndUser(ctx context.Context, taskID, fromUser string) (*model.Proposal, error)
	ExistsAccepted(ctx context.Context, taskID primitive.ObjectID) (bool, error)
	SetStatusIf(ctx context.Context, proposalID primitive.ObjectID, from, to string) (bool, error)
	MarkOthersNotSelected(ctx context.Context, taskID, exceptID primitive.ObjectID) (int64, error)
	Resubmit(ctx context.Context, proposalID primitive.ObjectID, message string, budget *float64, duration string) (bool, error)
	ListForTask(ctx context.Context, taskID string) ([]model.Proposal, error)
	ListByUser(ctx context.Context, fromUser string, page int64) (*db.PaginatedResult[model.Proposal], error)
}

type proposalRepository struct {
	mongoRepo *db.Repository[model.Proposal]
	logger    *zap.Logger
}

func NewProposalRepository(repo *db.Repository[model.Proposal], logger *zap.Logger) ProposalRepository {
	return &proposalRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *proposalRepository) Create(ctx context.Context, p *model.Proposal) (string, error) {
	if p == nil {
		return "", ErrInvalidDocument
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.Create(ctx, *p)
	if err != nil {
		// The unique (task_id, from_user) index rejects a second live
		// proposal from the same provider.
		if db.IsDuplicateKeyError(err) {
			return "", apperrors.ErrDuplicateEntry
		}
		r.logger.Error("failed to insert proposal",
			zap.String("task_id", p.TaskID.Hex()),
			zap.String("from_user", p.FromUser),
			zap.Error(err),
		)
		return "", fmt.Errorf("insert proposal failed: %w", err)
	}

	insertedID := ""
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		insertedID = oid.Hex()
	}
	return insertedID, nil
}

func (r *proposalRepository) GetByID(ctx context.Context, proposalID string) (*model.Proposal, error) {
	if proposalID == "" {
		return nil, ErrInvalidID
	}

	p, err := r.mongoRepo.FindByID(ctx, proposalID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch proposal: %w", err)
	}
	return p, nil
}

func (r *proposalRepository) FindByTaskAndUser(ctx context.Context, taskID, fromUser string) (*model.Proposal, error) {
	filter := db.NewFilter().
		ObjectID("task_id", taskID).
		Eq("from_user", fromUser).
		Build()

	p, err := r.mongoRepo.FindOne(ctx, filter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch proposal: %w", err)
	}
	return p, nil
}

func (r *proposalRepository) ExistsAccepted(ctx context.Context, taskID primitive.ObjectID) (bool, error) {
	return r.mongoRepo.Exists(ctx, bson.M{
		"task_id": taskID,
		"status":  model.ProposalStatusAccepted,
	})
}

// SetStatusIf flips status from -> to only when the document still holds
// from. The false return is how concurrent accepts lose cleanly.
func (r *proposalRepository) SetStatusIf(ctx context.Context, proposalID primitive.ObjectID, from, to string) (bool, error) {
	result, err := r.mongoRepo.Update(ctx,
		bson.M{"_id": proposalID, "status": from},
		bson.M{"status": to, "updated_at": time.Now().UTC()},
	)
	if err != nil {
		return false, fmt.Errorf("update proposal status failed: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *proposalRepository) MarkOthersNotSelected(ctx context.Context, taskID, exceptID primitive.ObjectID) (int64, error) {
	result, err := r.mongoRepo.UpdateMany(ctx,
		bson.M{
			"task_id": taskID,
			"_id":     bson.M{"$ne": exceptID},
			"status":  model.ProposalStatusPending,
		},
		bson.M{"status": model.ProposalStatusNotSelected, "updated_at": time.Now().UTC()},
	)
	if err != nil {
		return 0, fmt.Errorf("mark proposals not-selected failed: %w", err)
	}
	return result.ModifiedCount, nil
}

// Resubmit overwrites a terminal row back to pending. Conditional on the
// stored status still being resubmittable, so a concurrent accept cannot be
// clobbered.
func (r *proposalRepository) Resubmit(ctx context.Context, proposalID primitive.ObjectID, message string, budget *float64, duration string) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	set := bson.M{
		"status":     model.ProposalStatusPending,
		"updated_at": time.Now().UTC(),
	}
	if message != "" {
		set["message"] = message
	}
	if budget != nil {
		set["proposed_budget"] = budget
	}
	if duration != "" {
		set["proposed_duration"] = duration
	}

	filter := bson.M{
		"_id": proposalID,
		"status": bson.M{"$in": []string{
			model.ProposalStatusWithdrawn,
			model.ProposalStatusRejected,
			model.ProposalStatusNotSelected,
		}},
	}
	result, err := r.mongoRepo.Update(ctx, filter, set)
	if err != nil {
		return false, fmt.Errorf("resubmit proposal failed: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *proposalRepository) ListForTask(ctx context.Context, taskID string) ([]model.Proposal, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("task_id", taskID).Build()
	return r.mongoRepo.FindAll(ctx, filter)
}

func (r *proposalRepository) ListByUser(ctx context.Context, fromUser string, page int64) (*db.PaginatedResult[model.Proposal], error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("from_user", fromUser).Build()
	return r.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
		Page:     page,
		PageSize: 20,
		SortBy:   "updated_at",
		SortDesc: true,
	})
}

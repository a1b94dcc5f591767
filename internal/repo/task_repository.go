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

type TaskRepository interface {
	GetByID(ctx context.Context, taskID string) (*model.Task, error)
	AssignProvider(ctx context.Context, taskID primitive.ObjectID, providerID string) error
}

type taskRepository struct {
	mongoRepo *db.Repository[model.Task]
	logger    *zap.Logger
}

func NewTaskRepository(repo *db.Repository[model.Task], logger *zap.Logger) TaskRepository {
	return &taskRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *taskRepository) GetByID(ctx context.Context, taskID string) (*model.Task, error) {
	if taskID == "" {
		return nil, ErrInvalidID
	}

	task, err := r.mongoRepo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch task: %w", err)
	}
	return task, nil
}

// AssignProvider moves the task to in-progress and appends the provider to
// assigned_to. $addToSet keeps the append idempotent. Runs inside the
// accept transaction, so no timeout is layered on top of the session ctx.
func (r *taskRepository) AssignProvider(ctx context.Context, taskID primitive.ObjectID, providerID string) error {
	_, err := r.mongoRepo.UpdateRaw(ctx, bson.M{"_id": taskID}, bson.M{
		"$set": bson.M{
			"status":     model.TaskStatusInProgress,
			"updated_at": time.Now().UTC(),
		},
		"$addToSet": bson.M{"assigned_to": providerID},
	})
	if err != nil {
		r.logger.Error("failed to assign provider",
			zap.String("task_id", taskID.Hex()),
			zap.String("provider_id", providerID),
			zap.Error(err),
		)
		return fmt.Errorf("assign provider failed: %w", err)
	}
	return nil
}

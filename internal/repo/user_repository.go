package repo

import (
	"context"
	"errors"
	"fmt"

	"workbridge/internal/db"
	"workbridge/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserRepository interface {
	GetByUserID(ctx context.Context, userID string) (*model.User, error)
	Exists(ctx context.Context, userID string) (bool, error)
}

type userRepository struct {
	mongoRepo *db.Repository[model.User]
}

func NewUserRepository(repo *db.Repository[model.User]) UserRepository {
	return &userRepository{
		mongoRepo: repo,
	}
}

func (r *userRepository) GetByUserID(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.mongoRepo.FindOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return user, nil
}

func (r *userRepository) Exists(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	return r.mongoRepo.Exists(ctx, bson.M{"user_id": userID, "is_active": true})
}

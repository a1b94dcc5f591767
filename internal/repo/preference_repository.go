package repo

import (
	"context"
	"errors"

	"workbridge/internal/db"
	"workbridge/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// PreferenceRepository is read-only: preference records are written by the
// surrounding profile CRUD, not by this core.
type PreferenceRepository interface {
	GetForUser(ctx context.Context, userID string) (model.Preference, error)
}

type preferenceRepository struct {
	mongoRepo *db.Repository[model.Preference]
	logger    *zap.Logger
}

func NewPreferenceRepository(repo *db.Repository[model.Preference], logger *zap.Logger) PreferenceRepository {
	return &preferenceRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// GetForUser returns the stored record, or the everything-on default when
// the user has none yet.
func (r *preferenceRepository) GetForUser(ctx context.Context, userID string) (model.Preference, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	pref, err := r.mongoRepo.FindOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.DefaultPreference(userID), nil
		}
		r.logger.Warn("failed to load notification preferences, using defaults",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return model.DefaultPreference(userID), err
	}
	return *pref, nil
}

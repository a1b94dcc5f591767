package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used by the core.
const (
	ConversationsCollection = "conversations"
	MessagesCollection      = "messages"
	ProposalsCollection     = "proposals"
	TasksCollection         = "tasks"
	NotificationsCollection = "notifications"
	UsersCollection         = "users"
	PreferencesCollection   = "notification_preferences"
)

// EnsureIndexes creates the indexes the core depends on. The two unique
// indexes are load-bearing: pair_key closes the concurrent first-contact
// race on conversations, and (task_id, from_user) is what makes
// resubmission an overwrite instead of a duplicate insert.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	type indexSpec struct {
		collection string
		model      mongo.IndexModel
	}

	specs := []indexSpec{
		{
			collection: ConversationsCollection,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "pair_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		{
			collection: ConversationsCollection,
			model: mongo.IndexModel{
				Keys: bson.D{{Key: "participant_ids", Value: 1}, {Key: "updated_at", Value: -1}},
			},
		},
		{
			collection: MessagesCollection,
			model: mongo.IndexModel{
				Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
			},
		},
		{
			collection: MessagesCollection,
			model: mongo.IndexModel{
				Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "read", Value: 1}},
			},
		},
		{
			collection: ProposalsCollection,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "task_id", Value: 1}, {Key: "from_user", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		{
			collection: ProposalsCollection,
			model: mongo.IndexModel{
				Keys: bson.D{{Key: "task_id", Value: 1}, {Key: "status", Value: 1}},
			},
		},
		{
			collection: NotificationsCollection,
			model: mongo.IndexModel{
				Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			},
		},
		{
			collection: UsersCollection,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for _, spec := range specs {
		if _, err := database.Collection(spec.collection).Indexes().CreateOne(ctx, spec.model); err != nil {
			return fmt.Errorf("create index on %s: %w", spec.collection, err)
		}
	}

	return nil
}

// IsDuplicateKeyError reports whether err is a unique-index violation.
func IsDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

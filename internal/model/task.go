package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Task status values mutated by the proposal engine. Publication and
// completion are owned by the surrounding task CRUD, not this core.
const (
	TaskStatusPublished  = "published"
	TaskStatusInProgress = "in-progress"
	TaskStatusCompleted  = "completed"
	TaskStatusWithdrawn  = "withdrawn"
)

// Task is the collaborator entity the accept transaction writes to.
type Task struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OwnerID    string             `json:"ownerId" bson:"owner_id"`
	Title      string             `json:"title" bson:"title"`
	Status     string             `json:"status" bson:"status"`
	AssignedTo []string           `json:"assignedTo" bson:"assigned_to"`
	CreatedAt  time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updatedAt" bson:"updated_at"`
}

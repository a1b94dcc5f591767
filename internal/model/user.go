package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the slice of the user document this core reads. Full user CRUD
// lives outside the core; we only need existence checks, display identity
// and the email address for notification dispatch.
type User struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"userId" bson:"user_id"`
	Username  string             `json:"username" bson:"username"`
	Email     string             `json:"email" bson:"email"`
	FirstName string             `json:"firstName" bson:"first_name"`
	LastName  string             `json:"lastName" bson:"last_name"`
	Avatar    string             `json:"avatar" bson:"avatar"`
	IsActive  bool               `json:"isActive" bson:"is_active"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}

// UserSummary is the display identity resolved for inbox rows.
type UserSummary struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Summary returns the display identity for this user.
func (u *User) Summary() UserSummary {
	name := u.Username
	if name == "" {
		name = u.FirstName + " " + u.LastName
	}
	return UserSummary{
		UserID:   u.UserID,
		Username: name,
		Avatar:   u.Avatar,
	}
}

package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification categories. Each maps to a per-user preference flag.
const (
	NotificationMessage  = "message"
	NotificationProposal = "proposal"
	NotificationTask     = "task"
	NotificationSystem   = "system"
	NotificationAdmin    = "admin"
)

// Notification is one in-app record created by the fan-out.
type Notification struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"userId" bson:"user_id"`
	Type      string             `json:"type" bson:"type"`
	Title     string             `json:"title,omitempty" bson:"title,omitempty"`
	Message   string             `json:"message" bson:"message"`
	Link      string             `json:"link,omitempty" bson:"link,omitempty"`
	Read      bool               `json:"read" bson:"read"`
	Deleted   bool               `json:"-" bson:"deleted"`
	EmailSent bool               `json:"emailSent" bson:"email_sent"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}

// Preference is the read-only per-user notification preference record.
type Preference struct {
	UserID             string `json:"userId" bson:"user_id"`
	InAppNotifications bool   `json:"inAppNotifications" bson:"in_app_notifications"`
	EmailNotifications bool   `json:"emailNotifications" bson:"email_notifications"`
	MessageAlerts      bool   `json:"messageAlerts" bson:"message_alerts"`
	TaskAlerts         bool   `json:"taskAlerts" bson:"task_alerts"`
	ProposalAlerts     bool   `json:"proposalAlerts" bson:"proposal_alerts"`
	SystemAlerts       bool   `json:"systemAlerts" bson:"system_alerts"`
}

// DefaultPreference is used when a user has no stored record: everything on.
func DefaultPreference(userID string) Preference {
	return Preference{
		UserID:             userID,
		InAppNotifications: true,
		EmailNotifications: true,
		MessageAlerts:      true,
		TaskAlerts:         true,
		ProposalAlerts:     true,
		SystemAlerts:       true,
	}
}

// CategoryEnabled reports whether the flag for the given category is on.
// Admin notifications are never gated by a user flag.
func (p Preference) CategoryEnabled(category string) bool {
	switch category {
	case NotificationMessage:
		return p.MessageAlerts
	case NotificationTask:
		return p.TaskAlerts
	case NotificationProposal:
		return p.ProposalAlerts
	case NotificationSystem:
		return p.SystemAlerts
	case NotificationAdmin:
		return true
	}
	return false
}

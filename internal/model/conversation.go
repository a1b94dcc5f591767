package model

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is the single persistent thread between exactly two users,
// independent of how many tasks or proposals they discuss.
type Conversation struct {
	ID             primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	PairKey        string               `json:"-" bson:"pair_key"`
	ParticipantIds []string             `json:"participantIds" bson:"participant_ids"`
	Context        *ConversationContext `json:"context,omitempty" bson:"context,omitempty"`
	LastMessage    *LastMessage         `json:"lastMessage" bson:"last_message"`
	MutedBy        []string             `json:"mutedBy" bson:"muted_by"`
	PinnedBy       []string             `json:"pinnedBy" bson:"pinned_by"`
	CreatedAt      time.Time            `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time            `json:"updatedAt" bson:"updated_at"`
}

// ConversationContext records what a conversation was opened about.
// It is written once at creation time and never updated afterwards.
type ConversationContext struct {
	TaskID     string `json:"taskId,omitempty" bson:"task_id,omitempty"`
	ProposalID string `json:"proposalId,omitempty" bson:"proposal_id,omitempty"`
}

// LastMessage stores the most recent message preview for inbox display.
type LastMessage struct {
	MessageID string    `json:"messageId" bson:"message_id"`
	Content   string    `json:"content" bson:"content"`
	SenderID  string    `json:"senderId" bson:"sender_id"`
	SentAt    time.Time `json:"sentAt" bson:"sent_at"`
}

// PairKey builds the canonical key for an unordered participant pair.
// The unique index on this field is what keeps "one conversation per pair"
// true under concurrent first contacts.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIds {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	for _, id := range c.ParticipantIds {
		if id != userID {
			return id
		}
	}
	return ""
}

// SameContext reports whether the stored context matches the supplied one.
// A nil supplied context counts as matching whatever is stored.
func (c *Conversation) SameContext(ctx *ConversationContext) bool {
	if ctx == nil {
		return true
	}
	if c.Context == nil {
		return false
	}
	if ctx.TaskID != "" && ctx.TaskID != c.Context.TaskID {
		return false
	}
	if ctx.ProposalID != "" && ctx.ProposalID != c.Context.ProposalID {
		return false
	}
	return true
}

// InboxEntry is one row of a user's inbox listing.
type InboxEntry struct {
	Conversation Conversation `json:"conversation"`
	OtherUser    UserSummary  `json:"otherUser"`
	UnreadCount  int64        `json:"unreadCount"`
	Muted        bool         `json:"muted"`
	Pinned       bool         `json:"pinned"`
}

package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message status values. A message only ever moves sent -> seen; "delivered"
// exists as a label for transport acknowledgements and is never a lifecycle
// step of its own.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusSeen      = "seen"
)

// Attachment kinds. The set is closed: anything else is rejected at the edge.
const (
	AttachmentImage = "image"
	AttachmentVideo = "video"
	AttachmentAudio = "audio"
	AttachmentFile  = "file"
)

// Message is one entry in a conversation's ordered log.
type Message struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID  `json:"conversationId" bson:"conversation_id"`
	SenderID       string              `json:"senderId" bson:"sender_id"`
	ReceiverID     string              `json:"receiverId" bson:"receiver_id"`
	Text           string              `json:"text" bson:"text"`
	Attachments    []Attachment        `json:"attachments" bson:"attachments"`
	Status         string              `json:"status" bson:"status"`
	Read           bool                `json:"read" bson:"read"`
	ReadAt         *time.Time          `json:"readAt" bson:"read_at"`
	IsEdited       bool                `json:"isEdited" bson:"is_edited"`
	EditedAt       *time.Time          `json:"editedAt" bson:"edited_at"`
	ReplyTo        *primitive.ObjectID `json:"replyTo" bson:"reply_to"`
	Reactions      []Reaction          `json:"reactions" bson:"reactions"`
	DeletedBy      []string            `json:"-" bson:"deleted_by"`
	CreatedAt      time.Time           `json:"createdAt" bson:"created_at"`
}

// Attachment is a closed tagged payload: Type selects the shape, the
// remaining fields are common to all four kinds.
type Attachment struct {
	Type     string `json:"type" bson:"type"`
	URL      string `json:"url" bson:"url"`
	FileName string `json:"fileName" bson:"file_name"`
	FileSize int64  `json:"fileSize" bson:"file_size"`
	MimeType string `json:"mimeType" bson:"mime_type"`
}

// Reaction is one (emoji, user) entry; at most one exists per pair.
type Reaction struct {
	Emoji  string `json:"emoji" bson:"emoji"`
	UserID string `json:"userId" bson:"user_id"`
}

// ValidAttachmentType reports whether t is one of the enumerated kinds.
func ValidAttachmentType(t string) bool {
	switch t {
	case AttachmentImage, AttachmentVideo, AttachmentAudio, AttachmentFile:
		return true
	}
	return false
}

// DeletedFor reports whether userID has soft-deleted this message.
func (m *Message) DeletedFor(userID string) bool {
	for _, id := range m.DeletedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// HasReaction reports whether userID already reacted with emoji.
func (m *Message) HasReaction(userID, emoji string) bool {
	for _, r := range m.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			return true
		}
	}
	return false
}

package event

import "encoding/json"

// Server-to-client event names. conversation:new is the only reliable event;
// everything else is volatile and dropped when the recipient is offline.
const (
	EventMessageNew         = "message:new"
	EventMessageEdited      = "message:edited"
	EventMessageDeleted     = "message:deleted"
	EventMessageReaction    = "message:reaction"
	EventMessagesSeen       = "messagesSeen"
	EventConversationUpdate = "conversationUpdate"
	EventConversationNew    = "conversation:new"
	EventTyping             = "typing"
)

// Client-to-server event names.
const (
	EventClientTyping = "client_typing"
)

type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into a WsEvent. Marshal failures are impossible
// for the closed payload structs below, so they are swallowed.
func NewEvent(name string, payload any) WsEvent {
	raw, _ := json.Marshal(payload)
	return WsEvent{Event: name, Payload: raw}
}

// MessagesSeenPayload tells a sender their messages were read.
type MessagesSeenPayload struct {
	ConversationID string `json:"conversationId"`
	SeenBy         string `json:"seenBy"`
	Count          int64  `json:"count"`
	SeenAt         int64  `json:"seenAt"`
}

// MessageDeletedPayload announces a per-user soft delete.
type MessageDeletedPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	DeletedBy      string `json:"deletedBy"`
}

// ReactionPayload announces a reaction toggle.
type ReactionPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
	Emoji          string `json:"emoji"`
	Added          bool   `json:"added"`
}

// TypingPayload relays a typing indicator to the other participant.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

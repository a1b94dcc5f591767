package service

import (
	"context"
	"fmt"
	"time"

	"workbridge/internal/apperrors"
	"workbridge/internal/db"
	"workbridge/internal/event"
	"workbridge/internal/model"
	"workbridge/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SendMessageInput carries everything a send needs. Text may be empty when
// at least one attachment is present.
type SendMessageInput struct {
	ConversationID string
	SenderID       string
	Text           string
	Attachments    []model.Attachment
	ReplyTo        string
}

// EditMessageInput carries an edit. Attachment removal is by URL match;
// additions append.
type EditMessageInput struct {
	MessageID      string
	CallerID       string
	NewText        string
	RemovedURLs    []string
	NewAttachments []model.Attachment
}

// StartConversationResult reports how a first contact resolved.
type StartConversationResult struct {
	Conversation       *model.Conversation
	IsNew              bool
	IsDifferentContext bool
}

type ChatService interface {
	StartOrGetConversation(ctx context.Context, initiatorID, recipientID string, convCtx *model.ConversationContext) (*StartConversationResult, error)
	GetConversation(ctx context.Context, conversationID, callerID string, page int64) (*model.Conversation, *db.PaginatedResult[model.Message], error)
	ListInbox(ctx context.Context, callerID string, page, limit int64) ([]model.InboxEntry, error)
	SendMessage(ctx context.Context, in SendMessageInput) (*model.Message, error)
	EditMessage(ctx context.Context, in EditMessageInput) (*model.Message, error)
	DeleteMessage(ctx context.Context, messageID, callerID string) error
	MarkRead(ctx context.Context, messageID, callerID string) error
	MarkConversationRead(ctx context.Context, conversationID, callerID string) (int64, error)
	React(ctx context.Context, messageID, callerID, emoji string) (bool, error)
	SearchOwnMessages(ctx context.Context, callerID, query string, page int64) (*db.PaginatedResult[model.Message], error)
	SetMuted(ctx context.Context, conversationID, callerID string, on bool) error
	SetPinned(ctx context.Context, conversationID, callerID string, on bool) error
	OtherParticipant(ctx context.Context, conversationID, callerID string) (string, error)
}

type chatService struct {
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	users         repo.UserRepository
	router        Router
	notifier      Notifier
	logger        *zap.Logger
}

func NewChatService(
	conversations repo.ConversationRepository,
	messages repo.MessageRepository,
	users repo.UserRepository,
	router Router,
	notifier Notifier,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		router:        router,
		notifier:      notifier,
		logger:        logger,
	}
}

func (s *chatService) StartOrGetConversation(ctx context.Context, initiatorID, recipientID string, convCtx *model.ConversationContext) (*StartConversationResult, error) {
	if initiatorID == "" || recipientID == "" {
		return nil, fmt.Errorf("%w: missing participant", apperrors.ErrValidation)
	}
	if initiatorID == recipientID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", apperrors.ErrValidation)
	}

	exists, err := s.users.Exists(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: recipient", apperrors.ErrNotFound)
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		PairKey:        model.PairKey(initiatorID, recipientID),
		ParticipantIds: []string{initiatorID, recipientID},
		Context:        convCtx,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	resolved, created, err := s.conversations.CreateOrGet(ctx, conv)
	if err != nil {
		return nil, err
	}

	result := &StartConversationResult{
		Conversation: resolved,
		IsNew:        created,
	}
	if !created && convCtx != nil && !resolved.SameContext(convCtx) {
		// The existing thread is being reused under a new context; the
		// caller surfaces this to the user instead of opening a duplicate.
		result.IsDifferentContext = true
	}

	if created {
		s.router.EmitReliable(recipientID, event.EventConversationNew, resolved)
	}
	return result, nil
}

// participantConversation loads the conversation and enforces membership.
// Non-participants get NotFound so the resource's existence does not leak.
func (s *chatService) participantConversation(ctx context.Context, conversationID, callerID string) (*model.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil || !conv.HasParticipant(callerID) {
		return nil, fmt.Errorf("%w: conversation", apperrors.ErrNotFound)
	}
	return conv, nil
}

func (s *chatService) GetConversation(ctx context.Context, conversationID, callerID string, page int64) (*model.Conversation, *db.PaginatedResult[model.Message], error) {
	conv, err := s.participantConversation(ctx, conversationID, callerID)
	if err != nil {
		return nil, nil, err
	}

	msgs, err := s.messages.ListPage(ctx, conversationID, callerID, page)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

func (s *chatService) ListInbox(ctx context.Context, callerID string, page, limit int64) ([]model.InboxEntry, error) {
	convs, err := s.conversations.ListForUser(ctx, callerID, page, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]model.InboxEntry, 0, len(convs))
	for _, conv := range convs {
		otherID := conv.OtherParticipant(callerID)

		unread, err := s.messages.CountUnread(ctx, conv.ID.Hex(), callerID)
		if err != nil {
			s.logger.Warn("failed to count unread",
				zap.String("conversation_id", conv.ID.Hex()),
				zap.Error(err),
			)
		}

		summary := model.UserSummary{UserID: otherID}
		if other, err := s.users.GetByUserID(ctx, otherID); err == nil && other != nil {
			summary = other.Summary()
		}

		entries = append(entries, model.InboxEntry{
			Conversation: conv,
			OtherUser:    summary,
			UnreadCount:  unread,
			Muted:        contains(conv.MutedBy, callerID),
			Pinned:       contains(conv.PinnedBy, callerID),
		})
	}
	return entries, nil
}

func (s *chatService) SendMessage(ctx context.Context, in SendMessageInput) (*model.Message, error) {
	if in.Text == "" && len(in.Attachments) == 0 {
		return nil, fmt.Errorf("%w: message needs text or an attachment", apperrors.ErrValidation)
	}
	for _, a := range in.Attachments {
		if !model.ValidAttachmentType(a.Type) {
			return nil, fmt.Errorf("%w: unknown attachment type %q", apperrors.ErrValidation, a.Type)
		}
	}

	conv, err := s.participantConversation(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return nil, err
	}

	receiverID := conv.OtherParticipant(in.SenderID)
	now := time.Now().UTC()

	msg := &model.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		ReceiverID:     receiverID,
		Text:           in.Text,
		Attachments:    in.Attachments,
		Status:         model.MessageStatusSent,
		Reactions:      []model.Reaction{},
		DeletedBy:      []string{},
		CreatedAt:      now,
	}
	if in.ReplyTo != "" {
		replyID, err := primitive.ObjectIDFromHex(in.ReplyTo)
		if err != nil {
			return nil, fmt.Errorf("%w: bad replyTo id", apperrors.ErrValidation)
		}
		// Weak reference: the target is not required to exist and nothing
		// cascades through it.
		msg.ReplyTo = &replyID
	}

	insertedID, err := s.messages.Insert(ctx, msg)
	if err != nil {
		return nil, err
	}
	if oid, err := primitive.ObjectIDFromHex(insertedID); err == nil {
		msg.ID = oid
	}

	preview := in.Text
	if preview == "" {
		preview = attachmentPreview(in.Attachments)
	}
	if err := s.conversations.UpdateLastMessage(ctx, conv.ID.Hex(), &model.LastMessage{
		MessageID: insertedID,
		Content:   preview,
		SenderID:  in.SenderID,
		SentAt:    now,
	}); err != nil {
		s.logger.Warn("failed to update last message summary",
			zap.String("conversation_id", conv.ID.Hex()),
			zap.Error(err),
		)
	}

	// Push only after the durable write, and only to the receiver: the
	// sender renders its own optimistic copy and must not get an echo.
	s.router.EmitVolatile(receiverID, event.EventMessageNew, msg)
	s.router.EmitVolatile(receiverID, event.EventConversationUpdate, conv)

	s.notifier.Dispatch(NotifyRequest{
		TargetID:  receiverID,
		Category:  model.NotificationMessage,
		Message:   "You have a new message",
		Link:      "/messages/" + conv.ID.Hex(),
		ActorID:   in.SenderID,
		SendEmail: !contains(conv.MutedBy, receiverID),
	})

	return msg, nil
}

// participantMessage loads a message and enforces that the caller is one of
// the two participants.
func (s *chatService) participantMessage(ctx context.Context, messageID, callerID string) (*model.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || (msg.SenderID != callerID && msg.ReceiverID != callerID) {
		return nil, fmt.Errorf("%w: message", apperrors.ErrNotFound)
	}
	return msg, nil
}

func (s *chatService) EditMessage(ctx context.Context, in EditMessageInput) (*model.Message, error) {
	msg, err := s.participantMessage(ctx, in.MessageID, in.CallerID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != in.CallerID {
		return nil, fmt.Errorf("%w: only the sender may edit a message", apperrors.ErrForbidden)
	}
	if in.NewText == "" && len(in.RemovedURLs) == 0 && len(in.NewAttachments) == 0 {
		return nil, fmt.Errorf("%w: nothing to edit", apperrors.ErrValidation)
	}
	for _, a := range in.NewAttachments {
		if !model.ValidAttachmentType(a.Type) {
			return nil, fmt.Errorf("%w: unknown attachment type %q", apperrors.ErrValidation, a.Type)
		}
	}

	now := time.Now().UTC()
	if err := s.messages.ApplyEdit(ctx, in.MessageID, in.NewText, in.RemovedURLs, in.NewAttachments, now); err != nil {
		return nil, err
	}

	updated, err := s.messages.GetByID(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: message", apperrors.ErrNotFound)
	}

	s.router.EmitVolatile(updated.ReceiverID, event.EventMessageEdited, updated)
	return updated, nil
}

func (s *chatService) DeleteMessage(ctx context.Context, messageID, callerID string) error {
	msg, err := s.participantMessage(ctx, messageID, callerID)
	if err != nil {
		return err
	}
	if msg.DeletedFor(callerID) {
		// Idempotent: deleting twice is a no-op.
		return nil
	}

	if err := s.messages.AddDeletedBy(ctx, messageID, callerID); err != nil {
		return err
	}

	other := msg.ReceiverID
	if callerID == msg.ReceiverID {
		other = msg.SenderID
	}
	s.router.EmitVolatile(other, event.EventMessageDeleted, event.MessageDeletedPayload{
		ConversationID: msg.ConversationID.Hex(),
		MessageID:      messageID,
		DeletedBy:      callerID,
	})
	return nil
}

func (s *chatService) MarkRead(ctx context.Context, messageID, callerID string) error {
	msg, err := s.participantMessage(ctx, messageID, callerID)
	if err != nil {
		return err
	}
	if msg.ReceiverID != callerID {
		return fmt.Errorf("%w: only the receiver may mark a message read", apperrors.ErrForbidden)
	}
	if msg.Read {
		return nil
	}

	changed, err := s.messages.MarkRead(ctx, messageID, callerID, time.Now().UTC())
	if err != nil {
		return err
	}
	if changed {
		s.router.EmitVolatile(msg.SenderID, event.EventMessagesSeen, event.MessagesSeenPayload{
			ConversationID: msg.ConversationID.Hex(),
			SeenBy:         callerID,
			Count:          1,
			SeenAt:         time.Now().Unix(),
		})
	}
	return nil
}

func (s *chatService) MarkConversationRead(ctx context.Context, conversationID, callerID string) (int64, error) {
	conv, err := s.participantConversation(ctx, conversationID, callerID)
	if err != nil {
		return 0, err
	}

	count, err := s.messages.MarkAllRead(ctx, conversationID, callerID, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.router.EmitVolatile(conv.OtherParticipant(callerID), event.EventMessagesSeen, event.MessagesSeenPayload{
			ConversationID: conversationID,
			SeenBy:         callerID,
			Count:          count,
			SeenAt:         time.Now().Unix(),
		})
	}
	return count, nil
}

// React toggles the caller's (emoji, user) entry: present -> removed,
// absent -> added. Returns whether the reaction is present afterwards.
func (s *chatService) React(ctx context.Context, messageID, callerID, emoji string) (bool, error) {
	if emoji == "" {
		return false, fmt.Errorf("%w: missing emoji", apperrors.ErrValidation)
	}

	msg, err := s.participantMessage(ctx, messageID, callerID)
	if err != nil {
		return false, err
	}

	reaction := model.Reaction{Emoji: emoji, UserID: callerID}
	added := !msg.HasReaction(callerID, emoji)
	if added {
		err = s.messages.AddReaction(ctx, messageID, reaction)
	} else {
		err = s.messages.RemoveReaction(ctx, messageID, reaction)
	}
	if err != nil {
		return false, err
	}

	other := msg.ReceiverID
	if callerID == msg.ReceiverID {
		other = msg.SenderID
	}
	s.router.EmitVolatile(other, event.EventMessageReaction, event.ReactionPayload{
		ConversationID: msg.ConversationID.Hex(),
		MessageID:      messageID,
		UserID:         callerID,
		Emoji:          emoji,
		Added:          added,
	})
	return added, nil
}

func (s *chatService) SearchOwnMessages(ctx context.Context, callerID, query string, page int64) (*db.PaginatedResult[model.Message], error) {
	if query == "" {
		return nil, fmt.Errorf("%w: missing query", apperrors.ErrValidation)
	}
	return s.messages.Search(ctx, callerID, query, page)
}

func (s *chatService) SetMuted(ctx context.Context, conversationID, callerID string, on bool) error {
	if _, err := s.participantConversation(ctx, conversationID, callerID); err != nil {
		return err
	}
	return s.conversations.SetFlag(ctx, conversationID, callerID, "muted_by", on)
}

func (s *chatService) SetPinned(ctx context.Context, conversationID, callerID string, on bool) error {
	if _, err := s.participantConversation(ctx, conversationID, callerID); err != nil {
		return err
	}
	return s.conversations.SetFlag(ctx, conversationID, callerID, "pinned_by", on)
}

// OtherParticipant resolves the second participant for a caller; used by
// the hub's inbound typing relay.
func (s *chatService) OtherParticipant(ctx context.Context, conversationID, callerID string) (string, error) {
	conv, err := s.participantConversation(ctx, conversationID, callerID)
	if err != nil {
		return "", err
	}
	return conv.OtherParticipant(callerID), nil
}

func attachmentPreview(attachments []model.Attachment) string {
	if len(attachments) == 0 {
		return ""
	}
	switch attachments[0].Type {
	case model.AttachmentImage:
		return "[image]"
	case model.AttachmentVideo:
		return "[video]"
	case model.AttachmentAudio:
		return "[audio]"
	default:
		return "[file]"
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

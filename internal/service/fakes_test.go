package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"workbridge/internal/apperrors"
	"workbridge/internal/db"
	"workbridge/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory stand-ins for the Mongo repositories. Each guards its state with
// a mutex so the concurrency tests exercise the services, not the fakes.

type emittedEvent struct {
	userID   string
	event    string
	payload  any
	reliable bool
}

type fakeRouter struct {
	mu     sync.Mutex
	emits  []emittedEvent
	online map[string]bool
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{online: make(map[string]bool)}
}

func (r *fakeRouter) EmitReliable(userID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emits = append(r.emits, emittedEvent{userID, event, payload, true})
}

func (r *fakeRouter) EmitVolatile(userID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emits = append(r.emits, emittedEvent{userID, event, payload, false})
}

func (r *fakeRouter) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online[userID]
}

func (r *fakeRouter) eventsFor(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, e := range r.emits {
		if e.userID == userID {
			names = append(names, e.event)
		}
	}
	return names
}

type fakeNotifier struct {
	mu   sync.Mutex
	reqs []NotifyRequest
}

func (n *fakeNotifier) Notify(_ context.Context, req NotifyRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reqs = append(n.reqs, req)
	return nil
}

func (n *fakeNotifier) Dispatch(req NotifyRequest) {
	_ = n.Notify(context.Background(), req)
}

func (n *fakeNotifier) DispatchAll(reqs []NotifyRequest) {
	for _, req := range reqs {
		_ = n.Notify(context.Background(), req)
	}
}

func (n *fakeNotifier) requests() []NotifyRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NotifyRequest, len(n.reqs))
	copy(out, n.reqs)
	return out
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo(ids ...string) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*model.User)}
	for _, id := range ids {
		r.users[id] = &model.User{
			UserID:   id,
			Username: id,
			Email:    id + "@example.com",
			IsActive: true,
		}
	}
	return r
}

func (r *fakeUserRepo) GetByUserID(_ context.Context, userID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) Exists(_ context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[userID]
	return ok, nil
}

type fakeConversationRepo struct {
	mu     sync.Mutex
	byID   map[string]*model.Conversation
	byPair map[string]*model.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		byID:   make(map[string]*model.Conversation),
		byPair: make(map[string]*model.Conversation),
	}
}

func (r *fakeConversationRepo) GetByID(_ context.Context, conversationID string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.byID[conversationID]
	if !ok {
		return nil, nil
	}
	cp := *conv
	return &cp, nil
}

func (r *fakeConversationRepo) CreateOrGet(_ context.Context, conv *model.Conversation) (*model.Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byPair[conv.PairKey]; ok {
		cp := *existing
		return &cp, false, nil
	}
	conv.ID = primitive.NewObjectID()

	// Store what Mongo would hand back: a bson round trip truncates
	// time.Time fields to millisecond precision.
	raw, err := bson.Marshal(conv)
	if err != nil {
		return nil, false, err
	}
	var stored model.Conversation
	if err := bson.Unmarshal(raw, &stored); err != nil {
		return nil, false, err
	}

	r.byID[stored.ID.Hex()] = &stored
	r.byPair[stored.PairKey] = &stored
	cp := stored
	return &cp, true, nil
}

func (r *fakeConversationRepo) ListForUser(_ context.Context, userID string, _, _ int64) ([]model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Conversation
	for _, conv := range r.byID {
		if conv.HasParticipant(userID) {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) UpdateLastMessage(_ context.Context, conversationID string, lm *model.LastMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.byID[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s not found", conversationID)
	}
	conv.LastMessage = lm
	conv.UpdatedAt = lm.SentAt
	return nil
}

func (r *fakeConversationRepo) SetFlag(_ context.Context, conversationID, userID, field string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.byID[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s not found", conversationID)
	}
	target := &conv.MutedBy
	if field == "pinned_by" {
		target = &conv.PinnedBy
	}
	filtered := (*target)[:0]
	for _, id := range *target {
		if id != userID {
			filtered = append(filtered, id)
		}
	}
	*target = filtered
	if on {
		*target = append(*target, userID)
	}
	return nil
}

type fakeMessageRepo struct {
	mu         sync.Mutex
	msgs       []*model.Message
	index      map[string]*model.Message
	dropOnEdit bool
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{index: make(map[string]*model.Message)}
}

func (r *fakeMessageRepo) Insert(_ context.Context, msg *model.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = primitive.NewObjectID()
	stored := *msg
	r.msgs = append(r.msgs, &stored)
	r.index[stored.ID.Hex()] = &stored
	return stored.ID.Hex(), nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, messageID string) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.index[messageID]
	if !ok {
		return nil, nil
	}
	cp := *msg
	return &cp, nil
}

func (r *fakeMessageRepo) ListPage(_ context.Context, conversationID, viewerID string, page int64) (*db.PaginatedResult[model.Message], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Message
	for _, msg := range r.msgs {
		if msg.ConversationID.Hex() == conversationID && !msg.DeletedFor(viewerID) {
			out = append(out, *msg)
		}
	}
	return &db.PaginatedResult[model.Message]{Data: out, Total: int64(len(out)), Page: page}, nil
}

func (r *fakeMessageRepo) CountUnread(_ context.Context, conversationID, receiverID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, msg := range r.msgs {
		if msg.ConversationID.Hex() == conversationID && msg.ReceiverID == receiverID && !msg.Read && !msg.DeletedFor(receiverID) {
			count++
		}
	}
	return count, nil
}

func (r *fakeMessageRepo) MarkAllRead(_ context.Context, conversationID, receiverID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, msg := range r.msgs {
		if msg.ConversationID.Hex() == conversationID && msg.ReceiverID == receiverID && !msg.Read {
			msg.Read = true
			msg.ReadAt = &at
			msg.Status = model.MessageStatusSeen
			count++
		}
	}
	return count, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, messageID, receiverID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.index[messageID]
	if !ok || msg.ReceiverID != receiverID || msg.Read {
		return false, nil
	}
	msg.Read = true
	msg.ReadAt = &at
	msg.Status = model.MessageStatusSeen
	return true, nil
}

func (r *fakeMessageRepo) ApplyEdit(_ context.Context, messageID, newText string, removedURLs []string, newAttachments []model.Attachment, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.index[messageID]
	if !ok {
		return fmt.Errorf("message %s not found", messageID)
	}
	if newText != "" {
		msg.Text = newText
	}
	if len(removedURLs) > 0 {
		kept := msg.Attachments[:0]
		for _, a := range msg.Attachments {
			removed := false
			for _, url := range removedURLs {
				if a.URL == url {
					removed = true
					break
				}
			}
			if !removed {
				kept = append(kept, a)
			}
		}
		msg.Attachments = kept
	}
	msg.Attachments = append(msg.Attachments, newAttachments...)
	msg.IsEdited = true
	msg.EditedAt = &at

	if r.dropOnEdit {
		// Simulates the row vanishing between the edit write and the
		// follow-up read.
		delete(r.index, messageID)
		kept := r.msgs[:0]
		for _, m := range r.msgs {
			if m.ID.Hex() != messageID {
				kept = append(kept, m)
			}
		}
		r.msgs = kept
	}
	return nil
}

func (r *fakeMessageRepo) AddDeletedBy(_ context.Context, messageID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.index[messageID]
	if !ok {
		return fmt.Errorf("message %s not found", messageID)
	}
	if !msg.DeletedFor(userID) {
		msg.DeletedBy = append(msg.DeletedBy, userID)
	}
	return nil
}

func (r *fakeMessageRepo) AddReaction(_ context.Context, messageID string, reaction model.Reaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.index[messageID]
	if !ok {
		return fmt.Errorf("message %s not found", messageID)
	}
	if !msg.HasReaction(reaction.UserID, reaction.Emoji) {
		msg.Reactions = append(msg.Reactions, reaction)
	}
	return nil
}

func (r *fakeMessageRepo) RemoveReaction(_ context.Context, messageID string, reaction model.Reaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.index[messageID]
	if !ok {
		return fmt.Errorf("message %s not found", messageID)
	}
	kept := msg.Reactions[:0]
	for _, existing := range msg.Reactions {
		if existing != reaction {
			kept = append(kept, existing)
		}
	}
	msg.Reactions = kept
	return nil
}

func (r *fakeMessageRepo) Search(_ context.Context, userID, query string, page int64) (*db.PaginatedResult[model.Message], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Message
	for _, msg := range r.msgs {
		if msg.SenderID != userID && msg.ReceiverID != userID {
			continue
		}
		if msg.DeletedFor(userID) {
			continue
		}
		if strings.Contains(strings.ToLower(msg.Text), strings.ToLower(query)) {
			out = append(out, *msg)
		}
	}
	return &db.PaginatedResult[model.Message]{Data: out, Total: int64(len(out)), Page: page}, nil
}

// fakeProposalRepo also acts as the transaction runner: WithTransaction
// serializes callbacks the way snapshot isolation serializes conflicting
// writers, so a concurrent accept sees either the before or after state,
// never a half-applied one.
type fakeProposalRepo struct {
	txnMu sync.Mutex

	mu        sync.Mutex
	proposals map[string]*model.Proposal
}

func newFakeProposalRepo() *fakeProposalRepo {
	return &fakeProposalRepo{proposals: make(map[string]*model.Proposal)}
}

func (r *fakeProposalRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	r.txnMu.Lock()
	defer r.txnMu.Unlock()
	return fn(ctx)
}

func (r *fakeProposalRepo) Create(_ context.Context, p *model.Proposal) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.proposals {
		if existing.TaskID == p.TaskID && existing.FromUser == p.FromUser {
			return "", apperrors.ErrDuplicateEntry
		}
	}
	p.ID = primitive.NewObjectID()
	stored := *p
	r.proposals[stored.ID.Hex()] = &stored
	return stored.ID.Hex(), nil
}

func (r *fakeProposalRepo) GetByID(_ context.Context, proposalID string) (*model.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[proposalID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProposalRepo) FindByTaskAndUser(_ context.Context, taskID, fromUser string) (*model.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.proposals {
		if p.TaskID.Hex() == taskID && p.FromUser == fromUser {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeProposalRepo) ExistsAccepted(_ context.Context, taskID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.proposals {
		if p.TaskID == taskID && p.Status == model.ProposalStatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeProposalRepo) SetStatusIf(_ context.Context, proposalID primitive.ObjectID, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[proposalID.Hex()]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *fakeProposalRepo) MarkOthersNotSelected(_ context.Context, taskID, exceptID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, p := range r.proposals {
		if p.TaskID == taskID && p.ID != exceptID && p.Status == model.ProposalStatusPending {
			p.Status = model.ProposalStatusNotSelected
			count++
		}
	}
	return count, nil
}

func (r *fakeProposalRepo) Resubmit(_ context.Context, proposalID primitive.ObjectID, message string, budget *float64, duration string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[proposalID.Hex()]
	if !ok || !model.Resubmittable(p.Status) {
		return false, nil
	}
	p.Status = model.ProposalStatusPending
	p.Message = message
	p.ProposedBudget = budget
	p.ProposedDuration = duration
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *fakeProposalRepo) ListForTask(_ context.Context, taskID string) ([]model.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Proposal
	for _, p := range r.proposals {
		if p.TaskID.Hex() == taskID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeProposalRepo) ListByUser(_ context.Context, fromUser string, page int64) (*db.PaginatedResult[model.Proposal], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Proposal
	for _, p := range r.proposals {
		if p.FromUser == fromUser {
			out = append(out, *p)
		}
	}
	return &db.PaginatedResult[model.Proposal]{Data: out, Total: int64(len(out)), Page: page}, nil
}

func (r *fakeProposalRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proposals)
}

func (r *fakeProposalRepo) statusOf(id primitive.ObjectID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id.Hex()]
	if !ok {
		return ""
	}
	return p.Status
}

type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*model.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]*model.Task)}
}

func (r *fakeTaskRepo) add(task *model.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID.Hex()] = task
}

func (r *fakeTaskRepo) GetByID(_ context.Context, taskID string) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return nil, nil
	}
	cp := *task
	return &cp, nil
}

func (r *fakeTaskRepo) AssignProvider(_ context.Context, taskID primitive.ObjectID, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID.Hex()]
	if !ok {
		return fmt.Errorf("task %s not found", taskID.Hex())
	}
	task.Status = model.TaskStatusInProgress
	task.AssignedTo = append(task.AssignedTo, providerID)
	return nil
}

type fakeNotificationRepo struct {
	mu        sync.Mutex
	items     []*model.Notification
	insertErr error
}

func (r *fakeNotificationRepo) Insert(_ context.Context, n *model.Notification) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return "", r.insertErr
	}
	n.ID = primitive.NewObjectID()
	stored := *n
	r.items = append(r.items, &stored)
	return stored.ID.Hex(), nil
}

func (r *fakeNotificationRepo) ListForUser(_ context.Context, userID string, page int64) (*db.PaginatedResult[model.Notification], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.items {
		if n.UserID == userID && !n.Deleted {
			out = append(out, *n)
		}
	}
	return &db.PaginatedResult[model.Notification]{Data: out, Total: int64(len(out)), Page: page}, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.items {
		if n.UserID == userID && !n.Read && !n.Deleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, notificationID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID.Hex() == notificationID && n.UserID == userID {
			n.Read = true
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotificationRepo) MarkEmailSent(_ context.Context, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID.Hex() == notificationID {
			n.EmailSent = true
			return nil
		}
	}
	return fmt.Errorf("notification %s not found", notificationID)
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.items {
		if n.UserID == userID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) SoftDelete(_ context.Context, notificationID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID.Hex() == notificationID && n.UserID == userID && !n.Deleted {
			n.Deleted = true
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotificationRepo) stored() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Notification, 0, len(r.items))
	for _, n := range r.items {
		out = append(out, *n)
	}
	return out
}

type fakePreferenceRepo struct {
	mu    sync.Mutex
	prefs map[string]model.Preference
}

func newFakePreferenceRepo() *fakePreferenceRepo {
	return &fakePreferenceRepo{prefs: make(map[string]model.Preference)}
}

func (r *fakePreferenceRepo) GetForUser(_ context.Context, userID string) (model.Preference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pref, ok := r.prefs[userID]; ok {
		return pref, nil
	}
	return model.DefaultPreference(userID), nil
}

type sentEmail struct {
	to      string
	subject string
	html    string
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentEmail
	sendErr error
}

func (s *fakeSender) Send(to, subject, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, sentEmail{to, subject, html})
	return nil
}

func (s *fakeSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeCooldown struct {
	mu     sync.Mutex
	keys   map[string]bool
	ackErr error
}

func newFakeCooldown() *fakeCooldown {
	return &fakeCooldown{keys: make(map[string]bool)}
}

func (c *fakeCooldown) Acquire(_ context.Context, senderID, receiverID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ackErr != nil {
		return false, c.ackErr
	}
	key := senderID + ":" + receiverID
	if c.keys[key] {
		return false, nil
	}
	c.keys[key] = true
	return true, nil
}

func (c *fakeCooldown) Close() error { return nil }

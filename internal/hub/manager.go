package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"workbridge/internal/event"

	"github.com/gorilla/websocket"
)

// maxBacklogPerUser bounds the reliable-event buffer held for a user who is
// transiently offline. Oldest events are dropped first; durability is the
// message store's job, the backlog only smooths over reconnects.
const maxBacklogPerUser = 32

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

// Hub routes events to per-user private channels. Each authenticated user
// owns exactly one channel keyed by user id; a new connection for the same
// user replaces the old one.
type Hub struct {
	onlineUsers   map[string]*Client
	onlineUsersMu sync.RWMutex

	backlog   map[string][]event.WsEvent
	backlogMu sync.Mutex

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage

	// resolveRecipient maps (conversation, sender) to the other
	// participant for inbound relays. Set once during container wiring.
	resolveRecipient RecipientResolver

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// RecipientResolver returns the other participant of a conversation, or an
// error when the sender is not a participant.
type RecipientResolver func(ctx context.Context, conversationID, senderID string) (string, error)

// SetRecipientResolver installs the conversation lookup used by inbound
// relays. Must be called before the first connection is accepted.
func (h *Hub) SetRecipientResolver(fn RecipientResolver) {
	h.resolveRecipient = fn
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		onlineUsers: make(map[string]*Client),
		backlog:     make(map[string][]event.WsEvent),
		register:    make(chan *Client, 1024),
		unregister:  make(chan *Client, 1024),
		inbound:     make(chan inboundMessage, 4096), // buffer for burst handling
		ctx:         ctx,
		cancel:      cancel,
	}

	// run manager loop
	go h.run()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in, ok := <-h.inbound:
					if !ok {
						return
					}
					h.handleEvent(in.event, in.client)
				}
			}
		}()
	}

	return h
}

// handleEvent processes client-to-server events. The only inbound traffic
// the router accepts is the typing indicator; everything else arrives over
// the HTTP API.
func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	switch ev.Event {
	case event.EventClientTyping:
		var typing event.TypingPayload
		if err := json.Unmarshal(ev.Payload, &typing); err != nil {
			log.Printf("failed to unmarshal typing payload: %v", err)
			return
		}
		// The sender field is taken from the authenticated channel, never
		// from the payload.
		typing.UserID = c.userID

		if h.resolveRecipient == nil {
			return
		}
		recipient, err := h.resolveRecipient(h.ctx, typing.ConversationID, c.userID)
		if err != nil {
			log.Printf("typing relay rejected for user %s: %v", c.userID, err)
			return
		}
		h.EmitVolatile(recipient, event.EventTyping, typing)
	default:
		log.Printf("unknown event type: %s", ev.Event)
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.onlineUsersMu.Lock()
	if old, ok := h.onlineUsers[c.userID]; ok && old != c {
		old.Close()
	}
	h.onlineUsers[c.userID] = c
	h.onlineUsersMu.Unlock()

	log.Printf("user %s connected (client %s)", c.userID, c.ID)
	h.flushBacklog(c)
}

func (h *Hub) removeClient(c *Client) {
	h.onlineUsersMu.Lock()
	if current, ok := h.onlineUsers[c.userID]; ok && current == c {
		delete(h.onlineUsers, c.userID)
	}
	h.onlineUsersMu.Unlock()

	c.Close()
	log.Printf("user %s disconnected (client %s)", c.userID, c.ID)
}

func (h *Hub) flushBacklog(c *Client) {
	h.backlogMu.Lock()
	pending := h.backlog[c.userID]
	delete(h.backlog, c.userID)
	h.backlogMu.Unlock()

	for _, ev := range pending {
		if !c.SafeSend(ev, sendTimeout) {
			log.Printf("dropped backlog event %s for user %s", ev.Event, c.userID)
		}
	}
}

func (h *Hub) clientFor(userID string) (*Client, bool) {
	h.onlineUsersMu.RLock()
	defer h.onlineUsersMu.RUnlock()
	c, ok := h.onlineUsers[userID]
	return c, ok
}

// EmitVolatile pushes an event to the user's channel if they are connected
// right now and drops it otherwise. Never queued: a client that reconnects
// mid-flight reconciles through the store, and queuing here would hand it
// duplicates.
func (h *Hub) EmitVolatile(userID, name string, payload any) {
	c, online := h.clientFor(userID)
	if !online {
		return
	}
	ev := event.NewEvent(name, payload)
	if !c.SafeSend(ev, sendTimeout) {
		log.Printf("egress full, dropped volatile %s for user %s", name, userID)
	}
}

// EmitReliable pushes an event to the user's channel, parking it in a
// bounded backlog when they are offline so a transient reconnect still
// sees it.
func (h *Hub) EmitReliable(userID, name string, payload any) {
	ev := event.NewEvent(name, payload)

	if c, online := h.clientFor(userID); online {
		if c.SafeSend(ev, sendTimeout) {
			return
		}
	}

	h.backlogMu.Lock()
	defer h.backlogMu.Unlock()
	pending := h.backlog[userID]
	if len(pending) >= maxBacklogPerUser {
		pending = pending[1:]
	}
	h.backlog[userID] = append(pending, ev)
}

// IsOnline reports whether the user currently has a connected channel.
func (h *Hub) IsOnline(userID string) bool {
	_, online := h.clientFor(userID)
	return online
}

func (h *Hub) Stop() {
	h.cancel()

	h.onlineUsersMu.RLock()
	for _, client := range h.onlineUsers {
		client.Close()
	}
	h.onlineUsersMu.RUnlock()

	close(h.inbound)
	h.wg.Wait()
}

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	switch origin {
	case "http://localhost:4200":
		return true
	case "https://app.workbridge.dev":
		return true
	default:
		return false
	}
}

// ServeWS upgrades the request and binds the connection to the
// authenticated user's channel. userID must come from a verified token,
// never from the request payload.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	RegisterClient(userID, conn, h)
}

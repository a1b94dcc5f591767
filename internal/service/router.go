package service

// Router is the per-user real-time channel the services push events into.
// Satisfied by *hub.Hub.
//
// Volatile pushes are dropped outright when the recipient is offline;
// reliable pushes survive a transient reconnect. Neither is a delivery
// guarantee: durability always belongs to the store.
type Router interface {
	EmitReliable(userID, event string, payload any)
	EmitVolatile(userID, event string, payload any)
	IsOnline(userID string) bool
}

// noopRouter is used when the socket tier is disabled.
type noopRouter struct{}

func (noopRouter) EmitReliable(string, string, any) {}
func (noopRouter) EmitVolatile(string, string, any) {}
func (noopRouter) IsOnline(string) bool             { return false }

// NewNoopRouter returns a Router that drops everything.
func NewNoopRouter() Router {
	return noopRouter{}
}

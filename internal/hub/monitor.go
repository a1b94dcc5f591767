package hub

// MonitorService gathers delivery-router statistics for the operations
// endpoint.
type MonitorService struct {
	hub *Hub
}

// MonitorResponse is the stats payload for the monitor API.
type MonitorResponse struct {
	Status         string   `json:"status"` // "healthy" or "idle"
	ConnectedUsers int      `json:"connectedUsers"`
	UserIDs        []string `json:"userIds"`
	BacklogUsers   int      `json:"backlogUsers"`
	BacklogEvents  int      `json:"backlogEvents"`
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns router statistics.
func (ms *MonitorService) GetStats() MonitorResponse {
	ms.hub.onlineUsersMu.RLock()
	userIDs := make([]string, 0, len(ms.hub.onlineUsers))
	for id := range ms.hub.onlineUsers {
		userIDs = append(userIDs, id)
	}
	ms.hub.onlineUsersMu.RUnlock()

	ms.hub.backlogMu.Lock()
	backlogUsers := len(ms.hub.backlog)
	backlogEvents := 0
	for _, pending := range ms.hub.backlog {
		backlogEvents += len(pending)
	}
	ms.hub.backlogMu.Unlock()

	status := "healthy"
	if len(userIDs) == 0 {
		status = "idle"
	}

	return MonitorResponse{
		Status:         status,
		ConnectedUsers: len(userIDs),
		UserIDs:        userIDs,
		BacklogUsers:   backlogUsers,
		BacklogEvents:  backlogEvents,
	}
}

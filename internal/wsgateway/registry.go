package wsgateway

import "sync"

// ConnectionRegistry indexes live chart connections by id and counts them
// per authenticated user.
type ConnectionRegistry struct {
	mu      sync.RWMutex
	conns   map[string]*Connection
	perUser map[string]int
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns:   make(map[string]*Connection),
		perUser: make(map[string]int),
	}
}

// Add registers conn and returns how many connections its user now holds
func (r *ConnectionRegistry) Add(conn *Connection) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, dup := r.conns[conn.ID]; dup {
		r.release(prev.UserID)
	}
	r.perUser[conn.UserID]++
	r.conns[conn.ID] = conn
	return r.perUser[conn.UserID]
}

// Remove drops the connection and reports whether it was registered
func (r *ConnectionRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	delete(r.conns, id)
	r.release(conn.UserID)
	return true
}

func (r *ConnectionRegistry) release(userID string) {
	if r.perUser[userID]--; r.perUser[userID] <= 0 {
		delete(r.perUser, userID)
	}
}

// UserConnections returns the number of connections held by userID
func (r *ConnectionRegistry) UserConnections(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.perUser[userID]
}

// Users returns the number of distinct connected users
func (r *ConnectionRegistry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.perUser)
}

// GetAll returns a snapshot of the registered connections
func (r *ConnectionRegistry) GetAll() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn)
	}
	return out
}

func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

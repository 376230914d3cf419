package runtime

import (
	"log/slog"
	"sync"

	"tradegate/contract"
	"tradegate/domain"
)

// ConnectionRegistry maps each identity to at most one live connection.
// Presence is a point-in-time fact: callers polling IsPresent must re-query.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[domain.Identity]contract.Conn
	log   *slog.Logger
}

func NewConnectionRegistry(log *slog.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[domain.Identity]contract.Conn),
		log:   log,
	}
}

// Register binds the connection to the identity. Last connection wins: any
// prior connection for the same identity is closed with a session-replaced
// close code before the new one takes its place.
func (r *ConnectionRegistry) Register(identity domain.Identity, conn contract.Conn) {
	r.mu.Lock()
	previous := r.conns[identity]
	r.conns[identity] = conn
	r.mu.Unlock()

	if previous != nil {
		r.log.Info("Replacing live session", "identity", identity)
		if err := previous.Close(contract.CloseSessionReplaced, "session replaced"); err != nil {
			r.log.Debug("Error while closing replaced session", "identity", identity, "err", err)
		}
	}
}

// Unregister removes the mapping, but only if conn is still the registered
// one. A replaced connection's deferred unregister must not evict its
// successor.
func (r *ConnectionRegistry) Unregister(identity domain.Identity, conn contract.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.conns[identity]; ok && current == conn {
		delete(r.conns, identity)
	}
}

func (r *ConnectionRegistry) IsPresent(identity domain.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[identity]
	return ok
}

func (r *ConnectionRegistry) Get(identity domain.Identity) (contract.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[identity]
	return conn, ok
}

// Conns returns a snapshot of every live connection, for broadcasts.
func (r *ConnectionRegistry) Conns() []contract.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make([]contract.Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

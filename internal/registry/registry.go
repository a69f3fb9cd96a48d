// Package registry owns the table of live device connections. It is the only
// component allowed to map a device id to a transport session, and it
// enforces the single-session-per-device policy: registering a new
// connection for a device forcibly closes the previous one.
package registry

import (
	"log"
	"sync"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/protocol"
)

// Conn is a live transport session bound to exactly one device. The concrete
// implementation lives in the websocket handler; tests use in-memory fakes.
type Conn interface {
	// DeviceID returns the device this connection is bound to.
	DeviceID() string
	// Role returns "elder" or "guardian".
	Role() string
	// Send queues an envelope for delivery on this connection. It returns an
	// error when the connection is closed or its outbound buffer is full.
	Send(env protocol.Envelope) error
	// Close tears the connection down. Closing is idempotent.
	Close(reason string)
}

// Registry maps device ids to their single live connection. All methods are
// safe for concurrent use; the mutex makes register/unregister/lookup
// linearizable per device key.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register binds conn as the device's live connection, replacing and closing
// any previous one. The stale connection is closed outside the lock so a
// slow Close cannot stall unrelated registrations.
func (r *Registry) Register(conn Conn) {
	id := conn.DeviceID()

	r.mu.Lock()
	old := r.conns[id]
	r.conns[id] = conn
	r.mu.Unlock()

	if old != nil && old != conn {
		log.Printf("registry: replacing connection for %s (%s)", id, conn.Role())
		old.Close("superseded by a new connection")
	}
}

// Unregister removes conn from the table. It is a no-op when the device has
// since re-registered with a different connection, so a stale close arriving
// after a replacement cannot knock the fresh session offline.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[conn.DeviceID()]; ok && cur == conn {
		delete(r.conns, conn.DeviceID())
	}
}

// Lookup returns the live connection for a device, if any.
func (r *Registry) Lookup(deviceID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[deviceID]
	return c, ok
}

// IsOnline reports whether the device currently has a live connection.
func (r *Registry) IsOnline(deviceID string) bool {
	_, ok := r.Lookup(deviceID)
	return ok
}

// Count returns the number of live connections, for health reporting.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

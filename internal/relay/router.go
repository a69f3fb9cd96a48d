// Package relay implements the message plane of the guardian relay: the
// request/response router with timeout correlation, and the alert fan-out
// that pushes elder events to every paired guardian.
package relay

import (
	"log"
	"sync"
	"time"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/protocol"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/registry"
)

// DefaultRequestTimeout bounds how long the router waits for the target
// device to answer a request before synthesizing a TIMEOUT error.
const DefaultRequestTimeout = 30 * time.Second

// pendingRequest tracks one in-flight request while the router waits for a
// reply. Entries live only in memory; a relay restart drops them and the
// origin re-issues the request (at-most-once per attempt).
type pendingRequest struct {
	requestID string
	origin    registry.Conn
	sentAt    time.Time
	timer     *time.Timer
}

// Router delivers envelopes between connected devices. For each request it
// records a pendingRequest keyed by requestId and guarantees that the origin
// receives at most one terminal reply: the real response, a TIMEOUT, or a
// RECIPIENT_OFFLINE error, never more than one of them.
type Router struct {
	reg     *registry.Registry
	fanout  *Fanout
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// NewRouter builds a router over the given registry and fan-out. A
// non-positive timeout falls back to DefaultRequestTimeout.
func NewRouter(reg *registry.Registry, fanout *Fanout, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Router{
		reg:     reg,
		fanout:  fanout,
		timeout: timeout,
		pending: make(map[string]*pendingRequest),
	}
}

// Route dispatches one inbound envelope read from origin's connection.
// Requests are forwarded to the target and tracked; responses resolve their
// pending entry; elder events are handed to the fan-out.
func (r *Router) Route(env protocol.Envelope, origin registry.Conn) {
	switch {
	case protocol.IsEvent(env.Type):
		if origin.Role() != protocol.RoleElder {
			log.Printf("router: dropping %s event from non-elder %s", env.Type, origin.DeviceID())
			return
		}
		r.fanout.Broadcast(origin.DeviceID(), env)

	case protocol.IsResponse(env.Type):
		r.resolve(env)

	case protocol.IsRequest(env.Type):
		r.forward(env, origin)

	default:
		log.Printf("router: dropping unroutable %s from %s", env.Type, origin.DeviceID())
	}
}

// forward delivers a request to its target or immediately fails it with
// RECIPIENT_OFFLINE when the target has no live connection.
func (r *Router) forward(env protocol.Envelope, origin registry.Conn) {
	target, ok := r.reg.Lookup(env.To)
	if !ok {
		r.sendError(origin, env.RequestID, protocol.CodeRecipientOffline, "recipient is offline")
		return
	}

	// The pending entry must be in the table before the request reaches the
	// target, so a reply racing back on another goroutine always finds it.
	p := &pendingRequest{
		requestID: env.RequestID,
		origin:    origin,
		sentAt:    time.Now(),
	}
	r.mu.Lock()
	p.timer = time.AfterFunc(r.timeout, func() { r.expire(env.RequestID) })
	r.pending[env.RequestID] = p
	r.mu.Unlock()

	if err := target.Send(env); err != nil {
		// The socket died between lookup and write; treat it as offline.
		log.Printf("router: deliver %s to %s failed: %v", env.Type, env.To, err)
		if p := r.take(env.RequestID); p != nil {
			p.timer.Stop()
			r.sendError(origin, env.RequestID, protocol.CodeRecipientOffline, "recipient is offline")
		}
	}
}

// resolve routes a reply back to the origin of its pending request. Unknown
// requestIds are dropped silently: either the request already timed out and
// the origin has its TIMEOUT error, or the origin disconnected.
func (r *Router) resolve(env protocol.Envelope) {
	p := r.take(env.RequestID)
	if p == nil {
		log.Printf("router: dropping late %s for %s", env.Type, env.RequestID)
		return
	}
	p.timer.Stop()
	if err := p.origin.Send(env); err != nil {
		log.Printf("router: reply %s to %s undeliverable: %v", env.Type, p.origin.DeviceID(), err)
	}
}

// expire fires when a pending request's timer elapses. Taking the entry
// first guarantees a late real reply arriving afterwards finds nothing and
// is dropped.
func (r *Router) expire(requestID string) {
	p := r.take(requestID)
	if p == nil {
		return
	}
	log.Printf("router: request %s timed out after %s", requestID, time.Since(p.sentAt).Round(time.Millisecond))
	r.sendError(p.origin, requestID, protocol.CodeTimeout, "request timed out")
}

// DropConnection clears every pending request whose origin is the closed
// connection. No error is synthesized: there is no receiver left to notify.
func (r *Router) DropConnection(conn registry.Conn) {
	r.mu.Lock()
	var dropped []*pendingRequest
	for id, p := range r.pending {
		if p.origin == conn {
			dropped = append(dropped, p)
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()

	for _, p := range dropped {
		p.timer.Stop()
	}
}

// PendingCount reports in-flight requests, for health reporting.
func (r *Router) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// take removes and returns the pending entry for requestId. Removal under
// the lock is what makes the terminal reply unique: whichever of the real
// reply, the timeout or a disconnect takes the entry first wins, and the
// others see nil.
func (r *Router) take(requestID string) *pendingRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[requestID]
	if !ok {
		return nil
	}
	delete(r.pending, requestID)
	return p
}

func (r *Router) sendError(to registry.Conn, requestID, code, message string) {
	env := protocol.NewError(to.DeviceID(), requestID, code, message)
	if err := to.Send(env); err != nil {
		log.Printf("router: error %s to %s undeliverable: %v", code, to.DeviceID(), err)
	}
}

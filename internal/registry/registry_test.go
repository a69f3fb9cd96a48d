package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/protocol"
)

// fakeConn is an in-memory Conn for registry tests.
type fakeConn struct {
	id   string
	role string

	mu     sync.Mutex
	closed bool
	reason string
}

func newFakeConn(id, role string) *fakeConn { return &fakeConn{id: id, role: role} }

func (c *fakeConn) DeviceID() string { return c.id }
func (c *fakeConn) Role() string     { return c.role }
func (c *fakeConn) Send(protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("conn %s closed", c.id)
	}
	return nil
}
func (c *fakeConn) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reason = reason
}
func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestRegister_Lookup(t *testing.T) {
	r := New()
	conn := newFakeConn("elder-1", protocol.RoleElder)

	r.Register(conn)

	got, ok := r.Lookup("elder-1")
	require.True(t, ok)
	assert.Same(t, conn, got.(*fakeConn))
	assert.True(t, r.IsOnline("elder-1"))
	assert.False(t, r.IsOnline("elder-2"))
	assert.Equal(t, 1, r.Count())
}

func TestRegister_ReplacesAndClosesPrevious(t *testing.T) {
	r := New()
	first := newFakeConn("elder-1", protocol.RoleElder)
	second := newFakeConn("elder-1", protocol.RoleElder)

	r.Register(first)
	r.Register(second)

	assert.True(t, first.isClosed(), "stale connection must be closed on replacement")
	assert.False(t, second.isClosed())

	got, ok := r.Lookup("elder-1")
	require.True(t, ok)
	assert.Same(t, second, got.(*fakeConn))
	assert.Equal(t, 1, r.Count())
}

func TestUnregister_OnlyRemovesCurrentConn(t *testing.T) {
	r := New()
	first := newFakeConn("elder-1", protocol.RoleElder)
	second := newFakeConn("elder-1", protocol.RoleElder)

	r.Register(first)
	r.Register(second)

	// The stale connection's deferred unregister arrives after replacement
	// and must not knock the fresh session offline.
	r.Unregister(first)
	assert.True(t, r.IsOnline("elder-1"))

	r.Unregister(second)
	assert.False(t, r.IsOnline("elder-1"))
	assert.Equal(t, 0, r.Count())
}

func TestRegister_ConcurrentSameDevice(t *testing.T) {
	r := New()
	const n = 50

	conns := make([]*fakeConn, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		conns[i] = newFakeConn("elder-1", protocol.RoleElder)
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			r.Register(c)
		}(conns[i])
	}
	wg.Wait()

	// Exactly one winner survives; everything else is closed.
	require.Equal(t, 1, r.Count())
	winner, ok := r.Lookup("elder-1")
	require.True(t, ok)

	open := 0
	for _, c := range conns {
		if !c.isClosed() {
			open++
			assert.Same(t, winner.(*fakeConn), c)
		}
	}
	assert.Equal(t, 1, open)
}

func TestRegister_DistinctDevices(t *testing.T) {
	r := New()
	r.Register(newFakeConn("elder-1", protocol.RoleElder))
	r.Register(newFakeConn("guardian-1", protocol.RoleGuardian))
	r.Register(newFakeConn("guardian-2", protocol.RoleGuardian))

	assert.Equal(t, 3, r.Count())
	assert.True(t, r.IsOnline("guardian-2"))
}

package relay

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/protocol"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/registry"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/repository"
)

// captureConn records every envelope written to it.
type captureConn struct {
	id   string
	role string

	mu     sync.Mutex
	sent   []protocol.Envelope
	failed bool
}

func newCaptureConn(id, role string) *captureConn { return &captureConn{id: id, role: role} }

func (c *captureConn) DeviceID() string { return c.id }
func (c *captureConn) Role() string     { return c.role }
func (c *captureConn) Send(env protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed {
		return fmt.Errorf("conn %s is dead", c.id)
	}
	c.sent = append(c.sent, env)
	return nil
}
func (c *captureConn) Close(string) {}
func (c *captureConn) envelopes() []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Envelope, len(c.sent))
	copy(out, c.sent)
	return out
}
func (c *captureConn) failWrites() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = true
}

func newTestRouter(t *testing.T, timeout time.Duration) (*Router, *registry.Registry, *repository.MemoryPairingStore) {
	t.Helper()
	reg := registry.New()
	pairings := repository.NewMemoryPairingStore()
	fanout := NewFanout(reg, pairings, nil)
	return NewRouter(reg, fanout, timeout), reg, pairings
}

func mustRequest(t *testing.T, msgType, from, to string) protocol.Envelope {
	t.Helper()
	env, err := protocol.NewRequest(msgType, from, to, nil)
	require.NoError(t, err)
	return env
}

func errorCode(t *testing.T, env protocol.Envelope) string {
	t.Helper()
	require.Equal(t, protocol.TypeError, env.Type)
	var p protocol.ErrorPayload
	require.NoError(t, protocol.DecodePayload(env, &p))
	return p.Code
}

func TestRoute_RequestToOfflineTarget(t *testing.T) {
	r, reg, _ := newTestRouter(t, time.Minute)
	guardian := newCaptureConn("guardian-1", protocol.RoleGuardian)
	reg.Register(guardian)

	req := mustRequest(t, protocol.TypeGetState, "guardian-1", "elder-1")
	r.Route(req, guardian)

	sent := guardian.envelopes()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.CodeRecipientOffline, errorCode(t, sent[0]))
	assert.Equal(t, req.RequestID, sent[0].RequestID)
	assert.Equal(t, 0, r.PendingCount())
}

func TestRoute_RequestForwardedAndResolved(t *testing.T) {
	r, reg, _ := newTestRouter(t, time.Minute)
	guardian := newCaptureConn("guardian-1", protocol.RoleGuardian)
	elder := newCaptureConn("elder-1", protocol.RoleElder)
	reg.Register(guardian)
	reg.Register(elder)

	req := mustRequest(t, protocol.TypeGetState, "guardian-1", "elder-1")
	r.Route(req, guardian)

	forwarded := elder.envelopes()
	require.Len(t, forwarded, 1)
	assert.Equal(t, req.RequestID, forwarded[0].RequestID)
	assert.Equal(t, 1, r.PendingCount())

	reply, err := protocol.Reply(req, protocol.TypeStateResponse, protocol.StateResponsePayload{})
	require.NoError(t, err)
	r.Route(reply, elder)

	got := guardian.envelopes()
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypeStateResponse, got[0].Type)
	assert.Equal(t, 0, r.PendingCount())
}

// echoConn answers every forwarded request inline, before Send returns, the
// fastest reply the router can ever see.
type echoConn struct {
	id     string
	router *Router
}

func (c *echoConn) DeviceID() string { return c.id }
func (c *echoConn) Role() string     { return protocol.RoleElder }
func (c *echoConn) Close(string)     {}
func (c *echoConn) Send(env protocol.Envelope) error {
	reply, err := protocol.Reply(env, protocol.TypeStateResponse, protocol.StateResponsePayload{})
	if err != nil {
		return err
	}
	c.router.Route(reply, c)
	return nil
}

func TestRoute_ReplyBeforeSendReturns(t *testing.T) {
	r, reg, _ := newTestRouter(t, 30*time.Millisecond)
	guardian := newCaptureConn("guardian-1", protocol.RoleGuardian)
	reg.Register(guardian)
	reg.Register(&echoConn{id: "elder-1", router: r})

	req := mustRequest(t, protocol.TypeGetState, "guardian-1", "elder-1")
	r.Route(req, guardian)

	sent := guardian.envelopes()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.TypeStateResponse, sent[0].Type)
	assert.Equal(t, req.RequestID, sent[0].RequestID)
	assert.Equal(t, 0, r.PendingCount())

	// The timer was cleared with the entry; no TIMEOUT follows the reply.
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, guardian.envelopes(), 1)
}

func TestRoute_DuplicateReplyDropped(t *testing.T) {
	r, reg, _ := newTestRouter(t, time.Minute)
	guardian := newCaptureConn("guardian-1", protocol.RoleGuardian)
	elder := newCaptureConn("elder-1", protocol.RoleElder)
	reg.Register(guardian)
	reg.Register(elder)

	req := mustRequest(t, protocol.TypeGetMedications, "guardian-1", "elder-1")
	r.Route(req, guardian)

	reply, err := protocol.Reply(req, protocol.TypeMedicationsResponse, protocol.MedicationsResponsePayload{})
	require.NoError(t, err)
	r.Route(reply, elder)
	r.Route(reply, elder) // a replayed duplicate must not reach the origin twice

	assert.Len(t, guardian.envelopes(), 1)
}

func TestRoute_TimeoutSynthesizedOnce(t *testing.T) {
	r, reg, _ := newTestRouter(t, 30*time.Millisecond)
	guardian := newCaptureConn("guardian-1", protocol.RoleGuardian)
	elder := newCaptureConn("elder-1", protocol.RoleElder)
	reg.Register(guardian)
	reg.Register(elder)

	req := mustRequest(t, protocol.TypeGetState, "guardian-1", "elder-1")
	r.Route(req, guardian)

	require.Eventually(t, func() bool { return len(guardian.envelopes()) == 1 }, time.Second, 5*time.Millisecond)
	sent := guardian.envelopes()
	assert.Equal(t, protocol.CodeTimeout, errorCode(t, sent[0]))
	assert.Equal(t, 0, r.PendingCount())

	// The real reply arriving after the timeout finds no pending entry.
	reply, err := protocol.Reply(req, protocol.TypeStateResponse, protocol.StateResponsePayload{})
	require.NoError(t, err)
	r.Route(reply, elder)
	assert.Len(t, guardian.envelopes(), 1)
}

func TestRoute_DeadTargetSocketTreatedAsOffline(t *testing.T) {
	r, reg, _ := newTestRouter(t, time.Minute)
	guardian := newCaptureConn("guardian-1", protocol.RoleGuardian)
	elder := newCaptureConn("elder-1", protocol.RoleElder)
	reg.Register(guardian)
	reg.Register(elder)
	elder.failWrites()

	req := mustRequest(t, protocol.TypeGetState, "guardian-1", "elder-1")
	r.Route(req, guardian)

	sent := guardian.envelopes()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.CodeRecipientOffline, errorCode(t, sent[0]))
	assert.Equal(t, 0, r.PendingCount())
}

func TestDropConnection_ClearsPendingWithoutReply(t *testing.T) {
	r, reg, _ := newTestRouter(t, time.Minute)
	guardian := newCaptureConn("guardian-1", protocol.RoleGuardian)
	elder := newCaptureConn("elder-1", protocol.RoleElder)
	reg.Register(guardian)
	reg.Register(elder)

	req := mustRequest(t, protocol.TypeGetState, "guardian-1", "elder-1")
	r.Route(req, guardian)
	require.Equal(t, 1, r.PendingCount())

	r.DropConnection(guardian)
	assert.Equal(t, 0, r.PendingCount())

	// The reply from the elder now has nowhere to go and is dropped.
	reply, err := protocol.Reply(req, protocol.TypeStateResponse, protocol.StateResponsePayload{})
	require.NoError(t, err)
	r.Route(reply, elder)
	assert.Empty(t, guardian.envelopes())
}

func TestRoute_EventFromGuardianDropped(t *testing.T) {
	r, reg, pairings := newTestRouter(t, time.Minute)
	guardian := newCaptureConn("guardian-1", protocol.RoleGuardian)
	other := newCaptureConn("guardian-2", protocol.RoleGuardian)
	reg.Register(guardian)
	reg.Register(other)
	require.NoError(t, pairings.Upsert(t.Context(), pairing("elder-1", "guardian-2")))

	env, err := protocol.NewEnvelope(protocol.TypeAlertEvent, "guardian-1", "guardians", "", protocol.AlertInfo{ID: "alert_1"})
	require.NoError(t, err)
	r.Route(env, guardian)

	assert.Empty(t, other.envelopes())
}

func TestRoute_ElderEventFannedOut(t *testing.T) {
	r, reg, pairings := newTestRouter(t, time.Minute)
	elder := newCaptureConn("elder-1", protocol.RoleElder)
	guardian := newCaptureConn("guardian-1", protocol.RoleGuardian)
	reg.Register(elder)
	reg.Register(guardian)
	require.NoError(t, pairings.Upsert(t.Context(), pairing("elder-1", "guardian-1")))

	env, err := protocol.NewEnvelope(protocol.TypeAlertEvent, "elder-1", "guardians", "", protocol.AlertInfo{ID: "alert_1", Type: "SOS"})
	require.NoError(t, err)
	r.Route(env, elder)

	got := guardian.envelopes()
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypeAlertEvent, got[0].Type)
	assert.Equal(t, "guardian-1", got[0].To)
}

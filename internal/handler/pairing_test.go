package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/model"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/protocol"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/registry"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/relay"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/repository"
)

// stubConn stands in for a live device connection.
type stubConn struct {
	id   string
	role string

	mu   sync.Mutex
	sent []protocol.Envelope
}

func (c *stubConn) DeviceID() string { return c.id }
func (c *stubConn) Role() string     { return c.role }
func (c *stubConn) Send(env protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, env)
	return nil
}
func (c *stubConn) Close(string) {}
func (c *stubConn) envelopes() []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Envelope, len(c.sent))
	copy(out, c.sent)
	return out
}

func pairingFixture(elderID, guardianID string) model.Pairing {
	return model.Pairing{
		ElderID:      elderID,
		GuardianID:   guardianID,
		GuardianName: guardianID,
		PairedAt:     time.Now().UTC(),
	}
}

type apiResponse struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type pairingRig struct {
	handler  *PairingHandler
	codes    *repository.MemoryCodeStore
	pairings *repository.MemoryPairingStore
	reg      *registry.Registry
}

func newPairingRig(t *testing.T) *pairingRig {
	t.Helper()
	codes := repository.NewMemoryCodeStore()
	pairings := repository.NewMemoryPairingStore()
	reg := registry.New()
	fanout := relay.NewFanout(reg, pairings, nil)
	return &pairingRig{
		handler:  NewPairingHandler(codes, pairings, fanout, 10*time.Minute),
		codes:    codes,
		pairings: pairings,
		reg:      reg,
	}
}

func postJSON(t *testing.T, h echo.HandlerFunc, body string) (int, apiResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))

	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestGenerateCode(t *testing.T) {
	rig := newPairingRig(t)

	status, resp := postJSON(t, rig.handler.GenerateCode, `{"elderId":"elder-1"}`)
	require.Equal(t, http.StatusOK, status)
	require.True(t, resp.Success)
	assert.Regexp(t, `^\d{6}$`, resp.Data["code"])
	assert.NotEmpty(t, resp.Data["expiresAt"])
}

func TestGenerateCode_MissingElderID(t *testing.T) {
	rig := newPairingRig(t)

	status, resp := postJSON(t, rig.handler.GenerateCode, `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "INVALID_BODY", resp.Error.Code)
}

func TestPair_FullFlow(t *testing.T) {
	rig := newPairingRig(t)

	elder := &stubConn{id: "elder-1", role: protocol.RoleElder}
	rig.reg.Register(elder)

	code, err := rig.codes.Generate(t.Context(), "elder-1", 10*time.Minute)
	require.NoError(t, err)

	status, resp := postJSON(t, rig.handler.Pair,
		`{"code":"`+code.Code+`","guardianId":"grd_1","guardianName":"Dana"}`)
	require.Equal(t, http.StatusOK, status)
	require.True(t, resp.Success)
	assert.Equal(t, "elder-1", resp.Data["elderId"])
	assert.Equal(t, "grd_1", resp.Data["guardianId"])

	// The pairing is durable and the connected elder was told about it.
	ids, err := rig.pairings.GuardianIDs(t.Context(), "elder-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"grd_1"}, ids)

	notified := elder.envelopes()
	require.Len(t, notified, 1)
	assert.Equal(t, protocol.TypeGuardianPaired, notified[0].Type)

	// A second guardian racing on the same single-use code loses.
	status, resp = postJSON(t, rig.handler.Pair,
		`{"code":"`+code.Code+`","guardianId":"grd_2"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, protocol.CodeAlreadyConsumed, resp.Error.Code)

	ids, _ = rig.pairings.GuardianIDs(t.Context(), "elder-1")
	assert.Equal(t, []string{"grd_1"}, ids)
}

func TestPair_UnknownCode(t *testing.T) {
	rig := newPairingRig(t)

	status, resp := postJSON(t, rig.handler.Pair, `{"code":"123456","guardianId":"grd_1"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, protocol.CodeNotFound, resp.Error.Code)
}

func TestPair_ExpiredCode(t *testing.T) {
	rig := newPairingRig(t)

	now := time.Now().UTC()
	rig.codes.SetClock(func() time.Time { return now })
	code, err := rig.codes.Generate(t.Context(), "elder-1", 10*time.Minute)
	require.NoError(t, err)

	now = now.Add(11 * time.Minute)

	status, resp := postJSON(t, rig.handler.Pair, `{"code":"`+code.Code+`","guardianId":"grd_1"}`)
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, protocol.CodeExpired, resp.Error.Code)
}

func TestPair_OfflineElderStillPairs(t *testing.T) {
	rig := newPairingRig(t)

	code, err := rig.codes.Generate(t.Context(), "elder-1", 10*time.Minute)
	require.NoError(t, err)

	status, resp := postJSON(t, rig.handler.Pair, `{"code":"`+code.Code+`","guardianId":"grd_1"}`)
	require.Equal(t, http.StatusOK, status)
	require.True(t, resp.Success)

	ids, err := rig.pairings.GuardianIDs(t.Context(), "elder-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"grd_1"}, ids, "pairing must persist even when the elder is offline")
}

func TestUnpair(t *testing.T) {
	rig := newPairingRig(t)

	elder := &stubConn{id: "elder-1", role: protocol.RoleElder}
	rig.reg.Register(elder)
	require.NoError(t, rig.pairings.Upsert(t.Context(), pairingFixture("elder-1", "grd_1")))

	status, resp := postJSON(t, rig.handler.Unpair, `{"elderId":"elder-1","guardianId":"grd_1"}`)
	require.Equal(t, http.StatusOK, status)
	require.True(t, resp.Success)

	ids, _ := rig.pairings.GuardianIDs(t.Context(), "elder-1")
	assert.Empty(t, ids)

	notified := elder.envelopes()
	require.Len(t, notified, 1)
	assert.Equal(t, protocol.TypeGuardianUnpaired, notified[0].Type)

	status, resp = postJSON(t, rig.handler.Unpair, `{"elderId":"elder-1","guardianId":"grd_1"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, protocol.CodeNotFound, resp.Error.Code)
}

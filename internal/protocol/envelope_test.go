package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_ValidRequest(t *testing.T) {
	frame := []byte(`{"type":"GET_STATE","from":"guardian-1","to":"elder-1","requestId":"req_abc","timestamp":"2026-01-01T10:00:00Z"}`)

	env, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, TypeGetState, env.Type)
	assert.Equal(t, "guardian-1", env.From)
	assert.Equal(t, "elder-1", env.To)
	assert.Equal(t, "req_abc", env.RequestID)
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"FORMAT_DISK","from":"a","to":"b","requestId":"req_1"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecode_RequestWithoutRequestID(t *testing.T) {
	_, err := Decode([]byte(`{"type":"GET_STATE","from":"a","to":"b"}`))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecode_EventWithoutRequestID(t *testing.T) {
	// Events carry no correlation, so a missing requestId is fine.
	env, err := Decode([]byte(`{"type":"ALERT_EVENT","from":"elder-1","to":"guardians","payload":{"id":"alert_1"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeAlertEvent, env.Type)
}

func TestReply_FlipsAddressingAndKeepsCorrelation(t *testing.T) {
	req, err := NewRequest(TypeGetState, "guardian-1", "elder-1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, req.RequestID)

	reply, err := Reply(req, TypeStateResponse, StateResponsePayload{})
	require.NoError(t, err)
	assert.Equal(t, "elder-1", reply.From)
	assert.Equal(t, "guardian-1", reply.To)
	assert.Equal(t, req.RequestID, reply.RequestID)
}

func TestNewRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewRequestID()
		assert.False(t, seen[id], "duplicate request id %s", id)
		seen[id] = true
	}
}

func TestNewError_ComesFromServer(t *testing.T) {
	env := NewError("guardian-1", "req_1", CodeRecipientOffline, "recipient is offline")
	assert.Equal(t, TypeError, env.Type)
	assert.Equal(t, "server", env.From)
	assert.Equal(t, "req_1", env.RequestID)

	var p ErrorPayload
	require.NoError(t, DecodePayload(env, &p))
	assert.Equal(t, CodeRecipientOffline, p.Code)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	env, err := NewRequest(TypeSendReminder, "guardian-1", "elder-1", SendReminderPayload{
		Title: "Medication", Message: "Time for your 8am dose", Priority: "high",
	})
	require.NoError(t, err)

	data, err := Encode(env)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, env.RequestID, got.RequestID)

	var p SendReminderPayload
	require.NoError(t, DecodePayload(got, &p))
	assert.Equal(t, "Medication", p.Title)
}

func TestTypeTaxonomy_Disjoint(t *testing.T) {
	for typ := range requestTypes {
		assert.False(t, IsResponse(typ), "%s is both request and response", typ)
		assert.False(t, IsEvent(typ), "%s is both request and event", typ)
	}
	for typ := range eventTypes {
		assert.False(t, IsResponse(typ), "%s is both event and response", typ)
	}
}

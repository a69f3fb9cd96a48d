package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire message wrapper. Every frame exchanged over the relay
// is a JSON-encoded Envelope. RequestId is globally unique per logical
// request; a reply carries the requestId of the request it answers.
// Timestamp is producer-assigned and must not be trusted for ordering across
// devices.
type Envelope struct {
	Type      string          `json:"type"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Decoding errors. ErrMalformedFrame covers frames that are not valid JSON
// or that fail envelope validation; the connection handler drops such frames
// without closing the socket.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownType    = errors.New("unknown message type")
)

// NewRequestID returns a fresh globally unique request identifier.
func NewRequestID() string { return "req_" + uuid.NewString() }

// Now returns the producer timestamp format used on the wire.
func Now() string { return time.Now().UTC().Format(time.RFC3339) }

// NewEnvelope builds an envelope of the given type with a marshalled payload.
// A nil payload produces an envelope without a payload field.
func NewEnvelope(msgType, from, to, requestID string, payload any) (Envelope, error) {
	env := Envelope{
		Type:      msgType,
		From:      from,
		To:        to,
		RequestID: requestID,
		Timestamp: Now(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// NewRequest builds a request envelope with a freshly generated requestId.
func NewRequest(msgType, from, to string, payload any) (Envelope, error) {
	return NewEnvelope(msgType, from, to, NewRequestID(), payload)
}

// Reply builds a terminal reply to req, flipping the from/to addressing and
// preserving the request correlation id.
func Reply(req Envelope, msgType string, payload any) (Envelope, error) {
	return NewEnvelope(msgType, req.To, req.From, req.RequestID, payload)
}

// NewError builds a synthesized ERROR envelope addressed to a device. The
// requestId ties the error to the request it terminates; relay-originated
// errors use "server" as the sender.
func NewError(to, requestID, code, message string) Envelope {
	env, _ := NewEnvelope(TypeError, "server", to, requestID, ErrorPayload{Code: code, Message: message})
	return env
}

// Encode serializes an envelope to its wire form.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Decode parses and validates a wire frame. The type must belong to the
// known taxonomy and request/response envelopes must carry a requestId.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if err := Validate(env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Validate checks the structural invariants of an envelope independent of
// routing state.
func Validate(env Envelope) error {
	if env.Type == "" {
		return fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	if !IsRequest(env.Type) && !IsResponse(env.Type) && !IsEvent(env.Type) && env.Type != TypeConnectionAck {
		return fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if (IsRequest(env.Type) || IsResponse(env.Type)) && env.RequestID == "" {
		return fmt.Errorf("%w: %s without requestId", ErrMalformedFrame, env.Type)
	}
	return nil
}

// DecodePayload unmarshals the envelope payload into dst. An absent payload
// is an error; command payload schemas are enforced by the dispatcher on top
// of this.
func DecodePayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("%s: decode payload: %w", env.Type, err)
	}
	return nil
}

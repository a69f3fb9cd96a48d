// Package queue defines message payloads exchanged over the message broker.
package queue

// AlertDispatchedEvent is published after every alert fan-out. It is an
// audit record for downstream consumers (logging, analytics, delivery-gap
// dashboards) and is never read back for retry logic.
type AlertDispatchedEvent struct {
	ElderID     string   `json:"elder_id"`
	EventID     string   `json:"event_id,omitempty"`
	EventType   string   `json:"event_type"`
	Delivered   []string `json:"delivered"`
	Skipped     []string `json:"skipped"`
	BroadcastAt string   `json:"broadcast_at"`
}

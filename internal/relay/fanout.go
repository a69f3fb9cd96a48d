package relay

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/protocol"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/registry"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/repository"
)

// DeliveryReport records the outcome of one broadcast, for observability
// only; the relay never retries skipped guardians. Offline guardians catch
// up by pulling GET_ALERT_HISTORY after they reconnect.
type DeliveryReport struct {
	ElderID     string
	EventID     string
	EventType   string
	Delivered   []string // guardian ids the event was written to
	Skipped     []string // paired guardians without a live connection
	BroadcastAt time.Time
}

// AuditFunc receives a copy of every delivery report, typically to publish
// it to the audit queue. Audit failures are logged and otherwise ignored.
type AuditFunc func(ctx context.Context, report DeliveryReport) error

// Fanout broadcasts elder-originated events to every paired, connected
// guardian. Delivery is deliberately best-effort and at-most-once.
type Fanout struct {
	reg      *registry.Registry
	pairings repository.PairingStore
	audit    AuditFunc
}

// NewFanout builds a fan-out over the registry and pairing store. audit may
// be nil when no audit queue is configured.
func NewFanout(reg *registry.Registry, pairings repository.PairingStore, audit AuditFunc) *Fanout {
	return &Fanout{reg: reg, pairings: pairings, audit: audit}
}

// Broadcast delivers the event envelope to each online guardian paired with
// the elder. Events from one elder are broadcast in the order they arrive on
// its connection, so a resolution push never overtakes its creation push.
func (f *Fanout) Broadcast(elderID string, env protocol.Envelope) DeliveryReport {
	report := DeliveryReport{
		ElderID:     elderID,
		EventID:     payloadID(env),
		EventType:   env.Type,
		BroadcastAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	guardians, err := f.pairings.GuardianIDs(ctx, elderID)
	if err != nil {
		log.Printf("fanout: list guardians for %s: %v", elderID, err)
		return report
	}

	for _, gid := range guardians {
		out := env
		out.To = gid
		conn, ok := f.reg.Lookup(gid)
		if !ok {
			report.Skipped = append(report.Skipped, gid)
			continue
		}
		if err := conn.Send(out); err != nil {
			log.Printf("fanout: %s to %s failed: %v", env.Type, gid, err)
			report.Skipped = append(report.Skipped, gid)
			continue
		}
		report.Delivered = append(report.Delivered, gid)
	}

	if f.audit != nil {
		go func(rep DeliveryReport) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := f.audit(ctx, rep); err != nil {
				log.Printf("fanout: audit publish failed: %v", err)
			}
		}(report)
	}
	return report
}

// NotifyElder pushes a server-originated event (GUARDIAN_PAIRED/UNPAIRED) to
// the elder if it is connected. Returns false when the elder is offline; the
// pairing itself is already durable either way.
func (f *Fanout) NotifyElder(elderID string, env protocol.Envelope) bool {
	conn, ok := f.reg.Lookup(elderID)
	if !ok {
		return false
	}
	if err := conn.Send(env); err != nil {
		log.Printf("fanout: notify %s with %s failed: %v", elderID, env.Type, err)
		return false
	}
	return true
}

// payloadID extracts the event's own id from the payload when present, so
// reports and audit records can reference the alert.
func payloadID(env protocol.Envelope) string {
	if len(env.Payload) == 0 {
		return ""
	}
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return ""
	}
	return p.ID
}

// Package elder implements the elder-device side of the relay protocol: the
// command dispatcher that executes guardian-issued commands against the
// local store, the confirmation policies that gate them, and the sqlite
// store itself.
package elder

import "github.com/ggokuldas06/senior-launcher-sub001/internal/protocol"

// Two confirmation policies exist and must not be merged. The voice
// assistant's policy answers "confirm before I act on the elder's behalf";
// the guardian-command policy answers "show the elder a consent prompt
// before a remote party's command takes effect". They share some entries by
// coincidence, not by design.

// AssistantCriticalIntents are locally-spoken intents the voice assistant
// re-confirms with the elder before acting.
var AssistantCriticalIntents = map[string]bool{
	"SOS_TRIGGER":         true,
	"CALL_CONTACT":        true,
	"MEDICATION_DELETE":   true,
	"MEDICATION_LOG_SKIP": true,
	"APPOINTMENT_CANCEL":  true,
	"SEND_MESSAGE":        true,
	"CAREGIVER_CONTACT":   true,
}

// ConsentRequiredCommands are guardian-issued command types whose effects
// are irreversible or high-impact enough that the elder device surfaces a
// consent prompt before applying them. Classification is by command type
// only, never by payload content.
var ConsentRequiredCommands = map[string]bool{
	protocol.TypeDeleteMedication:       true,
	protocol.TypeDeleteEmergencyContact: true,
	protocol.TypeSendMessage:            true,
}

// AssistantConfirmationRequired reports whether a locally-spoken intent
// needs re-confirmation before executing.
func AssistantConfirmationRequired(intent string) bool {
	return AssistantCriticalIntents[intent]
}

// ConsentRequired reports whether a guardian command needs elder consent
// before executing.
func ConsentRequired(commandType string) bool {
	return ConsentRequiredCommands[commandType]
}

// Package protocol defines the wire format exchanged between elder devices,
// guardian devices and the relay: the envelope structure, the message type
// taxonomy and the typed payloads carried inside envelopes.
package protocol

// Server-generated message types.
const (
	TypeConnectionAck = "CONNECTION_ACK" // sent once after a device registers its socket
	TypeError         = "ERROR"          // synthesized routing/transport error
)

// Request types sent from a guardian to an elder. Every request expects
// exactly one terminal reply correlated by requestId.
const (
	TypeGetState               = "GET_STATE"
	TypeGetMedications         = "GET_MEDICATIONS"
	TypeGetAlertHistory        = "GET_ALERT_HISTORY"
	TypeGetHealthHistory       = "GET_HEALTH_HISTORY"
	TypeAddMedication          = "ADD_MEDICATION"
	TypeUpdateMedication       = "UPDATE_MEDICATION"
	TypeDeleteMedication       = "DELETE_MEDICATION"
	TypeSendReminder           = "SEND_REMINDER"
	TypeSendMessage            = "SEND_MESSAGE"
	TypeUpdateEmergencyContact = "UPDATE_EMERGENCY_CONTACT"
	TypeDeleteEmergencyContact = "DELETE_EMERGENCY_CONTACT"
)

// Response types sent from an elder back to the requesting guardian.
const (
	TypeStateResponse         = "STATE_RESPONSE"
	TypeMedicationsResponse   = "MEDICATIONS_RESPONSE"
	TypeAlertHistoryResponse  = "ALERT_HISTORY_RESPONSE"
	TypeHealthHistoryResponse = "HEALTH_HISTORY_RESPONSE"
	TypeCommandSuccess        = "COMMAND_SUCCESS"
	TypeCommandError          = "COMMAND_ERROR"
)

// Event types pushed from an elder to all of its paired guardians, and from
// the relay to the elder when a pairing changes. Events carry no request
// correlation.
const (
	TypeAlertEvent        = "ALERT_EVENT"
	TypeMedicationUpdated = "MEDICATION_UPDATED"
	TypeGuardianPaired    = "GUARDIAN_PAIRED"
	TypeGuardianUnpaired  = "GUARDIAN_UNPAIRED"
)

// Error codes carried in ERROR and COMMAND_ERROR payloads, grouped by the
// layer that produces them.
const (
	// Routing errors synthesized by the relay.
	CodeRecipientOffline = "RECIPIENT_OFFLINE"
	CodeTimeout          = "TIMEOUT"

	// Pairing errors returned from the HTTP pairing surface.
	CodeExpired         = "EXPIRED"
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyConsumed = "ALREADY_CONSUMED"

	// Command errors produced by the elder-side dispatcher.
	CodeInvalidPayload      = "INVALID_PAYLOAD"
	CodeConfirmationTimeout = "CONFIRMATION_TIMEOUT"
	CodeConfirmationDenied  = "CONFIRMATION_DENIED"
	CodeExecutionFailed     = "EXECUTION_FAILED"

	// Transport errors.
	CodeDisconnected   = "DISCONNECTED"
	CodeMalformedFrame = "MALFORMED_FRAME"
)

// Device roles accepted as connection parameters.
const (
	RoleElder    = "elder"
	RoleGuardian = "guardian"
)

var requestTypes = map[string]bool{
	TypeGetState:               true,
	TypeGetMedications:         true,
	TypeGetAlertHistory:        true,
	TypeGetHealthHistory:       true,
	TypeAddMedication:          true,
	TypeUpdateMedication:       true,
	TypeDeleteMedication:       true,
	TypeSendReminder:           true,
	TypeSendMessage:            true,
	TypeUpdateEmergencyContact: true,
	TypeDeleteEmergencyContact: true,
}

var responseTypes = map[string]bool{
	TypeStateResponse:         true,
	TypeMedicationsResponse:   true,
	TypeAlertHistoryResponse:  true,
	TypeHealthHistoryResponse: true,
	TypeCommandSuccess:        true,
	TypeCommandError:          true,
	TypeError:                 true,
}

var eventTypes = map[string]bool{
	TypeAlertEvent:        true,
	TypeMedicationUpdated: true,
	TypeGuardianPaired:    true,
	TypeGuardianUnpaired:  true,
}

// IsRequest reports whether t is a guardian-issued request type that expects
// a correlated reply.
func IsRequest(t string) bool { return requestTypes[t] }

// IsResponse reports whether t is a terminal reply type that resolves a
// pending request.
func IsResponse(t string) bool { return responseTypes[t] }

// IsEvent reports whether t is a fire-and-forget event type that is fanned
// out rather than routed point-to-point.
func IsEvent(t string) bool { return eventTypes[t] }

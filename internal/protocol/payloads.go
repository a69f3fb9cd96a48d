package protocol

// Payload shapes carried inside envelopes. Field names match the wire JSON
// produced by the elder launcher and guardian apps.

// ErrorPayload is carried by ERROR envelopes.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CommandSuccessPayload is carried by COMMAND_SUCCESS envelopes. Data holds
// optional result values such as a newly created medication id.
type CommandSuccessPayload struct {
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}

// CommandErrorPayload is carried by COMMAND_ERROR envelopes.
type CommandErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ConnectionAckPayload confirms socket registration.
type ConnectionAckPayload struct {
	DeviceID string `json:"deviceId"`
	Role     string `json:"role"`
}

// ----- medications -----

// MedicationInfo describes one medication row.
type MedicationInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Instructions string `json:"instructions"`
}

// ScheduleInfo describes one medication schedule. Time uses "HH:mm" and
// DaysOfWeek uses 0-6 with Sunday as 0.
type ScheduleInfo struct {
	ID           string `json:"id"`
	MedicationID string `json:"medicationId"`
	Time         string `json:"time"`
	DaysOfWeek   []int  `json:"daysOfWeek"`
	Enabled      bool   `json:"enabled"`
}

// MedicationLogInfo records one scheduled intake and its outcome. Status is
// one of "taken", "missed" or "skipped".
type MedicationLogInfo struct {
	ID            string `json:"id"`
	MedicationID  string `json:"medicationId"`
	ScheduleID    string `json:"scheduleId"`
	ScheduledTime string `json:"scheduledTime"`
	TakenAt       string `json:"takenAt,omitempty"`
	Status        string `json:"status"`
}

// MedicationsResponsePayload answers GET_MEDICATIONS.
type MedicationsResponsePayload struct {
	Medications []MedicationInfo    `json:"medications"`
	Schedules   []ScheduleInfo      `json:"schedules"`
	Logs        []MedicationLogInfo `json:"logs"`
}

// AddMedicationPayload creates a medication with at least one schedule.
type AddMedicationPayload struct {
	Name         string            `json:"name"`
	Dosage       string            `json:"dosage"`
	Instructions string            `json:"instructions"`
	Schedules    []SchedulePayload `json:"schedules"`
}

// SchedulePayload is the schedule shape inside add/update commands.
type SchedulePayload struct {
	Time       string `json:"time"`
	DaysOfWeek []int  `json:"daysOfWeek"`
	Enabled    bool   `json:"enabled"`
}

// UpdateMedicationPayload patches a medication; nil fields are left as-is.
// A non-nil Schedules replaces the full schedule set.
type UpdateMedicationPayload struct {
	MedicationID string             `json:"medicationId"`
	Name         *string            `json:"name,omitempty"`
	Dosage       *string            `json:"dosage,omitempty"`
	Instructions *string            `json:"instructions,omitempty"`
	Schedules    *[]SchedulePayload `json:"schedules,omitempty"`
}

// DeleteMedicationPayload removes a medication and its schedules.
type DeleteMedicationPayload struct {
	MedicationID string `json:"medicationId"`
}

// MedicationUpdatedPayload is fanned out to every paired guardian after a
// successful medication mutation. Action is "added", "updated" or "deleted".
type MedicationUpdatedPayload struct {
	ElderID    string         `json:"elderId"`
	Action     string         `json:"action"`
	Medication MedicationInfo `json:"medication"`
	Schedules  []ScheduleInfo `json:"schedules"`
}

// ----- alerts and state -----

// LocationInfo is an optional alert location.
type LocationInfo struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AlertInfo describes one alert occurrence. A resolution is pushed as a new
// ALERT_EVENT carrying the same id with Resolved set.
type AlertInfo struct {
	ID           string        `json:"id"`
	ElderID      string        `json:"elderId"`
	Type         string        `json:"type"`
	TriggeredAt  string        `json:"triggeredAt"`
	Location     *LocationInfo `json:"location,omitempty"`
	BatteryLevel *int          `json:"batteryLevel,omitempty"`
	Resolved     bool          `json:"resolved"`
	Notes        string        `json:"notes"`
}

// AlertHistoryResponsePayload answers GET_ALERT_HISTORY.
type AlertHistoryResponsePayload struct {
	Alerts []AlertInfo `json:"alerts"`
}

// ElderInfo summarizes the elder device for GET_STATE.
type ElderInfo struct {
	Name          string `json:"name"`
	Age           *int   `json:"age,omitempty"`
	BatteryLevel  int    `json:"batteryLevel"`
	LastHeartbeat string `json:"lastHeartbeat"`
}

// MedicationSummary aggregates today's intake counts.
type MedicationSummary struct {
	TodayTotal  int `json:"todayTotal"`
	TakenToday  int `json:"takenToday"`
	MissedToday int `json:"missedToday"`
}

// StateResponsePayload answers GET_STATE.
type StateResponsePayload struct {
	Elder             ElderInfo         `json:"elder"`
	RecentAlerts      []AlertInfo       `json:"recentAlerts"`
	MedicationSummary MedicationSummary `json:"medicationSummary"`
}

// ----- health check-ins -----

// HealthCheckInInfo is one daily self-reported check-in. Date uses
// "yyyy-MM-dd"; the 1-5 scales are omitted when not answered.
type HealthCheckInInfo struct {
	ID           string   `json:"id"`
	ElderID      string   `json:"elderId"`
	Date         string   `json:"date"`
	Mood         *int     `json:"mood,omitempty"`
	PainLevel    *int     `json:"painLevel,omitempty"`
	SleepQuality *int     `json:"sleepQuality,omitempty"`
	Symptoms     []string `json:"symptoms"`
	Notes        string   `json:"notes"`
}

// HealthHistoryResponsePayload answers GET_HEALTH_HISTORY.
type HealthHistoryResponsePayload struct {
	CheckIns []HealthCheckInInfo `json:"checkIns"`
}

// ----- reminders, messages, contacts -----

// SendReminderPayload shows a local reminder notification on the elder
// device. Priority is "low", "normal", "high" or "urgent".
type SendReminderPayload struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// SendMessagePayload shows a message from a guardian on the elder device.
type SendMessagePayload struct {
	GuardianName           string `json:"guardianName"`
	Message                string `json:"message"`
	RequiresAcknowledgment bool   `json:"requiresAcknowledgment"`
}

// UpdateEmergencyContactPayload upserts an emergency contact. A missing
// ContactID creates a new contact.
type UpdateEmergencyContactPayload struct {
	ContactID    string `json:"contactId,omitempty"`
	Name         string `json:"name"`
	PhoneNumber  string `json:"phoneNumber"`
	Relationship string `json:"relationship"`
}

// DeleteEmergencyContactPayload removes a contact.
type DeleteEmergencyContactPayload struct {
	ContactID string `json:"contactId"`
}

// ----- pairing events -----

// GuardianPairedPayload notifies the elder that a guardian redeemed a code.
type GuardianPairedPayload struct {
	GuardianID   string `json:"guardianId"`
	GuardianName string `json:"guardianName"`
}

// GuardianUnpairedPayload notifies the elder that a pairing was removed.
type GuardianUnpairedPayload struct {
	GuardianID string `json:"guardianId"`
}

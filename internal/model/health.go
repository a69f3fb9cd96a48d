package model

import "time"

// AlertEvent is one alert occurrence raised by elder-local detection logic
// (SOS button, fall detection, missed medication, inactivity, low battery).
// Resolving an alert re-pushes the same ID with Resolved set; fan-out treats
// the update as a new push, not a mutation of a prior delivery.
type AlertEvent struct {
	ID           string    // alerts.id ("alert_" prefixed)
	ElderID      string    // owning elder device id
	Type         string    // SOS, FALL, MISSED_MED, INACTIVITY, LOW_BATTERY
	TriggeredAt  time.Time // when detection fired
	Latitude     *float64  // optional location
	Longitude    *float64  // optional location
	BatteryLevel *int      // device battery at trigger time, if known
	Resolved     bool      // flipped when the elder or a guardian resolves it
	Notes        string    // free-form context
}

// HealthCheckIn is one daily self-reported wellness entry. The 1-5 scales
// are nullable because the elder may skip questions.
type HealthCheckIn struct {
	ID           string    // health_check_ins.id
	ElderID      string    // owning elder device id
	Date         string    // "yyyy-MM-dd"
	Mood         *int      // 1-5
	PainLevel    *int      // 1-5
	SleepQuality *int      // 1-5
	Symptoms     []string  // reported symptom tags
	Notes        string    // free-form notes
	CreatedAt    time.Time // row creation time
}

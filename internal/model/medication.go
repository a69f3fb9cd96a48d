package model

import "time"

// Medication is one medication the elder takes.
type Medication struct {
	ID           string    // medications.id ("med_" prefixed)
	Name         string    // medications.name
	Dosage       string    // e.g. "5mg"
	Instructions string    // free-form intake instructions
	CreatedAt    time.Time // row creation time
	UpdatedAt    time.Time // last mutation time
}

// MedicationSchedule is one recurring intake slot for a medication.
type MedicationSchedule struct {
	ID           string // medication_schedules.id ("sch_" prefixed)
	MedicationID string // owning medication
	Time         string // "HH:mm", elder-local time
	DaysOfWeek   []int  // 0-6, Sunday is 0
	Enabled      bool   // disabled schedules fire no reminders
}

// MedicationLog records the outcome of one scheduled intake.
// Status is "taken", "missed" or "skipped".
type MedicationLog struct {
	ID            string     // medication_logs.id
	MedicationID  string     // medication the slot belongs to
	ScheduleID    string     // schedule that produced the slot
	ScheduledTime time.Time  // when the dose was due
	TakenAt       *time.Time // when it was actually taken, if it was
	Status        string     // taken | missed | skipped
}

// EmergencyContact is a person the elder can reach in an emergency.
type EmergencyContact struct {
	ID           string // emergency_contacts.id ("ect_" prefixed)
	Name         string // contact display name
	PhoneNumber  string // dialable number
	Relationship string // e.g. "daughter", "doctor"
}

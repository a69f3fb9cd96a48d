package elder

import (
	"context"
	"errors"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/model"
)

// Store errors surfaced to the dispatcher, which maps them onto
// COMMAND_ERROR payloads.
var (
	ErrMedicationNotFound = errors.New("medication not found")
	ErrContactNotFound    = errors.New("emergency contact not found")
)

// MedicationPatch carries a partial medication update. Nil fields are left
// unchanged; a non-nil Schedules replaces the full schedule set.
type MedicationPatch struct {
	ID           string
	Name         *string
	Dosage       *string
	Instructions *string
	Schedules    *[]model.MedicationSchedule
}

// Store is the elder-local data store the dispatcher executes against. The
// production implementation is sqlite; tests use lightweight fakes.
type Store interface {
	// AddMedication inserts a medication and its schedules, assigning ids.
	AddMedication(ctx context.Context, med model.Medication, schedules []model.MedicationSchedule) (model.Medication, []model.MedicationSchedule, error)
	// UpdateMedication applies a patch; ErrMedicationNotFound when absent.
	UpdateMedication(ctx context.Context, patch MedicationPatch) (model.Medication, []model.MedicationSchedule, error)
	// DeleteMedication removes a medication and its schedules, returning the
	// removed row; ErrMedicationNotFound when absent.
	DeleteMedication(ctx context.Context, id string) (model.Medication, error)
	// Medications returns all medications with schedules and intake logs.
	Medications(ctx context.Context) ([]model.Medication, []model.MedicationSchedule, []model.MedicationLog, error)
	// MedicationSummary aggregates today's scheduled/taken/missed counts.
	MedicationSummary(ctx context.Context, date string) (total, taken, missed int, err error)

	// UpsertEmergencyContact creates the contact when its ID is empty,
	// updates it otherwise; ErrContactNotFound on an unknown id.
	UpsertEmergencyContact(ctx context.Context, contact model.EmergencyContact) (model.EmergencyContact, error)
	// DeleteEmergencyContact removes a contact; ErrContactNotFound when absent.
	DeleteEmergencyContact(ctx context.Context, id string) error

	// SaveAlert inserts an alert or, for an existing id, updates it (a
	// resolution re-saves the same id with Resolved set).
	SaveAlert(ctx context.Context, alert model.AlertEvent) error
	// RecentAlerts returns the newest alerts, most recent first.
	RecentAlerts(ctx context.Context, limit int) ([]model.AlertEvent, error)

	// SaveHealthCheckIn records one daily check-in.
	SaveHealthCheckIn(ctx context.Context, checkIn model.HealthCheckIn) error
	// HealthHistory returns the newest check-ins, most recent first.
	HealthHistory(ctx context.Context, limit int) ([]model.HealthCheckIn, error)

	// Close releases the underlying database.
	Close() error
}

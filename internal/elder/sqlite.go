package elder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/model"
)

// SQLiteStore persists the elder's local data in a single sqlite file. The
// pure-Go driver keeps the agent free of cgo, which matters on the device
// builds.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS medications (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    dosage       TEXT NOT NULL DEFAULT '',
    instructions TEXT NOT NULL DEFAULT '',
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS medication_schedules (
    id            TEXT PRIMARY KEY,
    medication_id TEXT NOT NULL REFERENCES medications(id),
    time          TEXT NOT NULL,
    days_of_week  TEXT NOT NULL,
    enabled       INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS medication_logs (
    id             TEXT PRIMARY KEY,
    medication_id  TEXT NOT NULL,
    schedule_id    TEXT NOT NULL,
    scheduled_time TEXT NOT NULL,
    taken_at       TEXT,
    status         TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS emergency_contacts (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    phone_number TEXT NOT NULL,
    relationship TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS alerts (
    id            TEXT PRIMARY KEY,
    elder_id      TEXT NOT NULL,
    type          TEXT NOT NULL,
    triggered_at  TEXT NOT NULL,
    latitude      REAL,
    longitude     REAL,
    battery_level INTEGER,
    resolved      INTEGER NOT NULL DEFAULT 0,
    notes         TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS health_check_ins (
    id            TEXT PRIMARY KEY,
    elder_id      TEXT NOT NULL,
    date          TEXT NOT NULL,
    mood          INTEGER,
    pain_level    INTEGER,
    sleep_quality INTEGER,
    symptoms      TEXT NOT NULL DEFAULT '',
    notes         TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL
);
`

// NewSQLiteStore opens (or creates) the store at path. ":memory:" gives an
// ephemeral store for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The sqlite file serves one agent process; a single connection avoids
	// SQLITE_BUSY without WAL tuning.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// AddMedication inserts the medication and its schedules in one transaction.
func (s *SQLiteStore) AddMedication(ctx context.Context, med model.Medication, schedules []model.MedicationSchedule) (model.Medication, []model.MedicationSchedule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Medication{}, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	med.ID = "med_" + uuid.NewString()
	med.CreatedAt = now
	med.UpdatedAt = now

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO medications (id, name, dosage, instructions, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		med.ID, med.Name, med.Dosage, med.Instructions, now.Format(time.RFC3339), now.Format(time.RFC3339),
	); err != nil {
		return model.Medication{}, nil, err
	}

	out := make([]model.MedicationSchedule, 0, len(schedules))
	for _, sch := range schedules {
		sch.ID = "sch_" + uuid.NewString()
		sch.MedicationID = med.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO medication_schedules (id, medication_id, time, days_of_week, enabled) VALUES (?, ?, ?, ?, ?)`,
			sch.ID, sch.MedicationID, sch.Time, joinDays(sch.DaysOfWeek), boolToInt(sch.Enabled),
		); err != nil {
			return model.Medication{}, nil, err
		}
		out = append(out, sch)
	}
	if err := tx.Commit(); err != nil {
		return model.Medication{}, nil, err
	}
	return med, out, nil
}

// UpdateMedication applies the patch and, when schedules are provided,
// replaces the full schedule set the way the original handler does.
func (s *SQLiteStore) UpdateMedication(ctx context.Context, patch MedicationPatch) (model.Medication, []model.MedicationSchedule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Medication{}, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	med, err := getMedicationTx(ctx, tx, patch.ID)
	if err != nil {
		return model.Medication{}, nil, err
	}

	if patch.Name != nil {
		med.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Dosage != nil {
		med.Dosage = strings.TrimSpace(*patch.Dosage)
	}
	if patch.Instructions != nil {
		med.Instructions = strings.TrimSpace(*patch.Instructions)
	}
	med.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE medications SET name = ?, dosage = ?, instructions = ?, updated_at = ? WHERE id = ?`,
		med.Name, med.Dosage, med.Instructions, med.UpdatedAt.Format(time.RFC3339), med.ID,
	); err != nil {
		return model.Medication{}, nil, err
	}

	if patch.Schedules != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM medication_schedules WHERE medication_id = ?`, med.ID); err != nil {
			return model.Medication{}, nil, err
		}
		for _, sch := range *patch.Schedules {
			sch.ID = "sch_" + uuid.NewString()
			sch.MedicationID = med.ID
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO medication_schedules (id, medication_id, time, days_of_week, enabled) VALUES (?, ?, ?, ?, ?)`,
				sch.ID, sch.MedicationID, sch.Time, joinDays(sch.DaysOfWeek), boolToInt(sch.Enabled),
			); err != nil {
				return model.Medication{}, nil, err
			}
		}
	}

	schedules, err := schedulesForTx(ctx, tx, med.ID)
	if err != nil {
		return model.Medication{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return model.Medication{}, nil, err
	}
	return med, schedules, nil
}

// DeleteMedication removes the medication, its schedules and its logs.
func (s *SQLiteStore) DeleteMedication(ctx context.Context, id string) (model.Medication, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Medication{}, err
	}
	defer func() { _ = tx.Rollback() }()

	med, err := getMedicationTx(ctx, tx, id)
	if err != nil {
		return model.Medication{}, err
	}
	for _, q := range []string{
		`DELETE FROM medication_schedules WHERE medication_id = ?`,
		`DELETE FROM medication_logs WHERE medication_id = ?`,
		`DELETE FROM medications WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return model.Medication{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Medication{}, err
	}
	return med, nil
}

// Medications returns the full medication view for MEDICATIONS_RESPONSE.
func (s *SQLiteStore) Medications(ctx context.Context) ([]model.Medication, []model.MedicationSchedule, []model.MedicationLog, error) {
	meds := []model.Medication{}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, dosage, instructions, created_at, updated_at FROM medications ORDER BY created_at`)
	if err != nil {
		return nil, nil, nil, err
	}
	for rows.Next() {
		var m model.Medication
		var created, updated string
		if err := rows.Scan(&m.ID, &m.Name, &m.Dosage, &m.Instructions, &created, &updated); err != nil {
			rows.Close()
			return nil, nil, nil, err
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, created)
		m.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		meds = append(meds, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, nil, err
	}

	schedules := []model.MedicationSchedule{}
	rows, err = s.db.QueryContext(ctx,
		`SELECT id, medication_id, time, days_of_week, enabled FROM medication_schedules ORDER BY time`)
	if err != nil {
		return nil, nil, nil, err
	}
	for rows.Next() {
		var sch model.MedicationSchedule
		var days string
		var enabled int
		if err := rows.Scan(&sch.ID, &sch.MedicationID, &sch.Time, &days, &enabled); err != nil {
			rows.Close()
			return nil, nil, nil, err
		}
		sch.DaysOfWeek = splitDays(days)
		sch.Enabled = enabled != 0
		schedules = append(schedules, sch)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, nil, err
	}

	logs := []model.MedicationLog{}
	rows, err = s.db.QueryContext(ctx,
		`SELECT id, medication_id, schedule_id, scheduled_time, taken_at, status FROM medication_logs ORDER BY scheduled_time DESC LIMIT 200`)
	if err != nil {
		return nil, nil, nil, err
	}
	for rows.Next() {
		var lg model.MedicationLog
		var scheduled string
		var taken sql.NullString
		if err := rows.Scan(&lg.ID, &lg.MedicationID, &lg.ScheduleID, &scheduled, &taken, &lg.Status); err != nil {
			rows.Close()
			return nil, nil, nil, err
		}
		lg.ScheduledTime, _ = time.Parse(time.RFC3339, scheduled)
		if taken.Valid {
			t, _ := time.Parse(time.RFC3339, taken.String)
			lg.TakenAt = &t
		}
		logs = append(logs, lg)
	}
	rows.Close()
	return meds, schedules, logs, rows.Err()
}

// MedicationSummary counts today's slots by outcome. date is "yyyy-MM-dd".
func (s *SQLiteStore) MedicationSummary(ctx context.Context, date string) (total, taken, missed int, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM medication_logs WHERE substr(scheduled_time, 1, 10) = ? GROUP BY status`, date)
	if err != nil {
		return 0, 0, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return 0, 0, 0, err
		}
		total += n
		switch status {
		case "taken":
			taken += n
		case "missed":
			missed += n
		}
	}
	return total, taken, missed, rows.Err()
}

// UpsertEmergencyContact creates or updates a contact.
func (s *SQLiteStore) UpsertEmergencyContact(ctx context.Context, contact model.EmergencyContact) (model.EmergencyContact, error) {
	if contact.ID == "" {
		contact.ID = "ect_" + uuid.NewString()
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO emergency_contacts (id, name, phone_number, relationship) VALUES (?, ?, ?, ?)`,
			contact.ID, contact.Name, contact.PhoneNumber, contact.Relationship)
		return contact, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE emergency_contacts SET name = ?, phone_number = ?, relationship = ? WHERE id = ?`,
		contact.Name, contact.PhoneNumber, contact.Relationship, contact.ID)
	if err != nil {
		return model.EmergencyContact{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.EmergencyContact{}, ErrContactNotFound
	}
	return contact, nil
}

// DeleteEmergencyContact removes a contact.
func (s *SQLiteStore) DeleteEmergencyContact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM emergency_contacts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrContactNotFound
	}
	return nil
}

// SaveAlert upserts by alert id so a resolution overwrites its creation row.
func (s *SQLiteStore) SaveAlert(ctx context.Context, alert model.AlertEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, elder_id, type, triggered_at, latitude, longitude, battery_level, resolved, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET resolved = excluded.resolved, notes = excluded.notes`,
		alert.ID, alert.ElderID, alert.Type, alert.TriggeredAt.UTC().Format(time.RFC3339),
		alert.Latitude, alert.Longitude, alert.BatteryLevel, boolToInt(alert.Resolved), alert.Notes)
	return err
}

// RecentAlerts returns the newest alerts first.
func (s *SQLiteStore) RecentAlerts(ctx context.Context, limit int) ([]model.AlertEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, elder_id, type, triggered_at, latitude, longitude, battery_level, resolved, notes
		 FROM alerts ORDER BY triggered_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AlertEvent{}
	for rows.Next() {
		var a model.AlertEvent
		var triggered string
		var lat, lng sql.NullFloat64
		var battery sql.NullInt64
		var resolved int
		if err := rows.Scan(&a.ID, &a.ElderID, &a.Type, &triggered, &lat, &lng, &battery, &resolved, &a.Notes); err != nil {
			return nil, err
		}
		a.TriggeredAt, _ = time.Parse(time.RFC3339, triggered)
		if lat.Valid && lng.Valid {
			a.Latitude, a.Longitude = &lat.Float64, &lng.Float64
		}
		if battery.Valid {
			b := int(battery.Int64)
			a.BatteryLevel = &b
		}
		a.Resolved = resolved != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveHealthCheckIn records one daily check-in.
func (s *SQLiteStore) SaveHealthCheckIn(ctx context.Context, checkIn model.HealthCheckIn) error {
	if checkIn.ID == "" {
		checkIn.ID = "chk_" + uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO health_check_ins (id, elder_id, date, mood, pain_level, sleep_quality, symptoms, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		checkIn.ID, checkIn.ElderID, checkIn.Date, checkIn.Mood, checkIn.PainLevel, checkIn.SleepQuality,
		strings.Join(checkIn.Symptoms, ","), checkIn.Notes, time.Now().UTC().Format(time.RFC3339))
	return err
}

// HealthHistory returns the newest check-ins first.
func (s *SQLiteStore) HealthHistory(ctx context.Context, limit int) ([]model.HealthCheckIn, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, elder_id, date, mood, pain_level, sleep_quality, symptoms, notes, created_at
		 FROM health_check_ins ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.HealthCheckIn{}
	for rows.Next() {
		var h model.HealthCheckIn
		var mood, pain, sleep sql.NullInt64
		var symptoms, created string
		if err := rows.Scan(&h.ID, &h.ElderID, &h.Date, &mood, &pain, &sleep, &symptoms, &h.Notes, &created); err != nil {
			return nil, err
		}
		h.Mood = nullableInt(mood)
		h.PainLevel = nullableInt(pain)
		h.SleepQuality = nullableInt(sleep)
		if symptoms != "" {
			h.Symptoms = strings.Split(symptoms, ",")
		} else {
			h.Symptoms = []string{}
		}
		h.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, h)
	}
	return out, rows.Err()
}

func getMedicationTx(ctx context.Context, tx *sql.Tx, id string) (model.Medication, error) {
	var m model.Medication
	var created, updated string
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, dosage, instructions, created_at, updated_at FROM medications WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &m.Dosage, &m.Instructions, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Medication{}, ErrMedicationNotFound
	}
	if err != nil {
		return model.Medication{}, err
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339, created)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return m, nil
}

func schedulesForTx(ctx context.Context, tx *sql.Tx, medicationID string) ([]model.MedicationSchedule, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, medication_id, time, days_of_week, enabled FROM medication_schedules WHERE medication_id = ? ORDER BY time`,
		medicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.MedicationSchedule{}
	for rows.Next() {
		var sch model.MedicationSchedule
		var days string
		var enabled int
		if err := rows.Scan(&sch.ID, &sch.MedicationID, &sch.Time, &days, &enabled); err != nil {
			return nil, err
		}
		sch.DaysOfWeek = splitDays(days)
		sch.Enabled = enabled != 0
		out = append(out, sch)
	}
	return out, rows.Err()
}

func joinDays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

func splitDays(s string) []int {
	if s == "" {
		return []int{}
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

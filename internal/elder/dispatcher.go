package elder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/model"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/protocol"
)

// DefaultConsentWindow bounds how long the elder gets to answer a consent
// prompt before the command fails with CONFIRMATION_TIMEOUT.
const DefaultConsentWindow = 60 * time.Second

// ConsentRequest describes the prompt surfaced to the elder for a
// consent-gated command.
type ConsentRequest struct {
	CommandType string
	GuardianID  string
	Summary     string
}

// Confirmer surfaces a consent prompt on the elder device and blocks until
// the elder decides or ctx expires. The prompt is a passive notification,
// never a blocking dialog.
type Confirmer interface {
	Confirm(ctx context.Context, req ConsentRequest) (bool, error)
}

// Notifier shows reminder and message notifications on the elder device.
type Notifier interface {
	ShowReminder(title, message, priority string) error
	ShowMessage(from, message string, requiresAck bool) error
}

// AutoApprove is a Confirmer that approves everything, for headless runs
// and tests.
type AutoApprove struct{}

// Confirm implements Confirmer.
func (AutoApprove) Confirm(context.Context, ConsentRequest) (bool, error) { return true, nil }

// DispatcherConfig carries the dispatcher's collaborators.
type DispatcherConfig struct {
	DeviceID      string
	ElderName     string
	ElderAge      *int
	Store         Store
	Confirmer     Confirmer
	Notifier      Notifier
	Send          func(protocol.Envelope) error // outbound path to the relay
	Battery       func() int                    // current battery level
	ConsentWindow time.Duration
}

// Dispatcher executes routed guardian commands against the local store.
// Every inbound command envelope moves through one state machine:
// RECEIVED -> (consent-gated? CONFIRMATION_PENDING : EXECUTING) ->
// SUCCEEDED | FAILED, and produces exactly one reply envelope correlated to
// the original requestId. Successful medication mutations additionally emit
// a MEDICATION_UPDATED event for fan-out to every paired guardian; that
// event is separate from the reply and must never replace it.
type Dispatcher struct {
	cfg DispatcherConfig
}

// NewDispatcher builds a dispatcher. Missing optional collaborators fall
// back to safe defaults (auto-approval, full battery).
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Confirmer == nil {
		cfg.Confirmer = AutoApprove{}
	}
	if cfg.ConsentWindow <= 0 {
		cfg.ConsentWindow = DefaultConsentWindow
	}
	if cfg.Battery == nil {
		cfg.Battery = func() int { return 100 }
	}
	return &Dispatcher{cfg: cfg}
}

// Handle processes one routed envelope. It never panics outward: a failure
// anywhere inside execution becomes a COMMAND_ERROR reply.
func (d *Dispatcher) Handle(ctx context.Context, env protocol.Envelope) {
	if !protocol.IsRequest(env.Type) {
		// GUARDIAN_PAIRED and friends are informational here.
		log.Printf("dispatcher: ignoring %s", env.Type)
		return
	}

	reply, event := d.process(ctx, env)

	if err := d.cfg.Send(reply); err != nil {
		log.Printf("dispatcher: reply %s for %s undeliverable: %v", reply.Type, env.RequestID, err)
	}
	if event != nil {
		if err := d.cfg.Send(*event); err != nil {
			log.Printf("dispatcher: event %s undeliverable: %v", event.Type, err)
		}
	}
}

// process runs the state machine and returns the single terminal reply plus
// an optional fan-out event.
func (d *Dispatcher) process(ctx context.Context, env protocol.Envelope) (reply protocol.Envelope, event *protocol.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatcher: recovered executing %s: %v", env.Type, r)
			reply = d.commandError(env, protocol.CodeExecutionFailed, fmt.Sprintf("internal failure: %v", r))
			event = nil
		}
	}()

	// A command enters CONFIRMATION_PENDING only after its payload passed
	// validation; a malformed consent-gated command fails as INVALID_PAYLOAD
	// without the elder ever seeing a prompt.
	if ConsentRequired(env.Type) {
		if errReply := d.validateConsentGated(env); errReply != nil {
			return *errReply, nil
		}
		if errReply := d.awaitConsent(ctx, env); errReply != nil {
			return *errReply, nil
		}
	}

	switch env.Type {
	case protocol.TypeGetState:
		return d.handleGetState(ctx, env), nil
	case protocol.TypeGetMedications:
		return d.handleGetMedications(ctx, env), nil
	case protocol.TypeGetAlertHistory:
		return d.handleGetAlertHistory(ctx, env), nil
	case protocol.TypeGetHealthHistory:
		return d.handleGetHealthHistory(ctx, env), nil
	case protocol.TypeAddMedication:
		return d.handleAddMedication(ctx, env)
	case protocol.TypeUpdateMedication:
		return d.handleUpdateMedication(ctx, env)
	case protocol.TypeDeleteMedication:
		return d.handleDeleteMedication(ctx, env)
	case protocol.TypeSendReminder:
		return d.handleSendReminder(env), nil
	case protocol.TypeSendMessage:
		return d.handleSendMessage(env), nil
	case protocol.TypeUpdateEmergencyContact:
		return d.handleUpdateContact(ctx, env), nil
	case protocol.TypeDeleteEmergencyContact:
		return d.handleDeleteContact(ctx, env), nil
	default:
		return d.commandError(env, protocol.CodeInvalidPayload, "unsupported command "+env.Type), nil
	}
}

// validateConsentGated schema-checks a consent-gated command up front. The
// per-type handlers re-decode the payload after approval; the checks here
// mirror theirs.
func (d *Dispatcher) validateConsentGated(env protocol.Envelope) *protocol.Envelope {
	var err error
	switch env.Type {
	case protocol.TypeDeleteMedication:
		var p protocol.DeleteMedicationPayload
		if err = protocol.DecodePayload(env, &p); err == nil && p.MedicationID == "" {
			err = errors.New("medicationId is required")
		}
	case protocol.TypeDeleteEmergencyContact:
		var p protocol.DeleteEmergencyContactPayload
		if err = protocol.DecodePayload(env, &p); err == nil && p.ContactID == "" {
			err = errors.New("contactId is required")
		}
	case protocol.TypeSendMessage:
		var p protocol.SendMessagePayload
		if err = protocol.DecodePayload(env, &p); err == nil && p.Message == "" {
			err = errors.New("message is required")
		}
	}
	if err != nil {
		r := d.commandError(env, protocol.CodeInvalidPayload, err.Error())
		return &r
	}
	return nil
}

// awaitConsent runs the CONFIRMATION_PENDING state. A nil return means the
// elder approved within the window.
func (d *Dispatcher) awaitConsent(ctx context.Context, env protocol.Envelope) *protocol.Envelope {
	cctx, cancel := context.WithTimeout(ctx, d.cfg.ConsentWindow)
	defer cancel()

	approved, err := d.cfg.Confirmer.Confirm(cctx, ConsentRequest{
		CommandType: env.Type,
		GuardianID:  env.From,
		Summary:     consentSummary(env),
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		r := d.commandError(env, protocol.CodeConfirmationTimeout, "elder did not respond to the consent prompt")
		return &r
	case err != nil:
		r := d.commandError(env, protocol.CodeExecutionFailed, "consent prompt failed: "+err.Error())
		return &r
	case !approved:
		r := d.commandError(env, protocol.CodeConfirmationDenied, "elder declined the request")
		return &r
	}
	return nil
}

// ----- queries -----

func (d *Dispatcher) handleGetState(ctx context.Context, env protocol.Envelope) protocol.Envelope {
	alerts, err := d.cfg.Store.RecentAlerts(ctx, 10)
	if err != nil {
		return d.commandError(env, protocol.CodeExecutionFailed, err.Error())
	}
	total, taken, missed, err := d.cfg.Store.MedicationSummary(ctx, time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		return d.commandError(env, protocol.CodeExecutionFailed, err.Error())
	}
	payload := protocol.StateResponsePayload{
		Elder: protocol.ElderInfo{
			Name:          d.cfg.ElderName,
			Age:           d.cfg.ElderAge,
			BatteryLevel:  d.cfg.Battery(),
			LastHeartbeat: protocol.Now(),
		},
		RecentAlerts:      alertInfos(alerts),
		MedicationSummary: protocol.MedicationSummary{TodayTotal: total, TakenToday: taken, MissedToday: missed},
	}
	return d.reply(env, protocol.TypeStateResponse, payload)
}

func (d *Dispatcher) handleGetMedications(ctx context.Context, env protocol.Envelope) protocol.Envelope {
	meds, schedules, logs, err := d.cfg.Store.Medications(ctx)
	if err != nil {
		return d.commandError(env, protocol.CodeExecutionFailed, err.Error())
	}
	payload := protocol.MedicationsResponsePayload{
		Medications: medicationInfos(meds),
		Schedules:   scheduleInfos(schedules),
		Logs:        logInfos(logs),
	}
	return d.reply(env, protocol.TypeMedicationsResponse, payload)
}

func (d *Dispatcher) handleGetAlertHistory(ctx context.Context, env protocol.Envelope) protocol.Envelope {
	alerts, err := d.cfg.Store.RecentAlerts(ctx, 100)
	if err != nil {
		return d.commandError(env, protocol.CodeExecutionFailed, err.Error())
	}
	return d.reply(env, protocol.TypeAlertHistoryResponse, protocol.AlertHistoryResponsePayload{Alerts: alertInfos(alerts)})
}

func (d *Dispatcher) handleGetHealthHistory(ctx context.Context, env protocol.Envelope) protocol.Envelope {
	checkIns, err := d.cfg.Store.HealthHistory(ctx, 30)
	if err != nil {
		return d.commandError(env, protocol.CodeExecutionFailed, err.Error())
	}
	out := make([]protocol.HealthCheckInInfo, 0, len(checkIns))
	for _, h := range checkIns {
		out = append(out, protocol.HealthCheckInInfo{
			ID:           h.ID,
			ElderID:      h.ElderID,
			Date:         h.Date,
			Mood:         h.Mood,
			PainLevel:    h.PainLevel,
			SleepQuality: h.SleepQuality,
			Symptoms:     h.Symptoms,
			Notes:        h.Notes,
		})
	}
	return d.reply(env, protocol.TypeHealthHistoryResponse, protocol.HealthHistoryResponsePayload{CheckIns: out})
}

// ----- medication commands -----

func (d *Dispatcher) handleAddMedication(ctx context.Context, env protocol.Envelope) (protocol.Envelope, *protocol.Envelope) {
	var p protocol.AddMedicationPayload
	if err := protocol.DecodePayload(env, &p); err != nil {
		return d.commandError(env, protocol.CodeInvalidPayload, err.Error()), nil
	}
	if strings.TrimSpace(p.Name) == "" {
		return d.commandError(env, protocol.CodeInvalidPayload, "medication name cannot be empty"), nil
	}
	if len(p.Schedules) == 0 {
		return d.commandError(env, protocol.CodeInvalidPayload, "at least one schedule is required"), nil
	}
	schedules, err := toSchedules(p.Schedules)
	if err != nil {
		return d.commandError(env, protocol.CodeInvalidPayload, err.Error()), nil
	}

	med := model.Medication{
		Name:         strings.TrimSpace(p.Name),
		Dosage:       strings.TrimSpace(p.Dosage),
		Instructions: strings.TrimSpace(p.Instructions),
	}
	med, schedules, err = d.cfg.Store.AddMedication(ctx, med, schedules)
	if err != nil {
		return d.commandError(env, protocol.CodeExecutionFailed, err.Error()), nil
	}

	reply := d.commandSuccess(env, "Medication added successfully", map[string]string{"medicationId": med.ID})
	event := d.medicationEvent("added", med, schedules)
	return reply, &event
}

func (d *Dispatcher) handleUpdateMedication(ctx context.Context, env protocol.Envelope) (protocol.Envelope, *protocol.Envelope) {
	var p protocol.UpdateMedicationPayload
	if err := protocol.DecodePayload(env, &p); err != nil {
		return d.commandError(env, protocol.CodeInvalidPayload, err.Error()), nil
	}
	if p.MedicationID == "" {
		return d.commandError(env, protocol.CodeInvalidPayload, "medicationId is required"), nil
	}

	patch := MedicationPatch{ID: p.MedicationID, Name: p.Name, Dosage: p.Dosage, Instructions: p.Instructions}
	if p.Schedules != nil {
		schedules, err := toSchedules(*p.Schedules)
		if err != nil {
			return d.commandError(env, protocol.CodeInvalidPayload, err.Error()), nil
		}
		patch.Schedules = &schedules
	}

	med, schedules, err := d.cfg.Store.UpdateMedication(ctx, patch)
	if errors.Is(err, ErrMedicationNotFound) {
		return d.commandError(env, protocol.CodeExecutionFailed, "medication not found"), nil
	}
	if err != nil {
		return d.commandError(env, protocol.CodeExecutionFailed, err.Error()), nil
	}

	reply := d.commandSuccess(env, "Medication updated successfully", nil)
	event := d.medicationEvent("updated", med, schedules)
	return reply, &event
}

func (d *Dispatcher) handleDeleteMedication(ctx context.Context, env protocol.Envelope) (protocol.Envelope, *protocol.Envelope) {
	var p protocol.DeleteMedicationPayload
	if err := protocol.DecodePayload(env, &p); err != nil {
		return d.commandError(env, protocol.CodeInvalidPayload, err.Error()), nil
	}
	if p.MedicationID == "" {
		return d.commandError(env, protocol.CodeInvalidPayload, "medicationId is required"), nil
	}

	med, err := d.cfg.Store.DeleteMedication(ctx, p.MedicationID)
	if errors.Is(err, ErrMedicationNotFound) {
		return d.commandError(env, protocol.CodeExecutionFailed, "medication not found"), nil
	}
	if err != nil {
		return d.commandError(env, protocol.CodeExecutionFailed, err.Error()), nil
	}

	reply := d.commandSuccess(env, "Medication deleted successfully", nil)
	event := d.medicationEvent("deleted", med, nil)
	return reply, &event
}

// ----- notification commands -----

func (d *Dispatcher) handleSendReminder(env protocol.Envelope) protocol.Envelope {
	var p protocol.SendReminderPayload
	if err := protocol.DecodePayload(env, &p); err != nil {
		return d.commandError(env, protocol.CodeInvalidPayload, err.Error())
	}
	if p.Title == "" || p.Message == "" {
		return d.commandError(env, protocol.CodeInvalidPayload, "title and message are required")
	}
	if p.Priority == "" {
		p.Priority = "normal"
	}
	if d.cfg.Notifier != nil {
		if err := d.cfg.Notifier.ShowReminder(p.Title, p.Message, p.Priority); err != nil {
			return d.commandError(env, protocol.CodeExecutionFailed, err.Error())
		}
	}
	return d.commandSuccess(env, "Reminder shown", nil)
}

func (d *Dispatcher) handleSendMessage(env protocol.Envelope) protocol.Envelope {
	var p protocol.SendMessagePayload
	if err := protocol.DecodePayload(env, &p); err != nil {
		return d.commandError(env, protocol.CodeInvalidPayload, err.Error())
	}
	if p.Message == "" {
		return d.commandError(env, protocol.CodeInvalidPayload, "message is required")
	}
	if d.cfg.Notifier != nil {
		if err := d.cfg.Notifier.ShowMessage(p.GuardianName, p.Message, p.RequiresAcknowledgment); err != nil {
			return d.commandError(env, protocol.CodeExecutionFailed, err.Error())
		}
	}
	return d.commandSuccess(env, "Message delivered", nil)
}

// ----- emergency contact commands -----

func (d *Dispatcher) handleUpdateContact(ctx context.Context, env protocol.Envelope) protocol.Envelope {
	var p protocol.UpdateEmergencyContactPayload
	if err := protocol.DecodePayload(env, &p); err != nil {
		return d.commandError(env, protocol.CodeInvalidPayload, err.Error())
	}
	if p.Name == "" || p.PhoneNumber == "" {
		return d.commandError(env, protocol.CodeInvalidPayload, "name and phoneNumber are required")
	}
	contact, err := d.cfg.Store.UpsertEmergencyContact(ctx, model.EmergencyContact{
		ID:           p.ContactID,
		Name:         p.Name,
		PhoneNumber:  p.PhoneNumber,
		Relationship: p.Relationship,
	})
	if errors.Is(err, ErrContactNotFound) {
		return d.commandError(env, protocol.CodeExecutionFailed, "contact not found")
	}
	if err != nil {
		return d.commandError(env, protocol.CodeExecutionFailed, err.Error())
	}
	return d.commandSuccess(env, "Contact saved", map[string]string{"contactId": contact.ID})
}

func (d *Dispatcher) handleDeleteContact(ctx context.Context, env protocol.Envelope) protocol.Envelope {
	var p protocol.DeleteEmergencyContactPayload
	if err := protocol.DecodePayload(env, &p); err != nil {
		return d.commandError(env, protocol.CodeInvalidPayload, err.Error())
	}
	if p.ContactID == "" {
		return d.commandError(env, protocol.CodeInvalidPayload, "contactId is required")
	}
	if err := d.cfg.Store.DeleteEmergencyContact(ctx, p.ContactID); err != nil {
		if errors.Is(err, ErrContactNotFound) {
			return d.commandError(env, protocol.CodeExecutionFailed, "contact not found")
		}
		return d.commandError(env, protocol.CodeExecutionFailed, err.Error())
	}
	return d.commandSuccess(env, "Contact deleted", nil)
}

// ----- reply/event helpers -----

func (d *Dispatcher) reply(req protocol.Envelope, msgType string, payload any) protocol.Envelope {
	env, err := protocol.Reply(req, msgType, payload)
	if err != nil {
		return d.commandError(req, protocol.CodeExecutionFailed, err.Error())
	}
	return env
}

func (d *Dispatcher) commandSuccess(req protocol.Envelope, message string, data map[string]string) protocol.Envelope {
	env, _ := protocol.Reply(req, protocol.TypeCommandSuccess, protocol.CommandSuccessPayload{Message: message, Data: data})
	return env
}

func (d *Dispatcher) commandError(req protocol.Envelope, code, details string) protocol.Envelope {
	env, _ := protocol.Reply(req, protocol.TypeCommandError, protocol.CommandErrorPayload{Error: code, Details: details})
	return env
}

// medicationEvent builds the MEDICATION_UPDATED push that keeps every
// guardian's view consistent after a mutation. The relay fans it out to all
// paired guardians, including the requester.
func (d *Dispatcher) medicationEvent(action string, med model.Medication, schedules []model.MedicationSchedule) protocol.Envelope {
	env, _ := protocol.NewEnvelope(protocol.TypeMedicationUpdated, d.cfg.DeviceID, "guardians", protocol.NewRequestID(),
		protocol.MedicationUpdatedPayload{
			ElderID:    d.cfg.DeviceID,
			Action:     action,
			Medication: medicationInfo(med),
			Schedules:  scheduleInfos(schedules),
		})
	return env
}

// consentSummary renders a short human-readable line for the consent prompt.
func consentSummary(env protocol.Envelope) string {
	switch env.Type {
	case protocol.TypeDeleteMedication:
		return "A caregiver wants to remove a medication"
	case protocol.TypeDeleteEmergencyContact:
		return "A caregiver wants to remove an emergency contact"
	case protocol.TypeSendMessage:
		return "A caregiver sent a message that needs your attention"
	default:
		return "A caregiver requested " + env.Type
	}
}

// toSchedules validates and converts wire schedules. Time must be "HH:mm"
// and days must be within 0-6.
func toSchedules(in []protocol.SchedulePayload) ([]model.MedicationSchedule, error) {
	out := make([]model.MedicationSchedule, 0, len(in))
	for _, sp := range in {
		if _, err := time.Parse("15:04", sp.Time); err != nil {
			return nil, fmt.Errorf("invalid schedule time %q, want HH:mm", sp.Time)
		}
		for _, day := range sp.DaysOfWeek {
			if day < 0 || day > 6 {
				return nil, fmt.Errorf("invalid day of week %d", day)
			}
		}
		out = append(out, model.MedicationSchedule{
			Time:       sp.Time,
			DaysOfWeek: sp.DaysOfWeek,
			Enabled:    sp.Enabled,
		})
	}
	return out, nil
}

// ----- wire conversions -----

func medicationInfo(m model.Medication) protocol.MedicationInfo {
	return protocol.MedicationInfo{ID: m.ID, Name: m.Name, Dosage: m.Dosage, Instructions: m.Instructions}
}

func medicationInfos(meds []model.Medication) []protocol.MedicationInfo {
	out := make([]protocol.MedicationInfo, 0, len(meds))
	for _, m := range meds {
		out = append(out, medicationInfo(m))
	}
	return out
}

func scheduleInfos(schedules []model.MedicationSchedule) []protocol.ScheduleInfo {
	out := make([]protocol.ScheduleInfo, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, protocol.ScheduleInfo{
			ID:           s.ID,
			MedicationID: s.MedicationID,
			Time:         s.Time,
			DaysOfWeek:   s.DaysOfWeek,
			Enabled:      s.Enabled,
		})
	}
	return out
}

func logInfos(logs []model.MedicationLog) []protocol.MedicationLogInfo {
	out := make([]protocol.MedicationLogInfo, 0, len(logs))
	for _, lg := range logs {
		info := protocol.MedicationLogInfo{
			ID:            lg.ID,
			MedicationID:  lg.MedicationID,
			ScheduleID:    lg.ScheduleID,
			ScheduledTime: lg.ScheduledTime.UTC().Format(time.RFC3339),
			Status:        lg.Status,
		}
		if lg.TakenAt != nil {
			info.TakenAt = lg.TakenAt.UTC().Format(time.RFC3339)
		}
		out = append(out, info)
	}
	return out
}

func alertInfos(alerts []model.AlertEvent) []protocol.AlertInfo {
	out := make([]protocol.AlertInfo, 0, len(alerts))
	for _, a := range alerts {
		info := protocol.AlertInfo{
			ID:           a.ID,
			ElderID:      a.ElderID,
			Type:         a.Type,
			TriggeredAt:  a.TriggeredAt.UTC().Format(time.RFC3339),
			BatteryLevel: a.BatteryLevel,
			Resolved:     a.Resolved,
			Notes:        a.Notes,
		}
		if a.Latitude != nil && a.Longitude != nil {
			info.Location = &protocol.LocationInfo{Latitude: *a.Latitude, Longitude: *a.Longitude}
		}
		out = append(out, info)
	}
	return out
}

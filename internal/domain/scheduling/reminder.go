package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/booking/internal/platform/notification"
)

// ReminderWindow is how far ahead of an appointment its reminder goes out.
const ReminderWindow = 24 * time.Hour

type SweepResult struct {
	// Due counts appointments starting inside the window when the sweep began.
	Due int `json:"due"`
	// Sent counts appointments whose reminder was delivered and recorded.
	Sent int `json:"sent"`
	// Failed counts due appointments left for a later sweep.
	Failed int `json:"failed"`
}

type reminderOutcome int

const (
	reminderSkipped reminderOutcome = iota
	reminderSent
	reminderUndelivered
)

// SweepReminders notifies patient and doctor of every confirmed appointment
// starting in (now, now+24h] that has not been reminded yet. Each
// appointment is handled in its own transaction under a row lock, so a
// concurrent sweep never reminds the same appointment twice and an
// interrupted sweep keeps the reminders it already recorded.
func (s *Service) SweepReminders(ctx context.Context, now time.Time) (*SweepResult, error) {
	now = now.In(s.loc)
	horizon := now.Add(ReminderWindow)

	candidates, err := s.appointments.ListReminderCandidates(ctx, DateOf(now), DateOf(horizon))
	if err != nil {
		return nil, transient("list reminder candidates", err)
	}

	res := &SweepResult{}
	for _, c := range candidates {
		if !s.reminderDue(c, now, horizon) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, transient("sweep interrupted", err)
		}
		res.Due++

		outcome, err := s.remind(ctx, c.ID, now, horizon)
		switch {
		case err != nil:
			res.Failed++
			s.logger.Error().Err(err).Str("appointment_id", c.ID.String()).Msg("reminder failed")
		case outcome == reminderSent:
			res.Sent++
		case outcome == reminderUndelivered:
			res.Failed++
		}
	}

	s.logger.Info().
		Int("due", res.Due).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Msg("reminder sweep finished")
	return res, nil
}

func (s *Service) reminderDue(a *Appointment, now, horizon time.Time) bool {
	if a.Status != StatusConfirmed || a.ReminderSent {
		return false
	}
	start := a.StartsAt(s.loc)
	return start.After(now) && !start.After(horizon)
}

func (s *Service) remind(ctx context.Context, id uuid.UUID, now, horizon time.Time) (reminderOutcome, error) {
	outcome := reminderSkipped
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		// Another sweep or a status change may have won the lock first.
		if !s.reminderDue(a, now, horizon) {
			return nil
		}

		doctor, err := s.accounts.GetAccount(ctx, a.DoctorID)
		if err != nil {
			return err
		}
		patient, err := s.accounts.GetAccount(ctx, a.PatientID)
		if err != nil {
			return err
		}

		data := messageData(doctor, patient, a)
		patientOK := s.notify(ctx, notification.TplReminderPatient, patient.Email, data)
		doctorOK := s.notify(ctx, notification.TplReminderDoctor, doctor.Email, data)
		if !patientOK && !doctorOK {
			outcome = reminderUndelivered
			return nil
		}
		if err := s.appointments.MarkReminderSent(ctx, a.ID); err != nil {
			return err
		}
		outcome = reminderSent
		return nil
	})
	if err != nil {
		return reminderSkipped, transient("send reminder", err)
	}
	return outcome, nil
}

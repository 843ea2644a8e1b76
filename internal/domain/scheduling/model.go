package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. Only cancelled appointments release their slot.
const (
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no-show"
)

var validAppointmentStatuses = map[string]bool{
	StatusConfirmed: true, StatusCompleted: true,
	StatusCancelled: true, StatusNoShow: true,
}

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s string) bool { return validAppointmentStatuses[s] }

// Availability maps to the availability table: a doctor's declared open
// window on one date. It is append-only.
type Availability struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date        Date      `db:"avail_date" json:"date"`
	StartTime   TimeOfDay `db:"start_time" json:"start_time"`
	EndTime     TimeOfDay `db:"end_time" json:"end_time"`
	SlotMinutes int       `db:"slot_minutes" json:"slot_minutes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Validate checks the window invariants: start before end and a positive
// slot length.
func (a *Availability) Validate() error {
	if a.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor_id is required", ErrInvalidRequest)
	}
	if a.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}
	if a.SlotMinutes <= 0 {
		return fmt.Errorf("%w: slot_minutes must be positive, got %d", ErrInvalidRequest, a.SlotMinutes)
	}
	if a.StartTime >= a.EndTime {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidRequest)
	}
	return nil
}

// Appointment maps to the appointment table: one booked slot.
type Appointment struct {
	ID           uuid.UUID `db:"id" json:"id"`
	DoctorID     uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	Date         Date      `db:"appt_date" json:"date"`
	Time         TimeOfDay `db:"appt_time" json:"time"`
	Status       string    `db:"status" json:"status"`
	ReminderSent bool      `db:"reminder_sent" json:"reminder_sent"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// OccupiesSlot reports whether the appointment blocks its slot for others.
func (a *Appointment) OccupiesSlot() bool { return a.Status != StatusCancelled }

// StartsAt returns the absolute start of the appointment in loc.
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	return a.Date.At(a.Time, loc)
}

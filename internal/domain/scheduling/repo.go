package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type AvailabilityRepository interface {
	Create(ctx context.Context, a *Availability) error
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date Date) ([]*Availability, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Availability, int, error)
}

type AppointmentRepository interface {
	// Create inserts a confirmed appointment. It returns ErrSlotTaken when
	// another non-cancelled appointment holds the same doctor, date and time.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// LockForUpdate reads the appointment and row-locks it until the
	// surrounding transaction ends.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateStatus persists a.Status. Re-activating a cancelled appointment
	// whose slot is held by another booking returns ErrSlotTaken.
	UpdateStatus(ctx context.Context, a *Appointment) error
	MarkReminderSent(ctx context.Context, id uuid.UUID) error

	// ListTakenTimes returns the times of non-cancelled appointments.
	ListTakenTimes(ctx context.Context, doctorID uuid.UUID, date Date) ([]TimeOfDay, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// ListReminderCandidates returns confirmed appointments without a sent
	// reminder whose date lies in [from, to].
	ListReminderCandidates(ctx context.Context, from, to Date) ([]*Appointment, error)
}

// Transactor runs fn inside one database transaction. *db.TxManager
// satisfies it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinic/booking/internal/platform/db"
)

// activeSlotIndex is the partial unique index that keeps a slot to one
// non-cancelled appointment.
const activeSlotIndex = "appointment_active_slot_uidx"

// =========== Availability Repository ===========

type availabilityRepoPG struct{ db db.Querier }

func NewAvailabilityRepoPG(q db.Querier) AvailabilityRepository { return &availabilityRepoPG{db: q} }

const availCols = `id, doctor_id, avail_date, start_time, end_time, slot_minutes, created_at`

func (r *availabilityRepoPG) scanAvailability(row pgx.Row) (*Availability, error) {
	var a Availability
	err := row.Scan(&a.ID, &a.DoctorID, &a.Date, &a.StartTime, &a.EndTime, &a.SlotMinutes, &a.CreatedAt)
	return &a, err
}

func (r *availabilityRepoPG) Create(ctx context.Context, a *Availability) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO availability (id, doctor_id, avail_date, start_time, end_time, slot_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.DoctorID, a.Date, a.StartTime, a.EndTime, a.SlotMinutes, a.CreatedAt)
	return err
}

func (r *availabilityRepoPG) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date Date) ([]*Availability, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `SELECT `+availCols+` FROM availability
		WHERE doctor_id = $1 AND avail_date = $2 ORDER BY start_time`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Availability
	for rows.Next() {
		a, err := r.scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *availabilityRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Availability, int, error) {
	conn := db.Conn(ctx, r.db)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM availability WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `SELECT `+availCols+` FROM availability WHERE doctor_id = $1
		ORDER BY avail_date DESC, start_time LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Availability
	for rows.Next() {
		a, err := r.scanAvailability(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ db db.Querier }

func NewAppointmentRepoPG(q db.Querier) AppointmentRepository { return &appointmentRepoPG{db: q} }

const apptCols = `id, doctor_id, patient_id, appt_date, appt_time, status, reminder_sent, created_at, updated_at`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.Date, &a.Time,
		&a.Status, &a.ReminderSent, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: appointment", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	if a.Status == "" {
		a.Status = StatusConfirmed
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	_, err := db.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO appointment (id, doctor_id, patient_id, appt_date, appt_time, status, reminder_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.DoctorID, a.PatientID, a.Date, a.Time, a.Status, a.ReminderSent, a.CreatedAt, a.UpdatedAt)
	if db.IsUniqueViolation(err, activeSlotIndex) {
		return ErrSlotTaken
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) LockForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1 FOR UPDATE`, id))
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		UPDATE appointment SET status = $2, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`, a.ID, a.Status).Scan(&a.UpdatedAt)
	switch {
	case db.IsUniqueViolation(err, activeSlotIndex):
		return ErrSlotTaken
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: appointment", ErrNotFound)
	}
	return err
}

func (r *appointmentRepoPG) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.db).Exec(ctx, `
		UPDATE appointment SET reminder_sent = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *appointmentRepoPG) ListTakenTimes(ctx context.Context, doctorID uuid.UUID, date Date) ([]TimeOfDay, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `
		SELECT appt_time FROM appointment
		WHERE doctor_id = $1 AND appt_date = $2 AND status <> $3`,
		doctorID, date, StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var taken []TimeOfDay
	for rows.Next() {
		var t TimeOfDay
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		taken = append(taken, t)
	}
	return taken, rows.Err()
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.listBy(ctx, "doctor_id", doctorID, limit, offset)
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.listBy(ctx, "patient_id", patientID, limit, offset)
}

// listBy pages appointments filtered on column, which must be a trusted
// identifier.
func (r *appointmentRepoPG) listBy(ctx context.Context, column string, id uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	conn := db.Conn(ctx, r.db)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM appointment WHERE `+column+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `SELECT `+apptCols+` FROM appointment WHERE `+column+` = $1
		ORDER BY appt_date, appt_time LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := r.collect(rows)
	return items, total, err
}

func (r *appointmentRepoPG) ListReminderCandidates(ctx context.Context, from, to Date) ([]*Appointment, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE status = $1 AND reminder_sent = FALSE AND appt_date BETWEEN $2 AND $3
		ORDER BY appt_date, appt_time`, StatusConfirmed, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *appointmentRepoPG) collect(rows pgx.Rows) ([]*Appointment, error) {
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

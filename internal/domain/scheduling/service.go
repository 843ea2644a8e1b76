package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/booking/internal/domain/identity"
	"github.com/clinic/booking/internal/platform/notification"
)

// Notifier delivers a message and reports whether it went out. It never
// returns an error to the caller.
type Notifier interface {
	Send(ctx context.Context, subject string, recipients []string, body string) bool
}

// Renderer turns a named template into a subject and body.
// *notification.TemplateEngine satisfies it.
type Renderer interface {
	Render(templateID string, data map[string]string) (subject, body string, err error)
}

type Service struct {
	availability AvailabilityRepository
	appointments AppointmentRepository
	accounts     identity.Directory
	tx           Transactor
	notifier     Notifier
	messages     Renderer
	loc          *time.Location
	logger       zerolog.Logger
}

type Option func(*Service)

// WithLocation sets the clinic time zone used to turn an appointment's date
// and time into an instant. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(avail AvailabilityRepository, appts AppointmentRepository, accounts identity.Directory,
	tx Transactor, notifier Notifier, messages Renderer, opts ...Option) *Service {
	s := &Service{
		availability: avail,
		appointments: appts,
		accounts:     accounts,
		tx:           tx,
		notifier:     notifier,
		messages:     messages,
		loc:          time.UTC,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -- Slots --

// ListAvailableSlots returns the free slot start times for a doctor on a
// date, ascending and without duplicates.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, date Date) ([]TimeOfDay, error) {
	windows, err := s.availability.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, transient("load availability", err)
	}
	if len(windows) == 0 {
		return []TimeOfDay{}, nil
	}
	taken, err := s.appointments.ListTakenTimes(ctx, doctorID, date)
	if err != nil {
		return nil, transient("load appointments", err)
	}
	return freeSlots(windows, taken)
}

// -- Booking --

type BookingRequest struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      Date
	Time      TimeOfDay
}

type BookingResult struct {
	Appointment     *Appointment `json:"appointment"`
	PatientNotified bool         `json:"patient_notified"`
	DoctorNotified  bool         `json:"doctor_notified"`
}

// Book reserves a slot for the patient. Two concurrent requests for the same
// slot are serialised by the store's unique index: exactly one wins and the
// other gets ErrSlotTaken. Notifications go out after commit and never fail
// the booking.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	doctor, err := s.lookup(ctx, req.DoctorID, identity.RoleDoctor, ErrNotFound, "doctor")
	if err != nil {
		return nil, err
	}
	patient, err := s.lookup(ctx, req.PatientID, identity.RolePatient, ErrForbidden, "only patients can book")
	if err != nil {
		return nil, err
	}

	appt := &Appointment{
		DoctorID:  doctor.ID,
		PatientID: patient.ID,
		Date:      req.Date,
		Time:      req.Time,
		Status:    StatusConfirmed,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		windows, err := s.availability.ListByDoctorDate(ctx, doctor.ID, req.Date)
		if err != nil {
			return transient("load availability", err)
		}
		ok, err := offersSlot(windows, req.Time)
		if err != nil {
			return transient("generate slots", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s on %s is not an available slot", ErrInvalidRequest, req.Time, req.Date)
		}
		if err := s.appointments.Create(ctx, appt); err != nil {
			return transient("insert appointment", err)
		}
		return nil
	})
	if err != nil {
		return nil, transient("book", err)
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", doctor.ID.String()).
		Str("date", appt.Date.String()).
		Str("time", appt.Time.String()).
		Msg("appointment booked")

	data := messageData(doctor, patient, appt)
	return &BookingResult{
		Appointment:     appt,
		PatientNotified: s.notify(ctx, notification.TplAppointmentConfirmed, patient.Email, data),
		DoctorNotified:  s.notify(ctx, notification.TplAppointmentBooked, doctor.Email, data),
	}, nil
}

// -- Status --

// UpdateStatus lets the owning doctor move an appointment between statuses.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string, actorID uuid.UUID) (*Appointment, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}

	var appt *Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.LockForUpdate(ctx, id)
		if err != nil {
			return transient("load appointment", err)
		}
		if a.DoctorID != actorID {
			return fmt.Errorf("%w: only the appointment's doctor can change its status", ErrForbidden)
		}
		appt = a
		if a.Status == status {
			return nil
		}
		a.Status = status
		if err := s.appointments.UpdateStatus(ctx, a); err != nil {
			return transient("update status", err)
		}
		return nil
	})
	if err != nil {
		return nil, transient("update status", err)
	}
	return appt, nil
}

// -- Availability --

// CreateAvailability records an availability window for the acting doctor.
func (s *Service) CreateAvailability(ctx context.Context, actorID uuid.UUID, a *Availability) error {
	if _, err := s.lookup(ctx, actorID, identity.RoleDoctor, ErrForbidden, "only doctors can publish availability"); err != nil {
		return err
	}
	a.DoctorID = actorID
	if err := a.Validate(); err != nil {
		return err
	}
	if err := s.availability.Create(ctx, a); err != nil {
		return transient("create availability", err)
	}
	return nil
}

// ListAvailability returns the acting doctor's windows, newest date first.
func (s *Service) ListAvailability(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*Availability, int, error) {
	if _, err := s.lookup(ctx, actorID, identity.RoleDoctor, ErrForbidden, "only doctors have availability"); err != nil {
		return nil, 0, err
	}
	items, total, err := s.availability.ListByDoctor(ctx, actorID, limit, offset)
	if err != nil {
		return nil, 0, transient("list availability", err)
	}
	return items, total, nil
}

// -- Dashboard --

// ListAppointments returns the actor's appointments: a doctor sees the ones
// they provide, a patient the ones they booked.
func (s *Service) ListAppointments(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	actor, err := s.accounts.GetAccount(ctx, actorID)
	if errors.Is(err, identity.ErrAccountNotFound) {
		return nil, 0, fmt.Errorf("%w: unknown account", ErrForbidden)
	}
	if err != nil {
		return nil, 0, transient("load account", err)
	}

	var items []*Appointment
	var total int
	switch actor.Role {
	case identity.RoleDoctor:
		items, total, err = s.appointments.ListByDoctor(ctx, actorID, limit, offset)
	case identity.RolePatient:
		items, total, err = s.appointments.ListByPatient(ctx, actorID, limit, offset)
	default:
		return nil, 0, fmt.Errorf("%w: role %q has no appointments", ErrForbidden, actor.Role)
	}
	if err != nil {
		return nil, 0, transient("list appointments", err)
	}
	return items, total, nil
}

// lookup resolves an account and checks its role, returning kind when the
// account is missing or holds another role.
func (s *Service) lookup(ctx context.Context, id uuid.UUID, role string, kind error, what string) (*identity.Account, error) {
	a, err := s.accounts.GetAccount(ctx, id)
	if errors.Is(err, identity.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %s", kind, what)
	}
	if err != nil {
		return nil, transient("load account", err)
	}
	if a.Role != role {
		return nil, fmt.Errorf("%w: %s", kind, what)
	}
	return a, nil
}

func messageData(doctor, patient *identity.Account, a *Appointment) map[string]string {
	return map[string]string{
		"doctor_name":  doctor.DisplayName,
		"patient_name": patient.DisplayName,
		"date":         a.Date.Display(),
		"time":         a.Time.String(),
	}
}

// notify renders and sends one message. Failures are logged and reported as
// false.
func (s *Service) notify(ctx context.Context, templateID, recipient string, data map[string]string) bool {
	if recipient == "" {
		return false
	}
	subject, body, err := s.messages.Render(templateID, data)
	if err != nil {
		s.logger.Error().Err(err).Str("template", templateID).Msg("render notification")
		return false
	}
	if !s.notifier.Send(ctx, subject, []string{recipient}, body) {
		s.logger.Warn().Str("template", templateID).Msg("notification not delivered")
		return false
	}
	return true
}

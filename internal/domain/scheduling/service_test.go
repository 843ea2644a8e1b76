package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/booking/internal/domain/identity"
	"github.com/clinic/booking/internal/platform/notification"
)

// -- In-memory store --

// memStore backs both repositories. Create enforces the active-slot
// uniqueness the database index provides.
type memStore struct {
	mu           sync.Mutex
	windows      []*Availability
	appointments map[uuid.UUID]*Appointment
	failList     error
	failCreate   error
}

func newMemStore() *memStore {
	return &memStore{appointments: make(map[uuid.UUID]*Appointment)}
}

type memAvailabilityRepo struct{ s *memStore }
type memAppointmentRepo struct{ s *memStore }

func (r memAvailabilityRepo) Create(_ context.Context, a *Availability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	r.s.windows = append(r.s.windows, a)
	return nil
}

func (r memAvailabilityRepo) ListByDoctorDate(_ context.Context, doctorID uuid.UUID, date Date) ([]*Availability, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failList != nil {
		return nil, r.s.failList
	}
	var out []*Availability
	for _, w := range r.s.windows {
		if w.DoctorID == doctorID && w.Date == date {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r memAvailabilityRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Availability, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Availability
	for _, w := range r.s.windows {
		if w.DoctorID == doctorID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Date.Before(out[i].Date) })
	return page(out, limit, offset), len(out), nil
}

func (r memAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failCreate != nil {
		return r.s.failCreate
	}
	for _, ex := range r.s.appointments {
		if ex.OccupiesSlot() && ex.DoctorID == a.DoctorID && ex.Date == a.Date && ex.Time == a.Time {
			return ErrSlotTaken
		}
	}
	a.ID = uuid.New()
	a.CreatedAt, a.UpdatedAt = time.Now(), time.Now()
	cp := *a
	r.s.appointments[a.ID] = &cp
	return nil
}

func (r memAppointmentRepo) get(id uuid.UUID) (*Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, fmt.Errorf("%w: appointment", ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (r memAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(id)
}

func (r memAppointmentRepo) LockForUpdate(_ context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(id)
}

func (r memAppointmentRepo) UpdateStatus(_ context.Context, a *Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.appointments[a.ID]
	if !ok {
		return fmt.Errorf("%w: appointment", ErrNotFound)
	}
	if a.Status != StatusCancelled {
		for _, ex := range r.s.appointments {
			if ex.ID != a.ID && ex.OccupiesSlot() && ex.DoctorID == cur.DoctorID && ex.Date == cur.Date && ex.Time == cur.Time {
				return ErrSlotTaken
			}
		}
	}
	cur.Status = a.Status
	cur.UpdatedAt = time.Now()
	a.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r memAppointmentRepo) MarkReminderSent(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.appointments[id].ReminderSent = true
	return nil
}

func (r memAppointmentRepo) ListTakenTimes(_ context.Context, doctorID uuid.UUID, date Date) ([]TimeOfDay, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []TimeOfDay
	for _, a := range r.s.appointments {
		if a.OccupiesSlot() && a.DoctorID == doctorID && a.Date == date {
			out = append(out, a.Time)
		}
	}
	return out, nil
}

func (r memAppointmentRepo) list(match func(*Appointment) bool, limit, offset int) ([]*Appointment, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Appointment
	for _, a := range r.s.appointments {
		if match(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	return page(out, limit, offset), len(out), nil
}

func (r memAppointmentRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(func(a *Appointment) bool { return a.DoctorID == doctorID }, limit, offset)
}

func (r memAppointmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(func(a *Appointment) bool { return a.PatientID == patientID }, limit, offset)
}

func (r memAppointmentRepo) ListReminderCandidates(_ context.Context, from, to Date) ([]*Appointment, error) {
	items, _, err := r.list(func(a *Appointment) bool {
		return a.Status == StatusConfirmed && !a.ReminderSent && !a.Date.Before(from) && !to.Before(a.Date)
	}, 1<<30, 0)
	return items, err
}

func page[T any](items []T, limit, offset int) []T {
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// inlineTx runs fn directly; the memory store is already serialised.
type inlineTx struct{ err error }

func (t inlineTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.err != nil {
		return t.err
	}
	return fn(ctx)
}

// -- Directory & notifier --

type mockDirectory struct {
	accounts map[uuid.UUID]*identity.Account
	err      error
}

func (d *mockDirectory) GetAccount(_ context.Context, id uuid.UUID) (*identity.Account, error) {
	if d.err != nil {
		return nil, d.err
	}
	a, ok := d.accounts[id]
	if !ok {
		return nil, identity.ErrAccountNotFound
	}
	return a, nil
}

type sentMessage struct {
	Subject    string
	Recipients []string
	Body       string
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	fail   map[string]bool
	onSend func()
}

func (n *fakeNotifier) Send(_ context.Context, subject string, recipients []string, body string) bool {
	n.mu.Lock()
	n.sent = append(n.sent, sentMessage{Subject: subject, Recipients: recipients, Body: body})
	ok := true
	for _, r := range recipients {
		if n.fail[r] {
			ok = false
		}
	}
	hook := n.onSend
	n.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ok
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// -- Fixture --

type fixture struct {
	svc      *Service
	store    *memStore
	dir      *mockDirectory
	notifier *fakeNotifier
	doctor   *identity.Account
	patient  *identity.Account
	patient2 *identity.Account
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		store:    newMemStore(),
		notifier: &fakeNotifier{fail: map[string]bool{}},
		doctor:   &identity.Account{ID: uuid.New(), Role: identity.RoleDoctor, Email: "sharma@clinic.test", DisplayName: "Sharma"},
		patient:  &identity.Account{ID: uuid.New(), Role: identity.RolePatient, Email: "ana@example.test", DisplayName: "Ana"},
		patient2: &identity.Account{ID: uuid.New(), Role: identity.RolePatient, Email: "ben@example.test", DisplayName: "Ben"},
	}
	f.dir = &mockDirectory{accounts: map[uuid.UUID]*identity.Account{
		f.doctor.ID:   f.doctor,
		f.patient.ID:  f.patient,
		f.patient2.ID: f.patient2,
	}}
	f.svc = NewService(memAvailabilityRepo{f.store}, memAppointmentRepo{f.store}, f.dir,
		inlineTx{}, f.notifier, notification.NewTemplateEngine(), opts...)
	return f
}

func (f *fixture) addWindow(t *testing.T, date, start, end string, slotMinutes int) {
	t.Helper()
	err := f.svc.CreateAvailability(context.Background(), f.doctor.ID, &Availability{
		Date:        MustDate(date),
		StartTime:   MustTimeOfDay(start),
		EndTime:     MustTimeOfDay(end),
		SlotMinutes: slotMinutes,
	})
	if err != nil {
		t.Fatalf("add window: %v", err)
	}
}

func (f *fixture) book(patient *identity.Account, date, at string) (*BookingResult, error) {
	return f.svc.Book(context.Background(), BookingRequest{
		DoctorID:  f.doctor.ID,
		PatientID: patient.ID,
		Date:      MustDate(date),
		Time:      MustTimeOfDay(at),
	})
}

func slotStrings(slots []TimeOfDay) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// -- ListAvailableSlots --

func TestListAvailableSlots_BookingRemovesSlot(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "09:00", "10:00", 30)
	ctx := context.Background()

	slots, err := f.svc.ListAvailableSlots(ctx, f.doctor.ID, MustDate("2024-06-10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := slotStrings(slots); !equalStrings(got, []string{"09:00", "09:30"}) {
		t.Fatalf("expected [09:00 09:30], got %v", got)
	}

	if _, err := f.book(f.patient, "2024-06-10", "09:00"); err != nil {
		t.Fatalf("book: %v", err)
	}

	slots, err = f.svc.ListAvailableSlots(ctx, f.doctor.ID, MustDate("2024-06-10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := slotStrings(slots); !equalStrings(got, []string{"09:30"}) {
		t.Errorf("expected [09:30], got %v", got)
	}
}

func TestListAvailableSlots_UnionOfWindows(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "14:00", "15:00", 30)
	f.addWindow(t, "2024-06-10", "09:00", "10:00", 30)
	f.addWindow(t, "2024-06-10", "09:30", "10:30", 30)
	f.addWindow(t, "2024-06-11", "09:00", "17:00", 30)

	slots, err := f.svc.ListAvailableSlots(context.Background(), f.doctor.ID, MustDate("2024-06-10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"09:00", "09:30", "10:00", "14:00", "14:30"}
	if got := slotStrings(slots); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestListAvailableSlots_NoWindows(t *testing.T) {
	f := newFixture()
	slots, err := f.svc.ListAvailableSlots(context.Background(), f.doctor.ID, MustDate("2024-06-10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", slots)
	}
}

func TestListAvailableSlots_CancelledFreesSlot(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "09:00", "10:00", 30)
	res, err := f.book(f.patient, "2024-06-10", "09:00")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), res.Appointment.ID, StatusCancelled, f.doctor.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	slots, _ := f.svc.ListAvailableSlots(context.Background(), f.doctor.ID, MustDate("2024-06-10"))
	if got := slotStrings(slots); !equalStrings(got, []string{"09:00", "09:30"}) {
		t.Errorf("expected cancelled slot to be free again, got %v", got)
	}
}

func TestListAvailableSlots_StoreFailureIsTransient(t *testing.T) {
	f := newFixture()
	f.store.failList = errors.New("connection reset")
	_, err := f.svc.ListAvailableSlots(context.Background(), f.doctor.ID, MustDate("2024-06-10"))
	if !errors.Is(err, ErrTransient) {
		t.Errorf("expected ErrTransient, got %v", err)
	}
}

// -- Book --

func TestBook_Success(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "09:00", "10:00", 30)

	res, err := f.book(f.patient, "2024-06-10", "09:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Appointment.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", res.Appointment.Status)
	}
	if res.Appointment.ReminderSent {
		t.Error("new appointment must not be marked reminded")
	}
	if !res.PatientNotified || !res.DoctorNotified {
		t.Errorf("expected both notified, got %+v", res)
	}
	if f.notifier.count() != 2 {
		t.Fatalf("expected 2 notifications, got %d", f.notifier.count())
	}

	patientMsg := f.notifier.sent[0]
	if patientMsg.Subject != "Appointment Confirmed" || patientMsg.Recipients[0] != f.patient.Email {
		t.Errorf("unexpected patient message: %+v", patientMsg)
	}
	wantBody := "Your appointment with Dr. Sharma is confirmed on 10-06-2024 at 09:30."
	if !strings.Contains(patientMsg.Body, wantBody) {
		t.Errorf("patient body %q missing %q", patientMsg.Body, wantBody)
	}
	doctorMsg := f.notifier.sent[1]
	if doctorMsg.Subject != "New Appointment Booked" || doctorMsg.Recipients[0] != f.doctor.Email {
		t.Errorf("unexpected doctor message: %+v", doctorMsg)
	}
}

func TestBook_NotificationFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "09:00", "10:00", 30)
	f.notifier.fail[f.patient.Email] = true

	res, err := f.book(f.patient, "2024-06-10", "09:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PatientNotified {
		t.Error("expected PatientNotified=false")
	}
	if !res.DoctorNotified {
		t.Error("expected DoctorNotified=true")
	}
}

func TestBook_SlotTaken(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "09:00", "10:00", 30)

	if _, err := f.book(f.patient, "2024-06-10", "09:30"); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	_, err := f.book(f.patient2, "2024-06-10", "09:30")
	if !errors.Is(err, ErrSlotTaken) || !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "09:00", "10:00", 30)

	const attempts = 16
	patients := make([]*identity.Account, attempts)
	for i := range patients {
		p := &identity.Account{ID: uuid.New(), Role: identity.RolePatient, Email: fmt.Sprintf("p%d@example.test", i), DisplayName: "P"}
		f.dir.accounts[p.ID] = p
		patients[i] = p
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.book(patients[i], "2024-06-10", "09:30")
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrSlotTaken):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != attempts-1 {
		t.Errorf("expected exactly one success, got %d successes and %d conflicts", ok, conflicts)
	}
}

func TestBook_InvalidTime(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "09:00", "10:00", 30)

	tests := []struct {
		name string
		date string
		at   string
	}{
		{"between slots", "2024-06-10", "09:15"},
		{"slot would overrun window", "2024-06-10", "10:00"},
		{"no availability that day", "2024-06-11", "09:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.book(f.patient, tt.date, tt.at)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
	if f.notifier.count() != 0 {
		t.Errorf("rejected bookings must not notify, got %d messages", f.notifier.count())
	}
}

func TestBook_RoleChecks(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "09:00", "10:00", 30)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, BookingRequest{DoctorID: uuid.New(), PatientID: f.patient.ID, Date: MustDate("2024-06-10"), Time: MustTimeOfDay("09:00")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown doctor: expected ErrNotFound, got %v", err)
	}

	_, err = f.svc.Book(ctx, BookingRequest{DoctorID: f.patient2.ID, PatientID: f.patient.ID, Date: MustDate("2024-06-10"), Time: MustTimeOfDay("09:00")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("doctor id of a patient: expected ErrNotFound, got %v", err)
	}

	_, err = f.svc.Book(ctx, BookingRequest{DoctorID: f.doctor.ID, PatientID: f.doctor.ID, Date: MustDate("2024-06-10"), Time: MustTimeOfDay("09:00")})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("doctor booking: expected ErrForbidden, got %v", err)
	}
}

func TestBook_StoreFailureIsTransient(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "09:00", "10:00", 30)
	f.store.failCreate = errors.New("connection reset")

	_, err := f.book(f.patient, "2024-06-10", "09:00")
	if !errors.Is(err, ErrTransient) {
		t.Errorf("expected ErrTransient, got %v", err)
	}
	if f.notifier.count() != 0 {
		t.Error("failed booking must not notify")
	}
}

func TestBook_TransactionFailureIsTransient(t *testing.T) {
	f := newFixture()
	f.svc.tx = inlineTx{err: errors.New("begin transaction: pool closed")}

	_, err := f.book(f.patient, "2024-06-10", "09:00")
	if !errors.Is(err, ErrTransient) {
		t.Errorf("expected ErrTransient, got %v", err)
	}
}

// -- UpdateStatus --

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "09:00", "10:00", 30)
	res, _ := f.book(f.patient, "2024-06-10", "09:00")
	id := res.Appointment.ID
	ctx := context.Background()

	appt, err := f.svc.UpdateStatus(ctx, id, StatusCompleted, f.doctor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", appt.Status)
	}

	if _, err := f.svc.UpdateStatus(ctx, id, "done", f.doctor.ID); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, id, StatusCancelled, f.patient.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-owner, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, uuid.New(), StatusCancelled, f.doctor.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatus_ReconfirmTakenSlot(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "09:00", "10:00", 30)
	ctx := context.Background()

	first, _ := f.book(f.patient, "2024-06-10", "09:00")
	if _, err := f.svc.UpdateStatus(ctx, first.Appointment.ID, StatusCancelled, f.doctor.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.book(f.patient2, "2024-06-10", "09:00"); err != nil {
		t.Fatalf("rebook freed slot: %v", err)
	}

	_, err := f.svc.UpdateStatus(ctx, first.Appointment.ID, StatusConfirmed, f.doctor.ID)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

// -- Availability & dashboard --

func TestCreateAvailability_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name  string
		actor uuid.UUID
		a     Availability
		want  error
	}{
		{"patient cannot publish", f.patient.ID, Availability{Date: MustDate("2024-06-10"), StartTime: 540, EndTime: 600, SlotMinutes: 30}, ErrForbidden},
		{"zero slot length", f.doctor.ID, Availability{Date: MustDate("2024-06-10"), StartTime: 540, EndTime: 600, SlotMinutes: 0}, ErrInvalidRequest},
		{"end before start", f.doctor.ID, Availability{Date: MustDate("2024-06-10"), StartTime: 600, EndTime: 540, SlotMinutes: 30}, ErrInvalidRequest},
		{"missing date", f.doctor.ID, Availability{StartTime: 540, EndTime: 600, SlotMinutes: 30}, ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.a
			if err := f.svc.CreateAvailability(ctx, tt.actor, &a); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestListAvailability_NewestFirst(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "09:00", "10:00", 30)
	f.addWindow(t, "2024-06-12", "09:00", "10:00", 30)

	items, total, err := f.svc.ListAvailability(context.Background(), f.doctor.ID, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || items[0].Date != MustDate("2024-06-12") {
		t.Errorf("expected newest date first, got %+v", items)
	}
	if _, _, err := f.svc.ListAvailability(context.Background(), f.patient.ID, 10, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for patient, got %v", err)
	}
}

func TestListAppointments_ByRole(t *testing.T) {
	f := newFixture()
	f.addWindow(t, "2024-06-10", "09:00", "11:00", 30)
	f.book(f.patient, "2024-06-10", "10:00")
	f.book(f.patient, "2024-06-10", "09:00")
	f.book(f.patient2, "2024-06-10", "09:30")
	ctx := context.Background()

	mine, total, err := f.svc.ListAppointments(ctx, f.patient.ID, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || mine[0].Time != MustTimeOfDay("09:00") {
		t.Errorf("expected patient's two appointments ordered by time, got %+v", mine)
	}

	_, total, err = f.svc.ListAppointments(ctx, f.doctor.ID, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("expected doctor to see 3 appointments, got %d", total)
	}

	if _, _, err := f.svc.ListAppointments(ctx, uuid.New(), 10, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for unknown account, got %v", err)
	}
}

func TestDirectoryFailureIsTransient(t *testing.T) {
	f := newFixture()
	f.dir.err = errors.New("directory down")
	_, err := f.book(f.patient, "2024-06-10", "09:00")
	if !errors.Is(err, ErrTransient) {
		t.Errorf("expected ErrTransient, got %v", err)
	}
}

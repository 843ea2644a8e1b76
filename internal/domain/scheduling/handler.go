package scheduling

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/booking/internal/domain/identity"
	"github.com/clinic/booking/internal/platform/auth"
	"github.com/clinic/booking/pkg/pagination"
)

// Recorder observes booking and sweep outcomes. *telemetry.Collector
// satisfies it.
type Recorder interface {
	RecordBooking(outcome string)
	RecordSweep(due, sent, failed int)
}

type Handler struct {
	svc        *Service
	cronSecret string
	recorder   Recorder
	now        func() time.Time
}

// NewHandler serves the booking API. An empty cronSecret leaves the reminder
// trigger open. recorder may be nil.
func NewHandler(svc *Service, cronSecret string, recorder Recorder) *Handler {
	return &Handler{svc: svc, cronSecret: cronSecret, recorder: recorder, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:id/slots", h.ListSlots)
	api.GET("/appointments", h.ListAppointments)

	patients := api.Group("", auth.RequireRole(identity.RolePatient))
	patients.POST("/doctors/:id/appointments", h.Book)

	doctors := api.Group("", auth.RequireRole(identity.RoleDoctor))
	doctors.PATCH("/appointments/:id/status", h.UpdateStatus)
	doctors.GET("/availability", h.ListAvailability)
	doctors.POST("/availability", h.CreateAvailability)
}

// Reminder trigger paths. External schedulers call the underscore form; the
// hyphenated one is an alias.
const (
	ReminderTaskPath      = "/tasks/send_reminders"
	ReminderTaskAliasPath = "/tasks/send-reminders"
)

// RegisterTaskRoutes mounts the scheduler-facing reminder trigger.
func (h *Handler) RegisterTaskRoutes(e *echo.Echo) {
	for _, path := range []string{ReminderTaskPath, ReminderTaskAliasPath} {
		e.GET(path, h.SendReminders)
		e.POST(path, h.SendReminders)
	}
}

// -- Requests --

type bookRequest struct {
	Date string `json:"date" validate:"required,civil_date"`
	Time string `json:"time" validate:"required,clock_time"`
}

type availabilityRequest struct {
	Date        string `json:"date" validate:"required,civil_date"`
	StartTime   string `json:"start_time" validate:"required,clock_time"`
	EndTime     string `json:"end_time" validate:"required,clock_time"`
	SlotMinutes int    `json:"slot_minutes" validate:"required"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed completed cancelled no-show"`
}

type slotsResponse struct {
	DoctorID uuid.UUID   `json:"doctor_id"`
	Date     Date        `json:"date"`
	Slots    []TimeOfDay `json:"slots"`
}

// -- Slots & booking --

func (h *Handler) ListSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	date, err := ParseDate(c.QueryParam("date"))
	if err != nil {
		return httpError(err)
	}
	slots, err := h.svc.ListAvailableSlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slotsResponse{DoctorID: doctorID, Date: date, Slots: slots})
}

func (h *Handler) Book(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	actorID, err := auth.ActorID(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req bookRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return httpError(err)
	}
	at, err := ParseTimeOfDay(req.Time)
	if err != nil {
		return httpError(err)
	}

	res, err := h.svc.Book(c.Request().Context(), BookingRequest{
		DoctorID:  doctorID,
		PatientID: actorID,
		Date:      date,
		Time:      at,
	})
	h.recordBooking(err)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

// -- Appointments --

func (h *Handler) ListAppointments(c echo.Context) error {
	actorID, err := auth.ActorID(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), actorID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actorID, err := auth.ActorID(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req statusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	appt, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status, actorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

// -- Availability --

func (h *Handler) CreateAvailability(c echo.Context) error {
	actorID, err := auth.ActorID(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req availabilityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	a := &Availability{SlotMinutes: req.SlotMinutes}
	if a.Date, err = ParseDate(req.Date); err != nil {
		return httpError(err)
	}
	if a.StartTime, err = ParseTimeOfDay(req.StartTime); err != nil {
		return httpError(err)
	}
	if a.EndTime, err = ParseTimeOfDay(req.EndTime); err != nil {
		return httpError(err)
	}
	if err := h.svc.CreateAvailability(c.Request().Context(), actorID, a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAvailability(c echo.Context) error {
	actorID, err := auth.ActorID(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAvailability(c.Request().Context(), actorID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Availability{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// -- Reminder trigger --

func (h *Handler) SendReminders(c echo.Context) error {
	if h.cronSecret != "" &&
		subtle.ConstantTimeCompare([]byte(c.QueryParam("token")), []byte(h.cronSecret)) != 1 {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "unauthorized"})
	}

	res, err := h.svc.SweepReminders(c.Request().Context(), h.now())
	if res != nil && h.recorder != nil {
		h.recorder.RecordSweep(res.Due, res.Sent, res.Failed)
	}
	if err != nil {
		body := map[string]interface{}{"ok": false, "error": err.Error()}
		// Reminders marked before the interruption are already committed.
		if res != nil {
			body["sent"] = res.Sent
			body["due"] = res.Due
			body["failed"] = res.Failed
		}
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":     true,
		"sent":   res.Sent,
		"due":    res.Due,
		"failed": res.Failed,
	})
}

func (h *Handler) recordBooking(err error) {
	if h.recorder == nil {
		return
	}
	switch {
	case err == nil:
		h.recorder.RecordBooking("booked")
	case errors.Is(err, ErrSlotTaken):
		h.recorder.RecordBooking("slot_taken")
	case errors.Is(err, ErrTransient):
		h.recorder.RecordBooking("error")
	default:
		h.recorder.RecordBooking("rejected")
	}
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(req)
}

// httpError maps error kinds to HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "temporarily unavailable, please retry")
	}
}

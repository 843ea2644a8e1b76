// Package notification renders booking messages and delivers them through a
// pluggable mail transport. Delivery is best effort: Mailer.Send reports an
// outcome instead of an error.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Built-in template IDs.
const (
	TplAppointmentConfirmed = "appointment-confirmed"
	TplAppointmentBooked    = "appointment-booked"
	TplReminderPatient      = "appointment-reminder-patient"
	TplReminderDoctor       = "appointment-reminder-doctor"
)

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template defines a reusable message with {{key}} placeholders.
type Template struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the booking templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TplAppointmentConfirmed,
			Subject: "Appointment Confirmed",
			Body: "Hi {{patient_name}},\n\n" +
				"Your appointment with Dr. {{doctor_name}} is confirmed on {{date}} at {{time}}.\n\n" +
				"- Clinic",
		},
		{
			ID:      TplAppointmentBooked,
			Subject: "New Appointment Booked",
			Body: "Hello Dr. {{doctor_name}},\n\n" +
				"New appointment booked with {{patient_name}} on {{date}} at {{time}}.\n\n" +
				"- Clinic",
		},
		{
			ID:      TplReminderPatient,
			Subject: "Appointment Reminder",
			Body:    "Reminder: Appointment with Dr. {{doctor_name}} on {{date}} at {{time}}.",
		},
		{
			ID:      TplReminderDoctor,
			Subject: "Upcoming Appointment Reminder",
			Body:    "Reminder: Appointment with {{patient_name}} on {{date}} at {{time}}.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// Message is one outbound mail as handed to a transport.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        []string  `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Sender is a mail transport.
type Sender interface {
	Deliver(ctx context.Context, msg Message) error
}

// Recorder observes delivery outcomes. *telemetry.Collector satisfies it.
type Recorder interface {
	RecordNotification(transport string, delivered bool)
}

// ---------------------------------------------------------------------------
// Mailer
// ---------------------------------------------------------------------------

// Mailer is the application's notifier. It never returns an error and never
// lets a transport panic reach the caller.
type Mailer struct {
	sender    Sender
	transport string
	from      string
	timeout   time.Duration
	recorder  Recorder
	logger    zerolog.Logger
}

type MailerConfig struct {
	// Transport names the sender in logs and metrics.
	Transport string
	From      string
	Timeout   time.Duration
	Recorder  Recorder
}

const defaultSendTimeout = 10 * time.Second

func NewMailer(sender Sender, cfg MailerConfig, logger zerolog.Logger) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSendTimeout
	}
	return &Mailer{
		sender:    sender,
		transport: cfg.Transport,
		from:      cfg.From,
		timeout:   cfg.Timeout,
		recorder:  cfg.Recorder,
		logger:    logger.With().Str("component", "mailer").Str("transport", cfg.Transport).Logger(),
	}
}

// Send delivers one message to the non-empty recipients and reports whether
// the transport accepted it. An empty recipient list is not delivered.
func (m *Mailer) Send(ctx context.Context, subject string, recipients []string, body string) (delivered bool) {
	to := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}
	if len(to) == 0 {
		return false
	}

	msg := Message{
		ID:        uuid.New().String(),
		From:      m.from,
		To:        to,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	defer func() {
		if p := recover(); p != nil {
			m.logger.Error().Interface("panic", p).Str("message_id", msg.ID).Msg("mail transport panicked")
			delivered = false
		}
		if m.recorder != nil {
			m.recorder.RecordNotification(m.transport, delivered)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.sender.Deliver(ctx, msg); err != nil {
		m.logger.Warn().Err(err).Str("message_id", msg.ID).Str("subject", subject).Msg("mail delivery failed")
		return false
	}
	m.logger.Debug().Str("message_id", msg.ID).Int("recipients", len(to)).Msg("mail delivered")
	return true
}

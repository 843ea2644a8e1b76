package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPSender delivers plain-text mail through an SMTP relay.
type SMTPSender struct {
	addr     string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

// Deliver sends msg, giving up when ctx ends. net/smtp has no context
// support, so an abandoned send finishes in the background.
func (s *SMTPSender) Deliver(ctx context.Context, msg Message) error {
	raw := formatMessage(msg)
	done := make(chan error, 1)
	go func() {
		done <- s.sendMail(s.addr, s.auth, msg.From, msg.To, raw)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send via %s: %w", s.addr, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send via %s: %w", s.addr, ctx.Err())
	}
}

func formatMessage(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", msg.CreatedAt.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@booking>\r\n", msg.ID)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

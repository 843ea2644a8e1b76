package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender writes messages to the log instead of sending them. It is the
// development transport.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Deliver(_ context.Context, msg Message) error {
	s.logger.Info().
		Str("message_id", msg.ID).
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("outbound mail")
	return nil
}

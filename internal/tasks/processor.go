package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/DevOwais28/Expense-Tracker/internal/mail"
	"github.com/DevOwais28/Expense-Tracker/internal/metrics"
)

// Processor delivers outbox messages read from the mail stream.
type Processor struct {
	sender mail.Sender
	logger zerolog.Logger
}

func NewProcessor(sender mail.Sender, logger zerolog.Logger) *Processor {
	return &Processor{
		sender: sender,
		logger: logger,
	}
}

// Handle returns an error only for failures worth retrying. Malformed entries
// are logged and acknowledged.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	m, err := mail.FromValues(msg.Values)
	if err != nil {
		if errors.Is(err, mail.ErrMalformedMessage) {
			metrics.MailDelivered.WithLabelValues("malformed").Inc()
			p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("discarding malformed mail")
			return nil
		}
		return err
	}

	if m.Kind != mail.KindPasswordReset {
		p.logger.Warn().Str("kind", m.Kind).Str("message_id", msg.ID).Msg("unknown mail kind")
		metrics.MailDelivered.WithLabelValues("malformed").Inc()
		return nil
	}

	if err := p.sender.Send(ctx, m); err != nil {
		metrics.MailDelivered.WithLabelValues("failed").Inc()
		return fmt.Errorf("send %s: %w", m.Kind, err)
	}
	metrics.MailDelivered.WithLabelValues("sent").Inc()
	p.logger.Info().Str("kind", m.Kind).Str("message_id", msg.ID).Msg("mail delivered")
	return nil
}

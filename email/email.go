// Package email sends payout receipts over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/givemart/givemart"
	"github.com/givemart/givemart/internal/config"
	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	poolSize    = 2
	sendTimeout = 30 * time.Second
)

var _ givemart.Mailer = &smtpMailer{}

type smtpMailer struct {
	pool *email.Pool
	from string
}

// NewMailer connects to the SMTP server in the [email] config section.
func NewMailer() (givemart.Mailer, error) {
	host, _, err := net.SplitHostPort(config.Email.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP address: %w", err)
	}
	pool, err := email.NewPool(config.Email.Host, poolSize, smtp.PlainAuth("", config.Email.Username, config.Email.Password, host))
	if err != nil {
		return nil, fmt.Errorf("couldn't create SMTP pool: %w", err)
	}

	from := config.Email.From
	if from == "" {
		from = config.Email.Username
	}
	return &smtpMailer{pool: pool, from: from}, nil
}

func (m *smtpMailer) SendEmail(ctx context.Context, msg *givemart.MailerMessage) error {
	_, span := otel.Tracer("email").Start(ctx, "SendEmail", trace.WithAttributes(
		attribute.String("email.to", msg.To),
		attribute.String("email.subject", msg.Subject),
	))
	defer span.End()

	if msg.To == "" {
		return errors.New("email has no recipient")
	}

	em := email.NewEmail()
	em.From = m.from
	em.To = []string{msg.To}
	if msg.ReplyTo != "" {
		em.ReplyTo = []string{msg.ReplyTo}
	}
	em.Subject = msg.Subject
	em.Text = []byte(msg.PlainContent)
	if msg.HTMLContent != "" {
		em.HTML = []byte(msg.HTMLContent)
	}

	timeout := sendTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if err := m.pool.Send(em, timeout); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return fmt.Errorf("couldn't send email: %w", err)
	}
	return nil
}

package notify

import (
	"context"
	"fmt"

	"github.com/favark/favark/internal/models"
	"github.com/favark/favark/internal/shared"
	"github.com/wneessen/go-mail"
)

// EmailSink mails run summaries over SMTP (STARTTLS + plain auth).
type EmailSink struct {
	cfg shared.EmailConfig
	// Render converts a summary to the mail body (see formatter.ExportToText).
	Render func(*models.RunSummary) []byte
	// send is swapped in tests.
	send func(ctx context.Context, cfg shared.EmailConfig, to []string, subject, body string) error
}

// NewEmailSink creates an email sink for the configured recipients.
func NewEmailSink(cfg shared.EmailConfig, render func(*models.RunSummary) []byte) *EmailSink {
	return &EmailSink{cfg: cfg, Render: render, send: SendMail}
}

func (s *EmailSink) Report(ctx context.Context, summary *models.RunSummary) error {
	recipients := s.cfg.Recipients()
	if len(recipients) == 0 {
		return fmt.Errorf("%w: no email recipients configured", shared.ErrInvalidConfig)
	}

	date := summary.FinishedAt.Format("2006-01-02")
	var subject string
	switch summary.Mode {
	case models.ModeTakeout:
		subject = fmt.Sprintf("[favark] %s takeout result", date)
	default:
		subject = fmt.Sprintf("[favark] %s backup result", date)
	}

	body := string(s.Render(summary))
	if summary.Failed() {
		body = "WARNING: the run recorded failures.\n\n" + body
	}

	return s.send(ctx, s.cfg, recipients, subject, body)
}

// SendMail delivers one plain-text message through the configured SMTP relay.
func SendMail(ctx context.Context, cfg shared.EmailConfig, to []string, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(cfg.SMTPUser); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to...); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUser),
		mail.WithPassword(cfg.SMTPPassword),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

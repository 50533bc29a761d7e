package alert

import (
	"errors"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"saferide-service/internal/config"
)

// Mailer sends the on-demand detection report as an email attachment over
// authenticated SMTP with STARTTLS.
type Mailer struct {
	dialer *gomail.Dialer
	sender string
	log    zerolog.Logger
}

func NewMailer(cfg config.SMTPConfig, log zerolog.Logger) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Sender, cfg.Password),
		sender: cfg.Sender,
		log:    log,
	}
}

func (m *Mailer) SendReport(recipient, subject, body, attachmentPath string) error {
	if m.sender == "" {
		return errors.New("email sender not configured")
	}
	if recipient == "" {
		return errors.New("recipient address is required")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	msg.Attach(attachmentPath)

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.log.Error().Err(err).Str("recipient", recipient).Msg("report email failed")
		return err
	}

	m.log.Info().Str("recipient", recipient).Str("attachment", attachmentPath).Msg("report email sent")
	return nil
}

package email

import (
	"context"
	"fmt"

	"face-door-lock/config"
	"face-door-lock/internal/alert"

	log "github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

// SMTPDispatcher sends alerts through an authenticated SMTP relay
type SMTPDispatcher struct {
	cfg config.AlertConfig
}

// NewSMTPDispatcher creates a dispatcher for cfg.SMTP
func NewSMTPDispatcher(cfg config.AlertConfig) *SMTPDispatcher {
	return &SMTPDispatcher{cfg: cfg}
}

func (d *SMTPDispatcher) buildMessage(n alert.Notification) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(d.cfg.Sender); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.To(d.cfg.Recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(d.cfg.Subject)
	m.SetDate()

	html, err := renderBody(n)
	if err != nil {
		return nil, err
	}
	m.SetBodyString(mail.TypeTextHTML, html)
	m.AttachFile(n.ImagePath)
	return m, nil
}

// Send implements alert.Dispatcher
func (d *SMTPDispatcher) Send(ctx context.Context, n alert.Notification) error {
	m, err := d.buildMessage(n)
	if err != nil {
		return err
	}

	username := d.cfg.SMTP.Username
	if username == "" {
		username = d.cfg.Sender
	}
	client, err := mail.NewClient(d.cfg.SMTP.Host,
		mail.WithPort(d.cfg.SMTP.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username),
		mail.WithPassword(d.cfg.SMTP.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	log.WithFields(log.Fields{
		"service":  "smtp",
		"alert_id": n.ID,
		"host":     d.cfg.SMTP.Host,
	}).Info("Alert email sent")
	return nil
}

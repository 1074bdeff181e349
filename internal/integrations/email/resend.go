package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"face-door-lock/config"
	"face-door-lock/internal/alert"

	"github.com/resend/resend-go/v2"
	log "github.com/sirupsen/logrus"
)

// ResendDispatcher sends alerts through the Resend API
type ResendDispatcher struct {
	client  *resend.Client
	from    string
	to      string
	subject string
}

// NewResendDispatcher creates a dispatcher using cfg.ResendAPIKey
func NewResendDispatcher(cfg config.AlertConfig) *ResendDispatcher {
	return &ResendDispatcher{
		client:  resend.NewClient(cfg.ResendAPIKey),
		from:    cfg.Sender,
		to:      cfg.Recipient,
		subject: cfg.Subject,
	}
}

// Send implements alert.Dispatcher
func (d *ResendDispatcher) Send(ctx context.Context, n alert.Notification) error {
	image, err := os.ReadFile(n.ImagePath)
	if err != nil {
		return fmt.Errorf("failed to read evidence image: %w", err)
	}
	html, err := renderBody(n)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    d.from,
		To:      []string{d.to},
		Subject: d.subject,
		Html:    html,
		Attachments: []*resend.Attachment{{
			Content:  image,
			Filename: filepath.Base(n.ImagePath),
		}},
	}

	sent, err := d.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	log.WithFields(log.Fields{
		"service":  "resend",
		"alert_id": n.ID,
		"email_id": sent.Id,
	}).Info("Alert email sent")
	return nil
}

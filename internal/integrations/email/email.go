// Package email delivers unknown-person alerts with the evidence image attached.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"face-door-lock/config"
	"face-door-lock/internal/alert"
	"face-door-lock/internal/util/timezone"
)

var bodyTemplate = template.Must(template.New("alert").Parse(`<html><body>
<h2>Unknown person at the door</h2>
<p>An unrecognized face was in front of the camera for {{.Presence}} starting {{.DetectedAt}}.</p>
<p>The captured image is attached. Alert id: {{.ID}}</p>
</body></html>`))

type bodyData struct {
	ID         string
	DetectedAt string
	Presence   string
}

func renderBody(n alert.Notification) (string, error) {
	var buf bytes.Buffer
	err := bodyTemplate.Execute(&buf, bodyData{
		ID:         n.ID,
		DetectedAt: timezone.In(n.DetectedAt).Format("2006-01-02 15:04:05 MST"),
		Presence:   n.Presence.Round(100 * time.Millisecond).String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render alert body: %w", err)
	}
	return buf.String(), nil
}

// NewDispatcher builds the dispatcher selected by cfg.Provider
func NewDispatcher(cfg config.AlertConfig) (alert.Dispatcher, error) {
	if cfg.Recipient == "" || cfg.Sender == "" {
		return nil, fmt.Errorf("%w: sender and recipient are required", alert.ErrNotConfigured)
	}

	switch strings.ToLower(cfg.Provider) {
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("%w: resend API key missing", alert.ErrNotConfigured)
		}
		return NewResendDispatcher(cfg), nil
	case "smtp", "":
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("%w: SMTP host missing", alert.ErrNotConfigured)
		}
		return NewSMTPDispatcher(cfg), nil
	default:
		return nil, fmt.Errorf("unknown alert provider %q", cfg.Provider)
	}
}

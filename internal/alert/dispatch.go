package alert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned by dispatchers without credentials or recipient
var ErrNotConfigured = errors.New("notification dispatcher not configured")

// Notification describes one unknown-person alert
type Notification struct {
	ID         string
	ImagePath  string
	DetectedAt time.Time
	Presence   time.Duration
}

// Dispatcher sends a notification with the evidence image attached
type Dispatcher interface {
	Send(ctx context.Context, n Notification) error
}

// NewNotification builds a notification whose evidence image lives in dir
func NewNotification(dir string, detectedAt time.Time, presence time.Duration) Notification {
	id := uuid.NewString()
	name := fmt.Sprintf("unknown_%d_%s.jpg", detectedAt.Unix(), id[:8])
	return Notification{
		ID:         id,
		ImagePath:  filepath.Join(dir, name),
		DetectedAt: detectedAt,
		Presence:   presence,
	}
}

// Deliver sends n through d. The evidence image is deleted after a
// successful send and kept on failure; failures are not retried.
func Deliver(ctx context.Context, d Dispatcher, n Notification) error {
	logger := log.WithFields(log.Fields{
		"component": "alert",
		"alert_id":  n.ID,
		"image":     n.ImagePath,
	})

	if err := d.Send(ctx, n); err != nil {
		logger.WithError(err).Error("Failed to send unknown person alert, keeping evidence image")
		return fmt.Errorf("send alert %s: %w", n.ID, err)
	}

	if err := os.Remove(n.ImagePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithError(err).Warn("Alert sent but evidence image could not be removed")
	}
	logger.Info("Unknown person alert sent")
	return nil
}

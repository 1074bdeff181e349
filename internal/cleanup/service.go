package cleanup

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"face-door-lock/internal/util/timezone"

	log "github.com/sirupsen/logrus"
)

// EventPruner deletes audit events older than a cutoff
type EventPruner interface {
	DeleteEventsBefore(cutoff time.Time) (int64, error)
}

// Result summarizes one cleanup cycle
type Result struct {
	Events       int64
	Images       int
	FailedImages int
}

// Service removes old audit events and evidence images that were never sent
type Service struct {
	events        EventPruner
	retentionDays int
	evidenceDir   string
	checkInterval time.Duration
	stopChan      chan struct{}
	now           func() time.Time
}

// NewService creates the cleanup service. It returns nil when retention is disabled.
func NewService(events EventPruner, retentionDays int, evidenceDir string, checkInterval time.Duration) *Service {
	if retentionDays <= 0 {
		log.Info("Automatic cleanup disabled (retention_days <= 0).")
		return nil
	}
	if events == nil {
		log.Error("Cannot initialize cleanup service: event store is nil")
		return nil
	}
	if checkInterval <= 0 {
		checkInterval = time.Hour
	}
	log.Infof("Initializing cleanup service: RetentionDays=%d, EvidenceDir='%s', CheckInterval=%s", retentionDays, evidenceDir, checkInterval)
	return &Service{
		events:        events,
		retentionDays: retentionDays,
		evidenceDir:   evidenceDir,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
		now:           timezone.Now,
	}
}

// StartBackgroundCleanup runs one cycle now and then every check interval
func (s *Service) StartBackgroundCleanup() {
	if s == nil {
		return
	}
	log.Info("Starting background cleanup routine...")

	ticker := time.NewTicker(s.checkInterval)
	go func() {
		defer ticker.Stop()
		s.RunCleanupCycle()
		for {
			select {
			case <-ticker.C:
				log.Debug("Running scheduled cleanup cycle...")
				s.RunCleanupCycle()
			case <-s.stopChan:
				log.Info("Stopping background cleanup routine.")
				return
			}
		}
	}()
}

// StopBackgroundCleanup stops the background routine. Safe to call twice.
func (s *Service) StopBackgroundCleanup() {
	if s == nil || s.stopChan == nil {
		return
	}
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}

// RunCleanupCycle deletes data older than the retention period
func (s *Service) RunCleanupCycle() Result {
	var res Result
	if s == nil || s.retentionDays <= 0 {
		return res
	}

	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	log.Infof("Cleanup: deleting records older than %s", timezone.RFC3339(cutoff))

	n, err := s.events.DeleteEventsBefore(cutoff)
	if err != nil {
		log.Errorf("Cleanup: failed to delete old events: %v", err)
	} else {
		res.Events = n
	}

	res.Images, res.FailedImages = s.pruneEvidence(cutoff)
	log.Infof("Cleanup cycle finished. Events: %d, images: %d, failed: %d", res.Events, res.Images, res.FailedImages)
	return res
}

// pruneEvidence removes retained alert images last modified before cutoff
func (s *Service) pruneEvidence(cutoff time.Time) (deleted, failed int) {
	if s.evidenceDir == "" {
		return 0, 0
	}
	entries, err := os.ReadDir(s.evidenceDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Errorf("Cleanup: cannot read evidence directory %s: %v", s.evidenceDir, err)
		}
		return 0, 0
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "unknown_") || filepath.Ext(name) != ".jpg" {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.evidenceDir, name)
		if err := os.Remove(path); err != nil {
			log.Warnf("Cleanup: failed to delete %s: %v", path, err)
			failed++
			continue
		}
		deleted++
	}
	return deleted, failed
}

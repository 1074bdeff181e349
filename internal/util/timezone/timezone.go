package timezone

import (
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	mu              sync.RWMutex
	currentLocation *time.Location
)

// Initialize sets the zone used for event timestamps. An empty name falls back
// to the TZ environment variable and then to UTC.
func Initialize(name string) {
	tzName := name
	if tzName == "" {
		tzName = os.Getenv("TZ")
	}
	if tzName == "" {
		tzName = "UTC"
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Warnf("Failed to load timezone %s: %v. Falling back to UTC.", tzName, err)
		loc = time.UTC
	} else {
		log.Infof("Successfully initialized timezone to %s", tzName)
	}

	mu.Lock()
	currentLocation = loc
	mu.Unlock()
}

// Location returns the configured zone
func Location() *time.Location {
	mu.RLock()
	loc := currentLocation
	mu.RUnlock()
	if loc == nil {
		Initialize("")
		return Location()
	}
	return loc
}

// Now returns the current time in the configured zone
func Now() time.Time {
	return time.Now().In(Location())
}

// In converts t into the configured zone
func In(t time.Time) time.Time {
	return t.In(Location())
}

// RFC3339 formats t in the configured zone
func RFC3339(t time.Time) string {
	return In(t).Format(time.RFC3339)
}

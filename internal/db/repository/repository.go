package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"face-door-lock/internal/access"
	"face-door-lock/internal/core/models"
	"face-door-lock/internal/matcher"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a named record does not exist
var ErrNotFound = errors.New("record not found")

// Repository defines the database operations
type Repository interface {
	// Enrollment
	ImportEnrollment(e *Enrollment) (ImportResult, error)
	GetIdentities() ([]models.Identity, error)
	GetIdentityByName(name string) (*models.Identity, error)
	DeleteIdentity(name string) error
	LoadKnown() ([]matcher.Known, error)

	// Events
	SaveEvent(event *models.AccessEvent) error
	GetEvents(filter EventFilter) ([]models.AccessEvent, int64, error)
	DeleteEventsBefore(cutoff time.Time) (int64, error)

	GetStatistics() (models.Statistics, error)
}

// EventFilter narrows an event listing
type EventFilter struct {
	Type   string
	Since  time.Time
	Limit  int
	Offset int
}

// ImportResult reports what an enrollment import changed
type ImportResult struct {
	Identities int
	Created    int
	Encodings  int
}

// SQLiteRepository implements Repository on gorm
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository creates a repository on an open connection
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Enrollment

// ImportEnrollment stores every encoding of e under its name, creating
// identities that do not exist yet. The import is atomic.
func (r *SQLiteRepository) ImportEnrollment(e *Enrollment) (ImportResult, error) {
	var res ImportResult
	if err := e.Validate(); err != nil {
		return res, err
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		ids := make(map[string]uint)
		for i, name := range e.Names {
			id, ok := ids[name]
			if !ok {
				var identity models.Identity
				result := tx.Where("name = ?", name).First(&identity)
				switch {
				case errors.Is(result.Error, gorm.ErrRecordNotFound):
					identity = models.Identity{Name: name, Source: e.Source}
					if err := tx.Create(&identity).Error; err != nil {
						return fmt.Errorf("create identity %q: %w", name, err)
					}
					res.Created++
				case result.Error != nil:
					return result.Error
				}
				id = identity.ID
				ids[name] = id
			}

			vec, err := json.Marshal(e.Encodings[i])
			if err != nil {
				return err
			}
			enc := models.FaceEncoding{
				IdentityID: id,
				Vector:     datatypes.JSON(vec),
				Dimensions: len(e.Encodings[i]),
			}
			if err := tx.Create(&enc).Error; err != nil {
				return fmt.Errorf("store encoding %d of %q: %w", i, name, err)
			}
			res.Encodings++
		}
		res.Identities = len(ids)
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

// GetIdentities returns all identities with their encodings
func (r *SQLiteRepository) GetIdentities() ([]models.Identity, error) {
	var identities []models.Identity
	result := r.db.Preload("Encodings").Order("name ASC").Find(&identities)
	if result.Error != nil {
		return nil, result.Error
	}
	return identities, nil
}

// GetIdentityByName returns nil without error when the name is unknown
func (r *SQLiteRepository) GetIdentityByName(name string) (*models.Identity, error) {
	var identity models.Identity
	result := r.db.Preload("Encodings").Where("name = ?", name).First(&identity)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &identity, nil
}

// DeleteIdentity removes an identity and its encodings permanently
func (r *SQLiteRepository) DeleteIdentity(name string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var identity models.Identity
		if err := tx.Where("name = ?", name).First(&identity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("identity %q: %w", name, ErrNotFound)
			}
			return err
		}
		if err := tx.Unscoped().Where("identity_id = ?", identity.ID).Delete(&models.FaceEncoding{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&identity).Error
	})
}

// LoadKnown returns every enrolled encoding for the matcher
func (r *SQLiteRepository) LoadKnown() ([]matcher.Known, error) {
	identities, err := r.GetIdentities()
	if err != nil {
		return nil, err
	}

	var known []matcher.Known
	for _, identity := range identities {
		for _, enc := range identity.Encodings {
			var vec []float64
			if err := json.Unmarshal(enc.Vector, &vec); err != nil {
				return nil, fmt.Errorf("decode encoding %d of %q: %w", enc.ID, identity.Name, err)
			}
			known = append(known, matcher.Known{Name: identity.Name, Encoding: vec})
		}
	}
	return known, nil
}

// Events

// SaveEvent stores an access event
func (r *SQLiteRepository) SaveEvent(event *models.AccessEvent) error {
	return r.db.Create(event).Error
}

// GetEvents returns events newest first together with the unpaged total
func (r *SQLiteRepository) GetEvents(filter EventFilter) ([]models.AccessEvent, int64, error) {
	var events []models.AccessEvent
	var total int64

	scope := func(tx *gorm.DB) *gorm.DB {
		if filter.Type != "" {
			tx = tx.Where("type = ?", filter.Type)
		}
		if !filter.Since.IsZero() {
			tx = tx.Where("timestamp >= ?", filter.Since.UTC())
		}
		return tx
	}
	if err := r.db.Model(&models.AccessEvent{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	result := r.db.Scopes(scope).Order("timestamp DESC").Order("id DESC").Limit(limit).Offset(filter.Offset).Find(&events)
	if result.Error != nil {
		return nil, 0, result.Error
	}
	return events, total, nil
}

// DeleteEventsBefore removes events older than cutoff
func (r *SQLiteRepository) DeleteEventsBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("timestamp < ?", cutoff.UTC()).Delete(&models.AccessEvent{})
	return result.RowsAffected, result.Error
}

// GetStatistics summarizes the enrollment store and the event log
func (r *SQLiteRepository) GetStatistics() (models.Statistics, error) {
	var stats models.Statistics

	if err := r.db.Model(&models.Identity{}).Count(&stats.IdentityCount).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&models.FaceEncoding{}).Count(&stats.EncodingCount).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&models.AccessEvent{}).Count(&stats.EventCount).Error; err != nil {
		return stats, err
	}

	counts := []struct {
		eventType string
		dst       *int64
	}{
		{string(access.EventUnlock), &stats.UnlockCount},
		{string(access.EventUnknownAlert), &stats.AlertCount},
		{string(access.EventSpoofRejected), &stats.SpoofCount},
	}
	for _, c := range counts {
		if err := r.db.Model(&models.AccessEvent{}).Where("type = ?", c.eventType).Count(c.dst).Error; err != nil {
			return stats, err
		}
	}

	var latest models.AccessEvent
	if err := r.db.Order("timestamp DESC").First(&latest).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return stats, err
		}
	} else {
		stats.LatestEvent = latest.Timestamp
	}
	return stats, nil
}

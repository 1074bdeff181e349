package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Identity is an enrolled person
type Identity struct {
	gorm.Model
	Name      string         `gorm:"uniqueIndex;not null"`
	Source    string         `gorm:"index"` // import file the identity came from
	Encodings []FaceEncoding `gorm:"foreignKey:IdentityID;constraint:OnDelete:CASCADE;"`
}

// FaceEncoding is one enrolled embedding of an identity
type FaceEncoding struct {
	gorm.Model
	IdentityID uint           `gorm:"index;not null"`
	Vector     datatypes.JSON `gorm:"type:json;not null"` // JSON array of float64
	Dimensions int
	Identity   Identity `gorm:"foreignKey:IdentityID"`
}

// AccessEvent is one entry of the access audit log
type AccessEvent struct {
	ID        uint      `gorm:"primaryKey"`
	EventID   string    `gorm:"uniqueIndex;not null"`
	Type      string    `gorm:"index;not null"`
	Timestamp time.Time `gorm:"index"`
	Identity  string    `gorm:"index"`
	Reason    string
	DoorState string
	ImagePath string
	Signals   datatypes.JSON `gorm:"type:json;null"` // liveness values at decision time
	CreatedAt time.Time
}

// Statistics summarizes the store
type Statistics struct {
	IdentityCount int64
	EncodingCount int64
	EventCount    int64
	UnlockCount   int64
	AlertCount    int64
	SpoofCount    int64
	LatestEvent   time.Time
}

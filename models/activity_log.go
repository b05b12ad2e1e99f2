package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityKind identifies which cumulative counter a log entry feeds.
type ActivityKind string

const (
	ActivityNightsAway ActivityKind = "nights_away"
	ActivityHikesAway  ActivityKind = "hikes_away"
)

func (k ActivityKind) Valid() bool {
	return k == ActivityNightsAway || k == ActivityHikesAway
}

// CounterKind maps the log kind onto the badge counter it feeds.
func (k ActivityKind) CounterKind() CounterKind {
	switch k {
	case ActivityNightsAway:
		return CounterNightsAway
	case ActivityHikesAway:
		return CounterHikesAway
	}
	return CounterNone
}

// ActivityLog is one event feeding a cumulative counter (e.g. a camp of 3 nights).
type ActivityLog struct {
	ID        string       `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID  string       `gorm:"index;not null" json:"member_id"`
	Kind      ActivityKind `gorm:"type:varchar(16);index;not null" json:"kind"`
	StartDate time.Time    `gorm:"not null" json:"start_date"`
	Count     int          `gorm:"not null" json:"count"` // nights or hikes
	Location  *string      `json:"location,omitempty"`

	Timestamps
}

func (l *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

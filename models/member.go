package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Member is a local snapshot of a programme member.
// Owned by the membership service; populated via the member sync worker.
type Member struct {
	ID               string     `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalMemberID string     `gorm:"uniqueIndex;not null" json:"external_member_id"` // membership service identity
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Section          string     `gorm:"index;type:varchar(32)" json:"section"` // age group, e.g. "cubs"
	JoinedAt         *time.Time `json:"joined_at,omitempty"`

	// Cached roll-ups of ActivityLog. Allowed to drift from the logs; nil means "not tracked".
	TotalNightsAway *int `json:"total_nights_away,omitempty"`
	TotalHikesAway  *int `json:"total_hikes_away,omitempty"`

	Timestamps
}

// DisplayName joins first and last name.
func (m *Member) DisplayName() string {
	if m.LastName == "" {
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}

func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// RemoteMember mirrors the membership service's JSON representation (read-only).
type RemoteMember struct {
	ExternalID      string     `json:"external_id"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Section         string     `json:"section"`
	JoinedAt        *time.Time `json:"joined_at,omitempty"`
	TotalNightsAway *int       `json:"total_nights_away,omitempty"`
	TotalHikesAway  *int       `json:"total_hikes_away,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

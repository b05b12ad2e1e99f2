package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BadgeProgressStatus is the cached roll-up status of a badge for a member.
type BadgeProgressStatus string

const (
	StatusInProgress BadgeProgressStatus = "in_progress"
	StatusCompleted  BadgeProgressStatus = "completed"
)

// AwardStatus is the human/process decision layered on top of completion.
type AwardStatus string

const (
	AwardPending AwardStatus = "pending"
	AwardAwarded AwardStatus = "awarded"
)

// MemberRequirementProgress is the ground truth: one row per (member, requirement).
// ModuleID is denormalized for fast per-module lookups.
type MemberRequirementProgress struct {
	ID              string     `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID        string     `gorm:"uniqueIndex:idx_member_requirement;not null" json:"member_id"`
	RequirementID   string     `gorm:"uniqueIndex:idx_member_requirement;not null" json:"requirement_id"`
	ModuleID        string     `gorm:"index;not null" json:"module_id"`
	Completed       bool       `gorm:"default:false" json:"completed"`
	CompletionCount int        `gorm:"default:0" json:"completion_count"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`

	Timestamps
}

// MemberBadgeProgress caches the last recomputed status of a badge (denormalized for performance).
// It is rebuildable from MemberRequirementProgress and only authoritative for badges without modules.
type MemberBadgeProgress struct {
	ID           string              `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID     string              `gorm:"uniqueIndex:idx_member_badge_progress;not null" json:"member_id"`
	BadgeID      string              `gorm:"uniqueIndex:idx_member_badge_progress;not null" json:"badge_id"`
	Status       BadgeProgressStatus `gorm:"type:varchar(16);default:'in_progress'" json:"status"`
	Percentage   int                 `gorm:"default:0" json:"percentage"`
	RecomputedAt *time.Time          `json:"recomputed_at,omitempty"`

	Timestamps
}

// MemberBadgeAward: awarded instance, written only by the award workflow.
type MemberBadgeAward struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	MemberID    string      `gorm:"uniqueIndex:idx_member_badge_award;not null" json:"member_id"`
	BadgeID     string      `gorm:"uniqueIndex:idx_member_badge_award;not null" json:"badge_id"`
	AwardStatus AwardStatus `gorm:"type:varchar(16);default:'pending'" json:"award_status"`
	AwardedAt   *time.Time  `json:"awarded_at,omitempty"`
	AwardedBy   string      `json:"awarded_by,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// IsDone applies the ground-truth rule: the count, not the flag, decides completion.
func (p *MemberRequirementProgress) IsDone(required int) bool {
	if required < 1 {
		required = 1
	}
	return p.CompletionCount >= required
}

func (p *MemberRequirementProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *MemberBadgeProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (a *MemberBadgeAward) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

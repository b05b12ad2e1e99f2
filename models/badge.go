package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BadgeCategory groups badges for presentation and ranking.
type BadgeCategory string

const (
	CategoryChallenge BadgeCategory = "challenge"
	CategoryActivity  BadgeCategory = "activity"
	CategoryStaged    BadgeCategory = "staged"
	CategoryCore      BadgeCategory = "core"
	CategorySpecial   BadgeCategory = "special"
)

// BadgeCompletionRule decides how module results roll up into the badge.
type BadgeCompletionRule string

const (
	BadgeRuleAllModules BadgeCompletionRule = "all_modules"
	BadgeRuleOneModule  BadgeCompletionRule = "one_module"
)

// ModuleCompletionRule decides how requirement results roll up into the module.
type ModuleCompletionRule string

const (
	ModuleRuleAllRequirements ModuleCompletionRule = "all_requirements"
	ModuleRuleXOfN            ModuleCompletionRule = "x_of_n"
)

// CounterKind marks badges whose stages are earned by a cumulative counter
// instead of (or as well as) signed-off requirements.
type CounterKind string

const (
	CounterNone       CounterKind = "none"
	CounterNightsAway CounterKind = "nights_away"
	CounterHikesAway  CounterKind = "hikes_away"
	CounterTenure     CounterKind = "tenure"
)

// SectionAll makes a badge available to every age-group section.
const SectionAll = "all"

func (c BadgeCategory) Valid() bool {
	switch c {
	case CategoryChallenge, CategoryActivity, CategoryStaged, CategoryCore, CategorySpecial:
		return true
	}
	return false
}

func (r BadgeCompletionRule) Valid() bool {
	switch r {
	case BadgeRuleAllModules, BadgeRuleOneModule:
		return true
	}
	return false
}

func (r ModuleCompletionRule) Valid() bool {
	switch r {
	case ModuleRuleAllRequirements, ModuleRuleXOfN:
		return true
	}
	return false
}

func (k CounterKind) Valid() bool {
	switch k {
	case CounterNone, CounterNightsAway, CounterHikesAway, CounterTenure:
		return true
	}
	return false
}

// BadgeDefinition: one awardable badge, or one stage of a staged family.
type BadgeDefinition struct {
	ID                string              `gorm:"primaryKey;type:uuid" json:"id"`
	Code              string              `gorm:"uniqueIndex;not null" json:"code"` // e.g., "nights-away-5"
	Name              string              `gorm:"not null" json:"name"`
	Description       string              `json:"description,omitempty"`
	IconURL           string              `gorm:"type:text" json:"icon_url,omitempty"`
	Category          BadgeCategory       `gorm:"type:varchar(16);not null" json:"category"`
	CompletionRule    BadgeCompletionRule `gorm:"type:varchar(16);default:'all_modules'" json:"completion_rule"`
	Section           string              `gorm:"type:varchar(32);default:'all'" json:"section"`
	BadgeFamilyID     *string             `gorm:"index" json:"badge_family_id,omitempty"`
	FamilyName        string              `json:"family_name,omitempty"` // display name shared by all stages
	StageNumber       *int                `json:"stage_number,omitempty"`
	CounterKind       CounterKind         `gorm:"type:varchar(16);default:'none'" json:"counter_kind"`
	IsChiefScoutAward bool                `gorm:"default:false" json:"is_chief_scout_award"`
	Active            bool                `gorm:"not null" json:"active"`

	Timestamps
}

// BadgeModule: a named group of requirements inside a badge.
type BadgeModule struct {
	ID             string               `gorm:"primaryKey;type:uuid" json:"id"`
	BadgeID        string               `gorm:"index;not null" json:"badge_id"`
	Title          string               `json:"title"`
	Order          int                  `gorm:"column:sort_order;default:0" json:"order"`
	CompletionRule ModuleCompletionRule `gorm:"type:varchar(16);default:'all_requirements'" json:"completion_rule"`
	RequiredCount  *int                 `json:"required_count,omitempty"` // x_of_n only

	Timestamps
}

// BadgeRequirement: the atomic unit of completion.
type BadgeRequirement struct {
	ID                  string `gorm:"primaryKey;type:uuid" json:"id"`
	ModuleID            string `gorm:"index;not null" json:"module_id"`
	Order               int    `gorm:"column:sort_order;default:0" json:"order"`
	Text                string `gorm:"type:text;not null" json:"text"`
	RequiredCompletions int    `gorm:"default:1" json:"required_completions"` // e.g., "attend 3 times"

	Timestamps
}

var (
	ErrStageWithoutNumber = errors.New("staged badge requires a stage number")
	ErrNumberWithoutStage = errors.New("stage number set on a badge without a family")
)

// IsStaged reports whether the badge is one stage of a family.
func (b *BadgeDefinition) IsStaged() bool {
	return b.BadgeFamilyID != nil && *b.BadgeFamilyID != ""
}

// FamilyID returns the family identifier or "" for standalone badges.
func (b *BadgeDefinition) FamilyID() string {
	if !b.IsStaged() {
		return ""
	}
	return *b.BadgeFamilyID
}

// Stage returns the stage number, 0 when unset.
func (b *BadgeDefinition) Stage() int {
	if b.StageNumber == nil {
		return 0
	}
	return *b.StageNumber
}

// AvailableTo reports whether members of the given section can work on the badge.
func (b *BadgeDefinition) AvailableTo(section string) bool {
	return b.Section == "" || b.Section == SectionAll || section == "" || b.Section == section
}

// Validate checks the per-row catalog invariants. Uniqueness of stage numbers
// within a family spans rows and is checked at import.
func (b *BadgeDefinition) Validate() error {
	if !b.Category.Valid() {
		return fmt.Errorf("badge %q: unknown category %q", b.Code, b.Category)
	}
	if !b.CompletionRule.Valid() {
		return fmt.Errorf("badge %q: unknown completion rule %q", b.Code, b.CompletionRule)
	}
	if !b.CounterKind.Valid() {
		return fmt.Errorf("badge %q: unknown counter kind %q", b.Code, b.CounterKind)
	}
	if b.IsStaged() && b.StageNumber == nil {
		return fmt.Errorf("badge %q: %w", b.Code, ErrStageWithoutNumber)
	}
	if !b.IsStaged() && b.StageNumber != nil {
		return fmt.Errorf("badge %q: %w", b.Code, ErrNumberWithoutStage)
	}
	return nil
}

// Validate checks the module rule and its x_of_n count against the number of requirements.
func (m *BadgeModule) Validate(requirementCount int) error {
	if !m.CompletionRule.Valid() {
		return fmt.Errorf("module %q: unknown completion rule %q", m.Title, m.CompletionRule)
	}
	if m.CompletionRule == ModuleRuleXOfN && m.RequiredCount != nil {
		if *m.RequiredCount < 1 || *m.RequiredCount > requirementCount {
			return fmt.Errorf("module %q: required_count %d outside 1..%d", m.Title, *m.RequiredCount, requirementCount)
		}
	}
	return nil
}

// Required returns required_completions, never less than one.
func (r *BadgeRequirement) Required() int {
	if r.RequiredCompletions < 1 {
		return 1
	}
	return r.RequiredCompletions
}

func (b *BadgeDefinition) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CompletionRule == "" {
		b.CompletionRule = BadgeRuleAllModules
	}
	if b.CounterKind == "" {
		b.CounterKind = CounterNone
	}
	if b.Section == "" {
		b.Section = SectionAll
	}
	return nil
}

func (m *BadgeModule) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CompletionRule == "" {
		m.CompletionRule = ModuleRuleAllRequirements
	}
	return nil
}

func (r *BadgeRequirement) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.RequiredCompletions < 1 {
		r.RequiredCompletions = 1
	}
	return nil
}

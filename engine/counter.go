package engine

import (
	"time"

	"badge-progress-system/models"
)

// CounterSource tells whether a counter total came from the member's cached roll-up.
type CounterSource string

const (
	CounterFromCache     CounterSource = "cache"
	CounterFromRecompute CounterSource = "recomputed"
	CounterNotAssessable CounterSource = ""
)

// CounterTotal is a resolved running total. A nil Total means "cannot assess", never zero.
type CounterTotal struct {
	Total  *int          `json:"total"`
	Source CounterSource `json:"source,omitempty"`
}

// Thresholds is where a total sits on a family's ordered stages.
type Thresholds struct {
	EarnedStage *models.BadgeDefinition `json:"earned_stage,omitempty"`
	NextStage   *models.BadgeDefinition `json:"next_stage,omitempty"`
}

// CounterProgress ties a counter-driven family to its resolved total.
type CounterProgress struct {
	FamilyID string             `json:"family_id"`
	Kind     models.CounterKind `json:"kind"`
	CounterTotal
	Thresholds
}

// ResolveCounter prefers the cached total and otherwise sums the member's logs of the given kind.
// With neither a cached total nor any matching log the total cannot be assessed.
func ResolveCounter(memberID string, kind models.ActivityKind, logs []models.ActivityLog, cachedTotal *int) CounterTotal {
	if cachedTotal != nil {
		total := *cachedTotal
		return CounterTotal{Total: &total, Source: CounterFromCache}
	}

	sum, seen := 0, false
	for _, l := range logs {
		if l.Kind != kind || (memberID != "" && l.MemberID != memberID) {
			continue
		}
		seen = true
		if l.Count > 0 {
			sum += l.Count
		}
	}
	if !seen {
		return CounterTotal{Source: CounterNotAssessable}
	}
	return CounterTotal{Total: &sum, Source: CounterFromRecompute}
}

// TenureTotal returns whole years between joinedAt and now, nil when the start date is unknown.
func TenureTotal(joinedAt *time.Time, now time.Time) *int {
	if joinedAt == nil || joinedAt.IsZero() {
		return nil
	}
	start := joinedAt.In(now.Location())
	years := now.Year() - start.Year()
	if now.Month() < start.Month() || (now.Month() == start.Month() && now.Day() < start.Day()) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return &years
}

// MapThresholds reads each stage number as a numeric threshold and returns the highest stage at or
// below the total plus the first stage above it.
func MapThresholds(total *int, stages []models.BadgeDefinition) Thresholds {
	var res Thresholds
	if total == nil {
		return res
	}

	ordered := append([]models.BadgeDefinition(nil), stages...)
	sortStages(ordered)

	for i := range ordered {
		stage := ordered[i]
		if stage.StageNumber == nil {
			continue
		}
		if stage.Stage() <= *total {
			res.EarnedStage = &stage
			continue
		}
		res.NextStage = &stage
		break
	}
	return res
}

// ResolveFamilyCounter resolves the counter for a family using the member's cached roll-ups,
// activity logs and join date.
func ResolveFamilyCounter(familyID string, kind models.CounterKind, stages []models.BadgeDefinition, snap MemberSnapshot, now time.Time) CounterProgress {
	res := CounterProgress{FamilyID: familyID, Kind: kind}

	switch kind {
	case models.CounterNightsAway:
		res.CounterTotal = ResolveCounter(snap.Member.ID, models.ActivityNightsAway, snap.Activity, snap.Member.TotalNightsAway)
	case models.CounterHikesAway:
		res.CounterTotal = ResolveCounter(snap.Member.ID, models.ActivityHikesAway, snap.Activity, snap.Member.TotalHikesAway)
	case models.CounterTenure:
		if years := TenureTotal(snap.Member.JoinedAt, now); years != nil {
			res.CounterTotal = CounterTotal{Total: years, Source: CounterFromRecompute}
		}
	default:
		return res
	}

	res.Thresholds = MapThresholds(res.Total, stages)
	return res
}

// familyCounterKind returns the first explicit counter kind among a family's stages.
func familyCounterKind(stages []models.BadgeDefinition) models.CounterKind {
	for _, s := range stages {
		if s.CounterKind != "" && s.CounterKind != models.CounterNone {
			return s.CounterKind
		}
	}
	return models.CounterNone
}

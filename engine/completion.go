package engine

import (
	"math"

	"badge-progress-system/models"
)

// Source tells where a badge result came from.
type Source string

const (
	SourceRequirements Source = "requirements"
	SourceCache        Source = "cache"
)

// ModuleProgress is the evaluation of one module under its own completion rule.
type ModuleProgress struct {
	ModuleID   string                      `json:"module_id"`
	Title      string                      `json:"title,omitempty"`
	Rule       models.ModuleCompletionRule `json:"rule"`
	Completed  int                         `json:"completed"`
	Total      int                         `json:"total"`
	Percentage int                         `json:"percentage"`
	IsComplete bool                        `json:"is_complete"`
	Started    bool                        `json:"started"`
}

// BadgeProgress is the evaluation of one badge for one member.
type BadgeProgress struct {
	BadgeID     string               `json:"badge_id"`
	Name        string               `json:"name"`
	Category    models.BadgeCategory `json:"category"`
	FamilyID    string               `json:"family_id,omitempty"`
	StageNumber *int                 `json:"stage_number,omitempty"`
	Completed   int                  `json:"completed"`
	Total       int                  `json:"total"`
	Percentage  int                  `json:"percentage"`
	IsComplete  bool                 `json:"is_complete"`
	// Started: at least one requirement is done, or the cache holds a row for a module-less badge.
	Started bool             `json:"started"`
	Source  Source           `json:"source"`
	Modules []ModuleProgress `json:"modules,omitempty"`
}

// EvaluateModule rolls a module's requirements up under the module's rule.
// Requirements that do not belong to the module are ignored.
func EvaluateModule(module models.BadgeModule, requirements []models.BadgeRequirement, ledger Ledger) ModuleProgress {
	res := ModuleProgress{
		ModuleID: module.ID,
		Title:    module.Title,
		Rule:     module.CompletionRule,
	}

	var reqs []models.BadgeRequirement
	for _, r := range requirements {
		if r.ModuleID == module.ID {
			reqs = append(reqs, r)
		}
	}

	done := 0
	for _, r := range reqs {
		if ledger.done(r) {
			done++
		}
	}
	res.Started = done > 0

	switch module.CompletionRule {
	case models.ModuleRuleXOfN:
		res.Total = len(reqs)
		if module.RequiredCount != nil && *module.RequiredCount > 0 {
			res.Total = *module.RequiredCount
		}
		res.Completed = min(done, res.Total)
	default: // all_requirements
		for _, r := range reqs {
			res.Total += r.Required()
			res.Completed += ledger.count(r)
		}
	}

	res.IsComplete = res.Total > 0 && res.Completed >= res.Total
	res.Percentage = percentage(res.Completed, res.Total, res.IsComplete)
	return res
}

// EvaluateBadge rolls a badge's modules up under the badge's rule. Badges without modules fall
// back to the cached status, the only case where the cache is authoritative.
func EvaluateBadge(
	badge models.BadgeDefinition,
	modules []models.BadgeModule,
	requirementsByModule map[string][]models.BadgeRequirement,
	ledger Ledger,
	cached *models.MemberBadgeProgress,
) BadgeProgress {
	res := BadgeProgress{
		BadgeID:     badge.ID,
		Name:        badge.Name,
		Category:    badge.Category,
		FamilyID:    badge.FamilyID(),
		StageNumber: badge.StageNumber,
		Source:      SourceRequirements,
	}

	var own []models.BadgeModule
	for _, m := range modules {
		if m.BadgeID == badge.ID {
			own = append(own, m)
		}
	}

	if len(own) == 0 {
		res.Source = SourceCache
		if cached != nil {
			res.Started = true
			res.IsComplete = cached.Status == models.StatusCompleted
		}
		if res.IsComplete {
			res.Percentage = 100
		}
		return res
	}

	res.Modules = make([]ModuleProgress, 0, len(own))
	for _, m := range own {
		mp := EvaluateModule(m, requirementsByModule[m.ID], ledger)
		res.Modules = append(res.Modules, mp)
		res.Started = res.Started || mp.Started
	}

	switch badge.CompletionRule {
	case models.BadgeRuleOneModule:
		best := res.Modules[0]
		for _, mp := range res.Modules[1:] {
			if betterModule(mp, best) {
				best = mp
			}
		}
		res.Completed, res.Total = best.Completed, best.Total
		res.IsComplete = best.IsComplete
		res.Percentage = best.Percentage
		if res.IsComplete {
			res.Percentage = 100
		}
	default: // all_modules
		res.IsComplete = true
		for _, mp := range res.Modules {
			res.Completed += mp.Completed
			res.Total += mp.Total
			res.IsComplete = res.IsComplete && mp.IsComplete
		}
		res.Percentage = percentage(res.Completed, res.Total, res.IsComplete)
	}
	return res
}

// betterModule prefers complete modules, then the higher percentage; ties keep the earlier module.
func betterModule(candidate, best ModuleProgress) bool {
	if candidate.IsComplete != best.IsComplete {
		return candidate.IsComplete
	}
	return candidate.Percentage > best.Percentage
}

// percentage is round(100*completed/total), 0 for an empty tree, and always 100 when complete.
func percentage(completed, total int, complete bool) int {
	if complete {
		return 100
	}
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

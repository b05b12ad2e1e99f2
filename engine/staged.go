package engine

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"badge-progress-system/models"
)

// FamilyProgress aggregates the stages of one staged family.
type FamilyProgress struct {
	FamilyID   string               `json:"family_id"`
	Name       string               `json:"name"`
	Category   models.BadgeCategory `json:"category"`
	Stages     []BadgeProgress      `json:"stages"`
	Completed  int                  `json:"completed"`
	Total      int                  `json:"total"`
	Percentage int                  `json:"percentage"`
	Started    bool                 `json:"started"`
	// HighestCompletedStage is the completed stage with the greatest stage number,
	// whether or not the stages below it are complete.
	HighestCompletedStage *models.BadgeDefinition `json:"highest_completed_stage,omitempty"`
	// Contiguous is false when some stage below HighestCompletedStage is not complete.
	Contiguous bool `json:"contiguous"`
}

// ResolveFamily evaluates a family from per-stage results. Stages belonging to another family are
// ignored; a stage without a result counts as not started.
func ResolveFamily(familyID string, stages []models.BadgeDefinition, progressByStage map[string]BadgeProgress) FamilyProgress {
	own := make([]models.BadgeDefinition, 0, len(stages))
	for _, s := range stages {
		if s.FamilyID() == familyID {
			own = append(own, s)
		}
	}
	sortStages(own)

	res := FamilyProgress{
		FamilyID:   familyID,
		Stages:     make([]BadgeProgress, 0, len(own)),
		Contiguous: true,
	}
	if len(own) > 0 {
		res.Name = familyName(familyID, own)
		res.Category = own[0].Category
	}

	highest := -1
	for i, s := range own {
		bp, ok := progressByStage[s.ID]
		if !ok {
			bp = BadgeProgress{
				BadgeID:     s.ID,
				Name:        s.Name,
				Category:    s.Category,
				FamilyID:    familyID,
				StageNumber: s.StageNumber,
				Source:      SourceRequirements,
			}
		}
		res.Stages = append(res.Stages, bp)
		res.Completed += bp.Completed
		res.Total += bp.Total
		res.Started = res.Started || bp.Started || bp.IsComplete
		if bp.IsComplete {
			highest = i
		}
	}

	if highest >= 0 {
		stage := own[highest]
		res.HighestCompletedStage = &stage
		for _, bp := range res.Stages[:highest] {
			if !bp.IsComplete {
				res.Contiguous = false
				break
			}
		}
	}

	res.Percentage = percentage(res.Completed, res.Total, res.Total > 0 && res.Completed >= res.Total)
	return res
}

// familyName uses the catalog's family name and falls back to a title-cased family ID.
func familyName(familyID string, stages []models.BadgeDefinition) string {
	for _, s := range stages {
		if s.FamilyName != "" {
			return s.FamilyName
		}
	}
	return cases.Title(language.English).String(strings.ReplaceAll(familyID, "-", " "))
}

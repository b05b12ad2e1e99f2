package engine

import (
	"fmt"

	"badge-progress-system/models"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

// catalogBuilder assembles small catalogs for tests with predictable IDs.
type catalogBuilder struct {
	c Catalog
}

func (b *catalogBuilder) badge(id, name string, cat models.BadgeCategory, rule models.BadgeCompletionRule) *catalogBuilder {
	b.c.Badges = append(b.c.Badges, models.BadgeDefinition{
		ID:             id,
		Code:           id,
		Name:           name,
		Category:       cat,
		CompletionRule: rule,
		Section:        models.SectionAll,
		CounterKind:    models.CounterNone,
		Active:         true,
	})
	return b
}

func (b *catalogBuilder) stage(id, family string, n int, kind models.CounterKind) *catalogBuilder {
	b.c.Badges = append(b.c.Badges, models.BadgeDefinition{
		ID:             id,
		Code:           id,
		Name:           fmt.Sprintf("%s %d", family, n),
		Category:       models.CategoryStaged,
		CompletionRule: models.BadgeRuleAllModules,
		Section:        models.SectionAll,
		BadgeFamilyID:  strPtr(family),
		StageNumber:    intPtr(n),
		CounterKind:    kind,
		Active:         true,
	})
	return b
}

// module adds a module with n requirements named <moduleID>-r<i>, each needing `required` completions.
func (b *catalogBuilder) module(badgeID, moduleID string, order int, rule models.ModuleCompletionRule, requiredCount *int, n, required int) *catalogBuilder {
	b.c.Modules = append(b.c.Modules, models.BadgeModule{
		ID:             moduleID,
		BadgeID:        badgeID,
		Title:          moduleID,
		Order:          order,
		CompletionRule: rule,
		RequiredCount:  requiredCount,
	})
	for i := 1; i <= n; i++ {
		b.c.Requirements = append(b.c.Requirements, models.BadgeRequirement{
			ID:                  fmt.Sprintf("%s-r%d", moduleID, i),
			ModuleID:            moduleID,
			Order:               i,
			Text:                fmt.Sprintf("requirement %d", i),
			RequiredCompletions: required,
		})
	}
	return b
}

func (b *catalogBuilder) build() Catalog { return b.c }

// done records count completions of requirement reqID, setting the flag the way ingestion would.
func done(memberID, moduleID, reqID string, count, required int) models.MemberRequirementProgress {
	return models.MemberRequirementProgress{
		ID:              memberID + "/" + reqID,
		MemberID:        memberID,
		RequirementID:   reqID,
		ModuleID:        moduleID,
		Completed:       count >= required,
		CompletionCount: count,
	}
}

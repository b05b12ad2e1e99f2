package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badge-progress-system/models"
)

const member = "m-1"

func evaluate(t *testing.T, c Catalog, badgeID string, records []models.MemberRequirementProgress, cached *models.MemberBadgeProgress) BadgeProgress {
	t.Helper()
	idx := NewIndex(c)
	ledger, _ := BuildLedger(member, records, idx)
	badge, ok := idx.Badge(badgeID)
	require.True(t, ok)
	return EvaluateBadge(badge, idx.Modules(badgeID), idx.RequirementsByModule(badgeID), ledger, cached)
}

func TestEvaluateBadge_AllModulesSumsAcrossModules(t *testing.T) {
	c := (&catalogBuilder{}).
		badge("b", "Astronomer", models.CategoryActivity, models.BadgeRuleAllModules).
		module("b", "m1", 1, models.ModuleRuleAllRequirements, nil, 2, 1).
		module("b", "m2", 2, models.ModuleRuleAllRequirements, nil, 3, 1).
		build()
	records := []models.MemberRequirementProgress{
		done(member, "m1", "m1-r1", 1, 1),
		done(member, "m1", "m1-r2", 1, 1),
		done(member, "m2", "m2-r1", 1, 1),
	}

	bp := evaluate(t, c, "b", records, nil)

	assert.Equal(t, 3, bp.Completed)
	assert.Equal(t, 5, bp.Total)
	assert.Equal(t, 60, bp.Percentage)
	assert.False(t, bp.IsComplete)
	assert.True(t, bp.Started)
	require.Len(t, bp.Modules, 2)
	assert.True(t, bp.Modules[0].IsComplete)
	assert.False(t, bp.Modules[1].IsComplete)
}

func TestEvaluateBadge_OneModuleBestModuleWins(t *testing.T) {
	c := (&catalogBuilder{}).
		badge("b", "Hobbies", models.CategoryActivity, models.BadgeRuleOneModule).
		module("b", "m1", 1, models.ModuleRuleAllRequirements, nil, 2, 1).
		module("b", "m2", 2, models.ModuleRuleAllRequirements, nil, 3, 1).
		build()
	records := []models.MemberRequirementProgress{
		done(member, "m1", "m1-r1", 1, 1),
		done(member, "m1", "m1-r2", 1, 1),
		done(member, "m2", "m2-r1", 1, 1),
	}

	bp := evaluate(t, c, "b", records, nil)

	assert.True(t, bp.IsComplete)
	assert.Equal(t, 100, bp.Percentage)
	assert.Equal(t, 2, bp.Completed)
	assert.Equal(t, 2, bp.Total)
}

func TestEvaluateBadge_OneModuleReportsMaxPercentage(t *testing.T) {
	c := (&catalogBuilder{}).
		badge("b", "Hobbies", models.CategoryActivity, models.BadgeRuleOneModule).
		module("b", "m1", 1, models.ModuleRuleAllRequirements, nil, 5, 1).
		module("b", "m2", 2, models.ModuleRuleAllRequirements, nil, 4, 1).
		build()
	records := []models.MemberRequirementProgress{
		done(member, "m1", "m1-r1", 1, 1),
		done(member, "m2", "m2-r1", 1, 1),
		done(member, "m2", "m2-r2", 1, 1),
		done(member, "m2", "m2-r3", 1, 1),
	}

	bp := evaluate(t, c, "b", records, nil)

	assert.False(t, bp.IsComplete)
	assert.Equal(t, 75, bp.Percentage)
	assert.Equal(t, 3, bp.Completed)
	assert.Equal(t, 4, bp.Total)
}

func TestEvaluateModule_XOfN(t *testing.T) {
	c := (&catalogBuilder{}).
		badge("b", "Skills", models.CategoryActivity, models.BadgeRuleAllModules).
		module("b", "m1", 1, models.ModuleRuleXOfN, intPtr(3), 5, 1).
		build()
	idx := NewIndex(c)

	tests := []struct {
		name      string
		completed []string
		want      ModuleProgress
	}{
		{
			name:      "three of five satisfies required count",
			completed: []string{"m1-r1", "m1-r3", "m1-r5"},
			want:      ModuleProgress{Completed: 3, Total: 3, Percentage: 100, IsComplete: true, Started: true},
		},
		{
			name:      "extra completions are capped",
			completed: []string{"m1-r1", "m1-r2", "m1-r3", "m1-r4"},
			want:      ModuleProgress{Completed: 3, Total: 3, Percentage: 100, IsComplete: true, Started: true},
		},
		{
			name:      "partial",
			completed: []string{"m1-r2"},
			want:      ModuleProgress{Completed: 1, Total: 3, Percentage: 33, Started: true},
		},
		{
			name: "nothing done",
			want: ModuleProgress{Completed: 0, Total: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var records []models.MemberRequirementProgress
			for _, id := range tt.completed {
				records = append(records, done(member, "m1", id, 1, 1))
			}
			ledger, _ := BuildLedger(member, records, idx)

			got := EvaluateModule(idx.Modules("b")[0], idx.Requirements("m1"), ledger)

			assert.Equal(t, tt.want.Completed, got.Completed)
			assert.Equal(t, tt.want.Total, got.Total)
			assert.Equal(t, tt.want.Percentage, got.Percentage)
			assert.Equal(t, tt.want.IsComplete, got.IsComplete)
			assert.Equal(t, tt.want.Started, got.Started)
		})
	}
}

func TestEvaluateModule_XOfNWithoutRequiredCountNeedsAll(t *testing.T) {
	c := (&catalogBuilder{}).
		badge("b", "Skills", models.CategoryActivity, models.BadgeRuleAllModules).
		module("b", "m1", 1, models.ModuleRuleXOfN, nil, 2, 1).
		build()
	idx := NewIndex(c)
	ledger, _ := BuildLedger(member, []models.MemberRequirementProgress{done(member, "m1", "m1-r1", 1, 1)}, idx)

	got := EvaluateModule(idx.Modules("b")[0], idx.Requirements("m1"), ledger)

	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.Completed)
	assert.False(t, got.IsComplete)
}

func TestEvaluateModule_EmptyModuleIsNeverComplete(t *testing.T) {
	for _, rule := range []models.ModuleCompletionRule{models.ModuleRuleAllRequirements, models.ModuleRuleXOfN} {
		t.Run(string(rule), func(t *testing.T) {
			module := models.BadgeModule{ID: "empty", BadgeID: "b", CompletionRule: rule}

			got := EvaluateModule(module, nil, Ledger{})

			assert.Equal(t, 0, got.Total)
			assert.Equal(t, 0, got.Completed)
			assert.Equal(t, 0, got.Percentage)
			assert.False(t, got.IsComplete)
		})
	}
}

func TestEvaluateModule_RepeatedRequirementsCountPartially(t *testing.T) {
	c := (&catalogBuilder{}).
		badge("b", "Attendance", models.CategoryCore, models.BadgeRuleAllModules).
		module("b", "m1", 1, models.ModuleRuleAllRequirements, nil, 2, 3).
		build()
	idx := NewIndex(c)
	ledger, _ := BuildLedger(member, []models.MemberRequirementProgress{
		done(member, "m1", "m1-r1", 3, 3),
		done(member, "m1", "m1-r2", 2, 3),
	}, idx)

	got := EvaluateModule(idx.Modules("b")[0], idx.Requirements("m1"), ledger)

	assert.Equal(t, 5, got.Completed)
	assert.Equal(t, 6, got.Total)
	assert.Equal(t, 83, got.Percentage)
	assert.False(t, got.IsComplete)
}

func TestEvaluateModule_NearlyDoneRoundsUp(t *testing.T) {
	c := (&catalogBuilder{}).
		badge("b", "Long Haul", models.CategoryChallenge, models.BadgeRuleAllModules).
		module("b", "m1", 1, models.ModuleRuleAllRequirements, nil, 1, 200).
		build()
	idx := NewIndex(c)
	ledger, _ := BuildLedger(member, []models.MemberRequirementProgress{
		done(member, "m1", "m1-r1", 199, 200),
	}, idx)

	got := EvaluateModule(idx.Modules("b")[0], idx.Requirements("m1"), ledger)

	assert.Equal(t, 199, got.Completed)
	assert.Equal(t, 200, got.Total)
	assert.Equal(t, 100, got.Percentage)
	assert.False(t, got.IsComplete)
}

func TestEvaluateBadge_AllModulesWithEmptyModule(t *testing.T) {
	c := (&catalogBuilder{}).
		badge("b", "Explorer", models.CategoryActivity, models.BadgeRuleAllModules).
		module("b", "m1", 1, models.ModuleRuleAllRequirements, nil, 1, 1).
		module("b", "m2", 2, models.ModuleRuleAllRequirements, nil, 0, 1).
		build()

	bp := evaluate(t, c, "b", []models.MemberRequirementProgress{done(member, "m1", "m1-r1", 1, 1)}, nil)

	assert.Equal(t, 1, bp.Completed)
	assert.Equal(t, 1, bp.Total)
	assert.Equal(t, 100, bp.Percentage)
	assert.False(t, bp.IsComplete, "an empty module never completes")
}

func TestEvaluateModule_IgnoresForeignRequirements(t *testing.T) {
	module := models.BadgeModule{ID: "m1", BadgeID: "b", CompletionRule: models.ModuleRuleAllRequirements}
	reqs := []models.BadgeRequirement{
		{ID: "r1", ModuleID: "m1", RequiredCompletions: 1},
		{ID: "stray", ModuleID: "gone", RequiredCompletions: 1},
	}
	ledger := Ledger{"r1": done(member, "m1", "r1", 1, 1)}

	got := EvaluateModule(module, reqs, ledger)

	assert.Equal(t, 1, got.Total)
	assert.True(t, got.IsComplete)
}

func TestEvaluateBadge_ModuleLessFallsBackToCache(t *testing.T) {
	c := (&catalogBuilder{}).
		badge("b", "Chief Scout's Award", models.CategorySpecial, models.BadgeRuleAllModules).
		build()

	t.Run("completed cache", func(t *testing.T) {
		bp := evaluate(t, c, "b", nil, &models.MemberBadgeProgress{MemberID: member, BadgeID: "b", Status: models.StatusCompleted})
		assert.True(t, bp.IsComplete)
		assert.Equal(t, 100, bp.Percentage)
		assert.Equal(t, SourceCache, bp.Source)
	})

	t.Run("in progress cache", func(t *testing.T) {
		bp := evaluate(t, c, "b", nil, &models.MemberBadgeProgress{MemberID: member, BadgeID: "b", Status: models.StatusInProgress})
		assert.False(t, bp.IsComplete)
		assert.True(t, bp.Started)
		assert.Equal(t, 0, bp.Percentage)
	})

	t.Run("no cache", func(t *testing.T) {
		bp := evaluate(t, c, "b", nil, nil)
		assert.False(t, bp.IsComplete)
		assert.False(t, bp.Started)
		assert.Equal(t, 0, bp.Total)
	})
}

func TestEvaluateBadge_CacheIgnoredWhenRequirementTreeExists(t *testing.T) {
	c := (&catalogBuilder{}).
		badge("b", "Cooking", models.CategoryActivity, models.BadgeRuleAllModules).
		module("b", "m1", 1, models.ModuleRuleAllRequirements, nil, 2, 1).
		build()

	bp := evaluate(t, c, "b", nil, &models.MemberBadgeProgress{MemberID: member, BadgeID: "b", Status: models.StatusCompleted})

	assert.False(t, bp.IsComplete)
	assert.Equal(t, SourceRequirements, bp.Source)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		completed, total int
		complete         bool
		want             int
	}{
		{0, 0, false, 0},
		{3, 5, false, 60},
		{1, 3, false, 33},
		{2, 3, false, 67},
		{199, 200, false, 100},
		{1, 200, false, 1},
		{1, 1, false, 100},
		{5, 5, true, 100},
		{-1, 5, false, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, percentage(tt.completed, tt.total, tt.complete), "%d/%d", tt.completed, tt.total)
	}
}

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badge-progress-system/models"
)

var reportNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func reportCatalog() Catalog {
	b := (&catalogBuilder{}).
		badge("chal", "Outdoors Challenge", models.CategoryChallenge, models.BadgeRuleAllModules).
		module("chal", "chal-m", 1, models.ModuleRuleAllRequirements, nil, 2, 1).
		badge("cook", "Cook", models.CategoryActivity, models.BadgeRuleOneModule).
		module("cook", "cook-m1", 1, models.ModuleRuleAllRequirements, nil, 2, 1).
		module("cook", "cook-m2", 2, models.ModuleRuleAllRequirements, nil, 1, 1).
		badge("astro", "Astronomer", models.CategoryActivity, models.BadgeRuleAllModules).
		module("astro", "astro-m", 1, models.ModuleRuleAllRequirements, nil, 1, 1).
		badge("csa", "Chief Scout's Gold Award", models.CategorySpecial, models.BadgeRuleAllModules).
		stage("n-1", "nights", 1, models.CounterNightsAway).
		stage("n-5", "nights", 5, models.CounterNightsAway).
		module("n-1", "n1-m", 1, models.ModuleRuleAllRequirements, nil, 1, 1).
		module("n-5", "n5-m", 1, models.ModuleRuleAllRequirements, nil, 1, 1)
	c := b.build()
	c.Badges[3].IsChiefScoutAward = true
	c.Badges = append(c.Badges,
		models.BadgeDefinition{ID: "retired", Name: "Retired", Category: models.CategoryActivity, Section: models.SectionAll},
		models.BadgeDefinition{ID: "beavers-only", Name: "Beavers", Category: models.CategoryCore, Section: "beavers", Active: true},
	)
	return c
}

func reportSnapshot() MemberSnapshot {
	return MemberSnapshot{
		Member: models.Member{ID: member, Section: "cubs", TotalNightsAway: intPtr(6)},
		Requirements: []models.MemberRequirementProgress{
			done(member, "cook-m2", "cook-m2-r1", 1, 1),
			done(member, "astro-m", "astro-m-r1", 0, 1),
			done(member, "n5-m", "n5-m-r1", 1, 1),
		},
		BadgeCache: []models.MemberBadgeProgress{
			{ID: "cache-astro", MemberID: member, BadgeID: "astro", Status: models.StatusCompleted},
			{ID: "cache-csa", MemberID: member, BadgeID: "csa", Status: models.StatusCompleted},
		},
	}
}

func TestRecompute(t *testing.T) {
	rep := Recompute(reportCatalog(), reportSnapshot(), reportNow)

	assert.Equal(t, member, rep.MemberID)
	assert.Equal(t, reportNow, rep.GeneratedAt)

	t.Run("inactive and other-section badges are skipped", func(t *testing.T) {
		_, ok := rep.Badge("retired")
		assert.False(t, ok)
		_, ok = rep.Badge("beavers-only")
		assert.False(t, ok)
		assert.Len(t, rep.Badges, 6)
	})

	t.Run("badge records", func(t *testing.T) {
		cook, ok := rep.Badge("cook")
		require.True(t, ok)
		assert.True(t, cook.IsComplete)
		assert.Equal(t, 100, cook.Percentage)

		csa, ok := rep.Badge("csa")
		require.True(t, ok)
		assert.True(t, csa.IsComplete)
		assert.Equal(t, SourceCache, csa.Source)

		astro, _ := rep.Badge("astro")
		assert.False(t, astro.IsComplete)
	})

	t.Run("family resolution", func(t *testing.T) {
		fp, ok := rep.Family("nights")
		require.True(t, ok)
		require.NotNil(t, fp.HighestCompletedStage)
		assert.Equal(t, "n-5", fp.HighestCompletedStage.ID)
		assert.False(t, fp.Contiguous)
	})

	t.Run("counters", func(t *testing.T) {
		require.Len(t, rep.Counters, 1)
		ctr := rep.Counters[0]
		assert.Equal(t, "nights", ctr.FamilyID)
		require.NotNil(t, ctr.Total)
		assert.Equal(t, 6, *ctr.Total)
		assert.Equal(t, CounterFromCache, ctr.Source)
		assert.Equal(t, "n-5", ctr.EarnedStage.ID)
		assert.Nil(t, ctr.NextStage)
	})

	t.Run("buckets", func(t *testing.T) {
		assert.Equal(t, []string{"cook", "csa", "nights"}, ids(rep.Buckets.Earned))
		assert.Equal(t, []string{"chal"}, ids(rep.Buckets.InProgress))
		assert.Equal(t, []string{"astro"}, ids(rep.Buckets.Flatten()))
	})

	t.Run("cache divergence is a warning", func(t *testing.T) {
		var divergent []string
		for _, w := range rep.Warnings {
			if w.Kind == WarnCacheDivergence {
				divergent = append(divergent, w.BadgeID)
			}
		}
		assert.Equal(t, []string{"astro"}, divergent)
	})

	t.Run("cache rows", func(t *testing.T) {
		rows := make(map[string]models.MemberBadgeProgress)
		for _, row := range rep.Cache {
			rows[row.BadgeID] = row
		}
		assert.Len(t, rows, 3)
		assert.Equal(t, models.StatusCompleted, rows["cook"].Status)
		assert.Equal(t, models.StatusCompleted, rows["n-5"].Status)
		assert.Equal(t, models.StatusInProgress, rows["astro"].Status)
		_, hasCSA := rows["csa"]
		assert.False(t, hasCSA, "module-less badges keep their stored status")
	})
}

func TestRecompute_Idempotent(t *testing.T) {
	c, snap := reportCatalog(), reportSnapshot()
	ev := NewEvaluator(c)

	first := ev.Recompute(snap, reportNow)
	second := ev.Recompute(snap, reportNow)

	assert.Equal(t, first, second)
	assert.Equal(t, first, Recompute(c, snap, reportNow))
}

func TestRecompute_RebuiltCacheHasNoDivergence(t *testing.T) {
	c, snap := reportCatalog(), reportSnapshot()
	first := Recompute(c, snap, reportNow)

	snap.BadgeCache = append(first.Cache, snap.BadgeCache[1])
	second := Recompute(c, snap, reportNow)

	for _, w := range second.Warnings {
		assert.NotEqual(t, WarnCacheDivergence, w.Kind, w.BadgeID)
	}
}

func TestRecompute_EmptySnapshot(t *testing.T) {
	rep := Recompute(Catalog{}, MemberSnapshot{Member: models.Member{ID: member}}, reportNow)

	assert.Empty(t, rep.Badges)
	assert.Empty(t, rep.Families)
	assert.Empty(t, rep.Buckets.Earned)
	assert.Empty(t, rep.Warnings)
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badge-progress-system/utils"
)

func TestRosterReport(t *testing.T) {
	f := newBadgeFixture(t)
	seedMember(t, f.db, "Sam", "Scout", "scouts")

	svc := NewRosterService(f.db, utils.NopLogger(), 2)
	svc.Now = fixedClock()

	entries, err := svc.RosterReport(t.Context(), "cubs")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Ordered by surname.
	assert.Equal(t, "Bob Baker", entries[0].Member.Name)
	assert.Empty(t, entries[0].Earned)
	assert.Empty(t, entries[0].InProgress)

	ada := entries[1]
	assert.Equal(t, f.ada.ID, ada.Member.ID)
	require.Len(t, ada.Earned, 2)
	require.Len(t, ada.InProgress, 1)
	assert.Equal(t, "Astronomer", ada.InProgress[0].Name)
	require.Len(t, ada.Counters, 1)
	assert.Equal(t, "nights-away-5", ada.Counters[0].EarnedStage.Code)
	assert.Zero(t, ada.Warnings)
}

func TestRosterReport_EmptySection(t *testing.T) {
	f := newBadgeFixture(t)
	svc := NewRosterService(f.db, utils.NopLogger(), 0)

	entries, err := svc.RosterReport(t.Context(), "explorers")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Positive(t, svc.Concurrency)
}

package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"badge-progress-system/models"
	"badge-progress-system/utils"
)

var testNow = time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC)

// newTestDB opens an isolated in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Member{},
		&models.BadgeDefinition{},
		&models.BadgeModule{},
		&models.BadgeRequirement{},
		&models.MemberRequirementProgress{},
		&models.MemberBadgeProgress{},
		&models.MemberBadgeAward{},
		&models.ActivityLog{},
	))
	return db
}

const testCatalogYAML = `
badges:
  - name: Cook
    category: activity
    completion_rule: one_module
    modules:
      - title: Camp cooking
        requirements:
          - text: Cook a meal outdoors
          - text: Plan a menu
      - title: Baking
        requirements:
          - text: Bake bread
  - code: astronomer
    name: Astronomer
    category: activity
    modules:
      - title: Night sky
        completion_rule: x_of_n
        required_count: 2
        requirements:
          - text: Find the pole star
          - text: Name three constellations
          - text: Observe the moon
  - name: Attendance
    category: core
    section: cubs
    modules:
      - title: Meetings
        requirements:
          - text: Attend meetings
            required_completions: 3
  - name: Nights Away 1
    category: staged
    family: Nights Away
    stage: 1
    counter_kind: nights_away
  - name: Nights Away 5
    category: staged
    family: Nights Away
    stage: 5
    counter_kind: nights_away
`

// seedCatalog imports testCatalogYAML and returns the catalog service.
func seedCatalog(t *testing.T, db *gorm.DB) *CatalogService {
	t.Helper()
	svc := NewCatalogService(db, utils.NopLogger(), nil)
	_, err := svc.ImportCatalog(t.Context(), []byte(testCatalogYAML))
	require.NoError(t, err)
	return svc
}

func seedMember(t *testing.T, db *gorm.DB, first, last, section string) models.Member {
	t.Helper()
	m := models.Member{
		ExternalMemberID: uuid.NewString(),
		FirstName:        first,
		LastName:         last,
		Section:          section,
	}
	require.NoError(t, db.Create(&m).Error)
	return m
}

func badgeByCode(t *testing.T, db *gorm.DB, code string) models.BadgeDefinition {
	t.Helper()
	var b models.BadgeDefinition
	require.NoError(t, db.Where("code = ?", code).First(&b).Error)
	return b
}

// requirementsOf returns a badge's requirements in module then requirement order.
func requirementsOf(t *testing.T, db *gorm.DB, code string) []models.BadgeRequirement {
	t.Helper()
	b := badgeByCode(t, db, code)
	var reqs []models.BadgeRequirement
	require.NoError(t, db.
		Joins("JOIN badge_modules ON badge_modules.id = badge_requirements.module_id").
		Where("badge_modules.badge_id = ?", b.ID).
		Order("badge_modules.sort_order, badge_requirements.sort_order").
		Find(&reqs).Error)
	return reqs
}

func fixedClock() func() time.Time {
	return func() time.Time { return testNow }
}

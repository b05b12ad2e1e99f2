package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"badge-progress-system/engine"
	"badge-progress-system/models"
	"badge-progress-system/utils"
)

type BadgeService struct {
	DB  *gorm.DB
	Log *utils.Logger
	Now func() time.Time
}

func NewBadgeService(db *gorm.DB, log *utils.Logger) *BadgeService {
	return &BadgeService{DB: db, Log: log, Now: time.Now}
}

// MemberReport evaluates one member against the catalog, reading both from a single snapshot.
func (s *BadgeService) MemberReport(ctx context.Context, memberID string) (*engine.Report, error) {
	var rep engine.Report
	err := readSnapshot(ctx, s.DB, func(tx *gorm.DB) error {
		var member models.Member
		if err := tx.Where("id = ?", memberID).First(&member).Error; err != nil {
			return notFound(err, ErrMemberNotFound, memberID)
		}
		catalog, err := loadCatalog(tx)
		if err != nil {
			return err
		}
		snaps, err := loadMemberSnapshots(tx, []models.Member{member})
		if err != nil {
			return err
		}
		rep = engine.Recompute(catalog, *snaps[member.ID], s.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logWarnings(rep)
	return &rep, nil
}

func (s *BadgeService) logWarnings(rep engine.Report) {
	for _, w := range rep.Warnings {
		s.Log.Warn("badge data warning",
			"kind", w.Kind, "member_id", rep.MemberID, "badge_id", w.BadgeID,
			"module_id", w.ModuleID, "requirement_id", w.RequirementID, "detail", w.Detail)
	}
}

// RebuildCache recomputes a member and writes the derived rows into member_badge_progresses.
func (s *BadgeService) RebuildCache(ctx context.Context, memberID string) (int, error) {
	rep, err := s.MemberReport(ctx, memberID)
	if err != nil {
		return 0, err
	}
	return s.storeCache(ctx, rep.Cache)
}

func (s *BadgeService) storeCache(ctx context.Context, rows []models.MemberBadgeProgress) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}, {Name: "badge_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "percentage", "recomputed_at", "updated_at"}),
	}).Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("store badge cache: %w", res.Error)
	}
	return len(rows), nil
}

// RebuildStats summarises a full cache rebuild.
type RebuildStats struct {
	Members int `json:"members"`
	Rows    int `json:"rows"`
	Failed  int `json:"failed"`
}

// RebuildAllCaches walks every member in batches and rebuilds their cache rows. A failing member
// is logged and skipped.
func (s *BadgeService) RebuildAllCaches(ctx context.Context) (RebuildStats, error) {
	var stats RebuildStats
	var batch []models.Member
	res := s.DB.WithContext(ctx).Select("id").FindInBatches(&batch, 200, func(tx *gorm.DB, _ int) error {
		for _, m := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := s.RebuildCache(ctx, m.ID)
			stats.Members++
			if err != nil {
				stats.Failed++
				s.Log.Error("cache rebuild failed", "member_id", m.ID, "error", err)
				continue
			}
			stats.Rows += n
		}
		return nil
	})
	if res.Error != nil {
		return stats, fmt.Errorf("rebuild caches: %w", res.Error)
	}
	s.Log.Info("badge caches rebuilt", "members", stats.Members, "rows", stats.Rows, "failed", stats.Failed)
	return stats, nil
}

// SyncPendingAwards records a pending award for every badge the member has completed.
// Existing awards, pending or awarded, are left alone.
func (s *BadgeService) SyncPendingAwards(ctx context.Context, memberID string) (int, error) {
	rep, err := s.MemberReport(ctx, memberID)
	if err != nil {
		return 0, err
	}
	earned := rep.Earned()
	if len(earned) == 0 {
		return 0, nil
	}

	awards := make([]models.MemberBadgeAward, 0, len(earned))
	for _, badgeID := range earned {
		awards = append(awards, models.MemberBadgeAward{
			MemberID:    memberID,
			BadgeID:     badgeID,
			AwardStatus: models.AwardPending,
		})
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}, {Name: "badge_id"}},
		DoNothing: true,
	}).Create(&awards)
	if res.Error != nil {
		return 0, fmt.Errorf("sync pending awards: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.Log.Info("pending awards created", "member_id", memberID, "count", res.RowsAffected)
	}
	return int(res.RowsAffected), nil
}

// AwardResult splits the members of an award-to-attendees call by outcome.
type AwardResult struct {
	Awarded        []string `json:"awarded"`
	AlreadyAwarded []string `json:"already_awarded"`
	UnknownMembers []string `json:"unknown_members"`
}

// AwardToAttendees moves (member, badge) awards to "awarded". Each pair is one upsert whose update
// only applies while the stored award is pending, so overlapping calls never write a pair twice.
func (s *BadgeService) AwardToAttendees(ctx context.Context, badgeID string, memberIDs []string, awardedBy string) (*AwardResult, error) {
	db := s.DB.WithContext(ctx)

	var badge models.BadgeDefinition
	if err := db.Where("id = ?", badgeID).First(&badge).Error; err != nil {
		return nil, notFound(err, ErrBadgeNotFound, badgeID)
	}

	var known []string
	if err := db.Model(&models.Member{}).Where("id IN ?", memberIDs).Pluck("id", &known).Error; err != nil {
		return nil, fmt.Errorf("load attendees: %w", err)
	}
	isKnown := make(map[string]bool, len(known))
	for _, id := range known {
		isKnown[id] = true
	}

	result := &AwardResult{}
	seen := make(map[string]bool, len(memberIDs))
	now := s.Now()
	for _, memberID := range memberIDs {
		if seen[memberID] {
			continue
		}
		seen[memberID] = true
		if !isKnown[memberID] {
			result.UnknownMembers = append(result.UnknownMembers, memberID)
			continue
		}

		award := models.MemberBadgeAward{
			MemberID:    memberID,
			BadgeID:     badgeID,
			AwardStatus: models.AwardAwarded,
			AwardedAt:   &now,
			AwardedBy:   awardedBy,
		}
		res := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "member_id"}, {Name: "badge_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"award_status": models.AwardAwarded,
				"awarded_at":   now,
				"awarded_by":   awardedBy,
				"updated_at":   now,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: "member_badge_awards", Name: "award_status"}, Value: models.AwardPending},
			}},
		}).Create(&award)
		if res.Error != nil {
			return result, fmt.Errorf("award %s to %s: %w", badge.Code, memberID, res.Error)
		}
		if res.RowsAffected == 0 {
			result.AlreadyAwarded = append(result.AlreadyAwarded, memberID)
			continue
		}
		result.Awarded = append(result.Awarded, memberID)
	}

	s.Log.Info("badge awarded to attendees",
		"badge", badge.Code, "awarded", len(result.Awarded),
		"already_awarded", len(result.AlreadyAwarded), "unknown", len(result.UnknownMembers))
	return result, nil
}

// MemberAwards lists a member's award decisions.
func (s *BadgeService) MemberAwards(ctx context.Context, memberID string) ([]models.MemberBadgeAward, error) {
	var awards []models.MemberBadgeAward
	if err := s.DB.WithContext(ctx).Where("member_id = ?", memberID).Order("created_at ASC").Find(&awards).Error; err != nil {
		return nil, fmt.Errorf("load awards: %w", err)
	}
	return awards, nil
}

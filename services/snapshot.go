package services

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"badge-progress-system/engine"
	"badge-progress-system/models"
)

// readSnapshot runs fn in a read-only transaction so every query sees the same state of the
// ledger. Postgres gets REPEATABLE READ; other dialects fall back to their default transaction.
func readSnapshot(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var opts []*sql.TxOptions
	if db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}
	return db.WithContext(ctx).Transaction(fn, opts...)
}

// loadMemberSnapshots reads the ledger slices of the given members, keyed by member ID.
func loadMemberSnapshots(tx *gorm.DB, members []models.Member) (map[string]*engine.MemberSnapshot, error) {
	snaps := make(map[string]*engine.MemberSnapshot, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		snaps[m.ID] = &engine.MemberSnapshot{Member: m}
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return snaps, nil
	}

	var progress []models.MemberRequirementProgress
	if err := tx.Where("member_id IN ?", ids).Order("member_id, requirement_id").Find(&progress).Error; err != nil {
		return nil, fmt.Errorf("load requirement progress: %w", err)
	}
	for _, p := range progress {
		snaps[p.MemberID].Requirements = append(snaps[p.MemberID].Requirements, p)
	}

	var cache []models.MemberBadgeProgress
	if err := tx.Where("member_id IN ?", ids).Find(&cache).Error; err != nil {
		return nil, fmt.Errorf("load badge cache: %w", err)
	}
	for _, c := range cache {
		snaps[c.MemberID].BadgeCache = append(snaps[c.MemberID].BadgeCache, c)
	}

	var logs []models.ActivityLog
	if err := tx.Where("member_id IN ?", ids).Order("start_date ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("load activity logs: %w", err)
	}
	for _, l := range logs {
		snaps[l.MemberID].Activity = append(snaps[l.MemberID].Activity, l)
	}
	return snaps, nil
}

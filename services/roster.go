package services

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"badge-progress-system/engine"
	"badge-progress-system/models"
	"badge-progress-system/utils"
)

// RosterService evaluates a whole section for the leader view.
type RosterService struct {
	DB          *gorm.DB
	Log         *utils.Logger
	Concurrency int
	Now         func() time.Time
}

func NewRosterService(db *gorm.DB, log *utils.Logger, concurrency int) *RosterService {
	if concurrency < 1 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &RosterService{DB: db, Log: log, Concurrency: concurrency, Now: time.Now}
}

// RosterEntry is one member's line in a section roster.
type RosterEntry struct {
	Member     MemberSummary            `json:"member"`
	Earned     []engine.Item            `json:"earned"`
	InProgress []engine.Item            `json:"in_progress"`
	Counters   []engine.CounterProgress `json:"counters,omitempty"`
	Warnings   int                      `json:"warnings"`
}

// RosterReport evaluates every member of a section. The catalog and ledger are read once from a
// single snapshot and the shared evaluator runs members in parallel.
func (s *RosterService) RosterReport(ctx context.Context, section string) ([]RosterEntry, error) {
	var (
		members []models.Member
		catalog engine.Catalog
		snaps   map[string]*engine.MemberSnapshot
	)
	err := readSnapshot(ctx, s.DB, func(tx *gorm.DB) error {
		if err := tx.Where("section = ?", section).Order("last_name, first_name").Find(&members).Error; err != nil {
			return fmt.Errorf("load section %s: %w", section, err)
		}
		var err error
		if catalog, err = loadCatalog(tx); err != nil {
			return err
		}
		snaps, err = loadMemberSnapshots(tx, members)
		return err
	})
	if err != nil {
		return nil, err
	}

	ev := engine.NewEvaluator(catalog)
	now := s.Now()
	entries := make([]RosterEntry, len(members))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for i, m := range members {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep := ev.Recompute(*snaps[m.ID], now)
			entries[i] = RosterEntry{
				Member:     summarize(m),
				Earned:     rep.Buckets.Earned,
				InProgress: rep.Buckets.InProgress,
				Counters:   rep.Counters,
				Warnings:   len(rep.Warnings),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.Log.Debug("roster evaluated", "section", section, "members", len(entries))
	return entries, nil
}

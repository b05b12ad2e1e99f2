package engine

import (
	"fmt"
	"time"

	"badge-progress-system/models"
)

// Report is everything derived for one member from one snapshot.
type Report struct {
	MemberID    string            `json:"member_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Badges      []BadgeProgress   `json:"badges"`
	Families    []FamilyProgress  `json:"families"`
	Counters    []CounterProgress `json:"counters"`
	Buckets     Buckets           `json:"buckets"`
	// Cache holds the rows a caller may persist to rebuild member_badge_progresses.
	Cache    []models.MemberBadgeProgress `json:"-"`
	Warnings []Warning                    `json:"warnings,omitempty"`
}

// Badge returns the record of one badge.
func (r *Report) Badge(badgeID string) (BadgeProgress, bool) {
	for _, bp := range r.Badges {
		if bp.BadgeID == badgeID {
			return bp, true
		}
	}
	return BadgeProgress{}, false
}

// Family returns the record of one staged family.
func (r *Report) Family(familyID string) (FamilyProgress, bool) {
	for _, fp := range r.Families {
		if fp.FamilyID == familyID {
			return fp, true
		}
	}
	return FamilyProgress{}, false
}

// Earned lists the IDs of every completed badge, stages included.
func (r *Report) Earned() []string {
	var ids []string
	for _, bp := range r.Badges {
		if bp.IsComplete {
			ids = append(ids, bp.BadgeID)
		}
	}
	return ids
}

// Evaluator holds an indexed catalog and evaluates member snapshots against it.
// One Evaluator may be shared by any number of goroutines.
type Evaluator struct {
	idx *Index
}

func NewEvaluator(c Catalog) *Evaluator {
	return &Evaluator{idx: NewIndex(c)}
}

// Index exposes the evaluator's catalog index.
func (e *Evaluator) Index() *Index {
	return e.idx
}

// Recompute is the single entry point: it indexes the catalog and evaluates one member.
func Recompute(c Catalog, snap MemberSnapshot, now time.Time) Report {
	return NewEvaluator(c).Recompute(snap, now)
}

// Recompute evaluates every active badge available to the member's section, resolves families
// and counters, classifies the results and rebuilds the member's cache rows.
func (e *Evaluator) Recompute(snap MemberSnapshot, now time.Time) Report {
	memberID := snap.Member.ID
	rep := Report{MemberID: memberID, GeneratedAt: now}
	rep.Warnings = append(rep.Warnings, e.idx.Warnings()...)

	ledger, warnings := BuildLedger(memberID, snap.Requirements, e.idx)
	rep.Warnings = append(rep.Warnings, warnings...)

	cache := make(map[string]*models.MemberBadgeProgress, len(snap.BadgeCache))
	for i := range snap.BadgeCache {
		row := &snap.BadgeCache[i]
		if memberID != "" && row.MemberID != memberID {
			continue
		}
		cache[row.BadgeID] = row
	}

	byStage := make(map[string]BadgeProgress)
	var items []Item
	seenFamily := make(map[string]bool)

	for _, badge := range e.idx.Badges() {
		if !badge.Active || !badge.AvailableTo(snap.Member.Section) {
			continue
		}
		modules := e.idx.Modules(badge.ID)
		cached := cache[badge.ID]
		bp := EvaluateBadge(badge, modules, e.idx.RequirementsByModule(badge.ID), ledger, cached)
		rep.Badges = append(rep.Badges, bp)

		if len(modules) > 0 {
			if w, diverged := cacheDivergence(memberID, bp, cached); diverged {
				rep.Warnings = append(rep.Warnings, w)
			}
			if bp.Started || bp.IsComplete || cached != nil {
				rep.Cache = append(rep.Cache, cacheRow(memberID, bp, now))
			}
		}

		fam := badge.FamilyID()
		if fam == "" {
			items = append(items, BadgeItem(bp))
			continue
		}
		byStage[badge.ID] = bp
		if !seenFamily[fam] {
			seenFamily[fam] = true
			// Placeholder keeps the family at the position of its first stage.
			items = append(items, Item{Kind: ItemFamily, ID: fam})
		}
	}

	families := make(map[string]FamilyProgress, len(seenFamily))
	for _, fam := range e.idx.FamilyIDs() {
		if !seenFamily[fam] {
			continue
		}
		stages := e.availableStages(fam, snap.Member.Section)
		fp := ResolveFamily(fam, stages, byStage)
		families[fam] = fp
		rep.Families = append(rep.Families, fp)

		if kind := familyCounterKind(stages); kind != models.CounterNone {
			rep.Counters = append(rep.Counters, ResolveFamilyCounter(fam, kind, stages, snap, now))
		}
	}

	for i, it := range items {
		if it.Kind == ItemFamily {
			items[i] = FamilyItem(families[it.ID])
		}
	}
	rep.Buckets = Classify(items)
	return rep
}

func (e *Evaluator) availableStages(familyID, section string) []models.BadgeDefinition {
	var out []models.BadgeDefinition
	for _, s := range e.idx.Family(familyID) {
		if s.Active && s.AvailableTo(section) {
			out = append(out, s)
		}
	}
	return out
}

func statusOf(bp BadgeProgress) models.BadgeProgressStatus {
	if bp.IsComplete {
		return models.StatusCompleted
	}
	return models.StatusInProgress
}

// cacheDivergence compares a stored status with the recomputed one. Absent rows are not divergent.
func cacheDivergence(memberID string, bp BadgeProgress, cached *models.MemberBadgeProgress) (Warning, bool) {
	if cached == nil || cached.Status == statusOf(bp) {
		return Warning{}, false
	}
	return Warning{
		Kind:     WarnCacheDivergence,
		MemberID: memberID,
		BadgeID:  bp.BadgeID,
		Detail:   fmt.Sprintf("cached %s, recomputed %s", cached.Status, statusOf(bp)),
	}, true
}

func cacheRow(memberID string, bp BadgeProgress, now time.Time) models.MemberBadgeProgress {
	at := now
	return models.MemberBadgeProgress{
		MemberID:     memberID,
		BadgeID:      bp.BadgeID,
		Status:       statusOf(bp),
		Percentage:   bp.Percentage,
		RecomputedAt: &at,
	}
}

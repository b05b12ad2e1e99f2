// Package engine derives badge completion, staged-family and counter progress
// from read-only snapshots of the badge catalog and a member's progress ledger.
// Nothing in here performs I/O or holds mutable state; every exported function
// is safe to call concurrently.
package engine

import (
	"sort"

	"badge-progress-system/models"
)

// Catalog is a snapshot of the badge hierarchy as fetched by the caller.
type Catalog struct {
	Badges       []models.BadgeDefinition  `json:"badges"`
	Modules      []models.BadgeModule      `json:"modules"`
	Requirements []models.BadgeRequirement `json:"requirements"`
}

// MemberSnapshot is the slice of the ledger relevant to one member, read as of one point in time.
type MemberSnapshot struct {
	Member       models.Member
	Requirements []models.MemberRequirementProgress
	BadgeCache   []models.MemberBadgeProgress
	Activity     []models.ActivityLog
}

// Index is the catalog keyed for evaluation. It is immutable after NewIndex.
type Index struct {
	badges               []models.BadgeDefinition
	badgeByID            map[string]*models.BadgeDefinition
	modulesByBadge       map[string][]models.BadgeModule
	requirementsByModule map[string][]models.BadgeRequirement
	requirementByID      map[string]*models.BadgeRequirement
	moduleByID           map[string]*models.BadgeModule
	families             map[string][]models.BadgeDefinition
	familyOrder          []string
	warnings             []Warning
}

// NewIndex groups modules under badges and requirements under modules, both by ascending order.
// Modules and requirements pointing at a parent that is not in the catalog are dropped and reported.
func NewIndex(c Catalog) *Index {
	idx := &Index{
		badges:               append([]models.BadgeDefinition(nil), c.Badges...),
		badgeByID:            make(map[string]*models.BadgeDefinition, len(c.Badges)),
		modulesByBadge:       make(map[string][]models.BadgeModule),
		requirementsByModule: make(map[string][]models.BadgeRequirement),
		requirementByID:      make(map[string]*models.BadgeRequirement, len(c.Requirements)),
		moduleByID:           make(map[string]*models.BadgeModule, len(c.Modules)),
		families:             make(map[string][]models.BadgeDefinition),
	}

	for i := range idx.badges {
		b := &idx.badges[i]
		idx.badgeByID[b.ID] = b
		if fam := b.FamilyID(); fam != "" {
			if _, seen := idx.families[fam]; !seen {
				idx.familyOrder = append(idx.familyOrder, fam)
			}
			idx.families[fam] = append(idx.families[fam], *b)
		}
	}
	for fam := range idx.families {
		sortStages(idx.families[fam])
	}

	for _, m := range c.Modules {
		if _, ok := idx.badgeByID[m.BadgeID]; !ok {
			idx.warnings = append(idx.warnings, Warning{
				Kind:     WarnOrphanModule,
				BadgeID:  m.BadgeID,
				ModuleID: m.ID,
			})
			continue
		}
		idx.modulesByBadge[m.BadgeID] = append(idx.modulesByBadge[m.BadgeID], m)
	}
	for badgeID := range idx.modulesByBadge {
		mods := idx.modulesByBadge[badgeID]
		sort.SliceStable(mods, func(i, j int) bool { return mods[i].Order < mods[j].Order })
		for i := range mods {
			idx.moduleByID[mods[i].ID] = &mods[i]
		}
	}

	for _, r := range c.Requirements {
		if _, ok := idx.moduleByID[r.ModuleID]; !ok {
			idx.warnings = append(idx.warnings, Warning{
				Kind:          WarnOrphanRequirement,
				ModuleID:      r.ModuleID,
				RequirementID: r.ID,
			})
			continue
		}
		idx.requirementsByModule[r.ModuleID] = append(idx.requirementsByModule[r.ModuleID], r)
	}
	for moduleID := range idx.requirementsByModule {
		reqs := idx.requirementsByModule[moduleID]
		sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].Order < reqs[j].Order })
		for i := range reqs {
			idx.requirementByID[reqs[i].ID] = &reqs[i]
		}
	}

	return idx
}

// Badge looks a badge up by ID.
func (idx *Index) Badge(id string) (models.BadgeDefinition, bool) {
	b, ok := idx.badgeByID[id]
	if !ok {
		return models.BadgeDefinition{}, false
	}
	return *b, true
}

// Badges returns the catalog badges in catalog order.
func (idx *Index) Badges() []models.BadgeDefinition {
	return idx.badges
}

// Modules returns a badge's modules by ascending order.
func (idx *Index) Modules(badgeID string) []models.BadgeModule {
	return idx.modulesByBadge[badgeID]
}

// Requirements returns a module's requirements by ascending order.
func (idx *Index) Requirements(moduleID string) []models.BadgeRequirement {
	return idx.requirementsByModule[moduleID]
}

// RequirementsByModule returns the requirement lists for every module of a badge.
func (idx *Index) RequirementsByModule(badgeID string) map[string][]models.BadgeRequirement {
	out := make(map[string][]models.BadgeRequirement)
	for _, m := range idx.modulesByBadge[badgeID] {
		out[m.ID] = idx.requirementsByModule[m.ID]
	}
	return out
}

// Requirement looks a requirement up by ID.
func (idx *Index) Requirement(id string) (models.BadgeRequirement, bool) {
	r, ok := idx.requirementByID[id]
	if !ok {
		return models.BadgeRequirement{}, false
	}
	return *r, true
}

// Family returns the stages of a family ordered by ascending stage number.
func (idx *Index) Family(familyID string) []models.BadgeDefinition {
	return idx.families[familyID]
}

// FamilyIDs returns family identifiers in order of first appearance in the catalog.
func (idx *Index) FamilyIDs() []string {
	return idx.familyOrder
}

// Warnings returns the catalog-level orphan references found while indexing.
func (idx *Index) Warnings() []Warning {
	return idx.warnings
}

func sortStages(stages []models.BadgeDefinition) {
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].Stage() < stages[j].Stage() })
}

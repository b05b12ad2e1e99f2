package engine

import (
	"fmt"

	"badge-progress-system/models"
)

// WarningKind classifies a non-fatal data fault found during evaluation.
type WarningKind string

const (
	WarnOrphanModule       WarningKind = "orphan_module"
	WarnOrphanRequirement  WarningKind = "orphan_requirement"
	WarnOrphanProgress     WarningKind = "orphan_progress"
	WarnModuleMismatch     WarningKind = "module_mismatch"
	WarnCompletionMismatch WarningKind = "completion_flag_mismatch"
	WarnCountOverflow      WarningKind = "completion_count_overflow"
	WarnCacheDivergence    WarningKind = "cache_divergence"
)

// Warning is surfaced to callers so caches and bad rows can be repaired. It never aborts evaluation.
type Warning struct {
	Kind          WarningKind `json:"kind"`
	MemberID      string      `json:"member_id,omitempty"`
	BadgeID       string      `json:"badge_id,omitempty"`
	ModuleID      string      `json:"module_id,omitempty"`
	RequirementID string      `json:"requirement_id,omitempty"`
	Detail        string      `json:"detail,omitempty"`
}

// Ledger is a member's requirement progress keyed by requirement ID.
type Ledger map[string]models.MemberRequirementProgress

// BuildLedger keys a member's progress rows by requirement. Rows for other members are skipped;
// rows for unknown requirements are dropped with a warning.
func BuildLedger(memberID string, records []models.MemberRequirementProgress, idx *Index) (Ledger, []Warning) {
	ledger := make(Ledger, len(records))
	var warnings []Warning

	for _, p := range records {
		if memberID != "" && p.MemberID != memberID {
			continue
		}
		req, ok := idx.Requirement(p.RequirementID)
		if !ok {
			warnings = append(warnings, Warning{
				Kind:          WarnOrphanProgress,
				MemberID:      p.MemberID,
				ModuleID:      p.ModuleID,
				RequirementID: p.RequirementID,
			})
			continue
		}
		if p.ModuleID != "" && p.ModuleID != req.ModuleID {
			warnings = append(warnings, Warning{
				Kind:          WarnModuleMismatch,
				MemberID:      p.MemberID,
				ModuleID:      p.ModuleID,
				RequirementID: p.RequirementID,
				Detail:        fmt.Sprintf("requirement belongs to module %s", req.ModuleID),
			})
		}
		if p.CompletionCount > req.Required() {
			warnings = append(warnings, Warning{
				Kind:          WarnCountOverflow,
				MemberID:      p.MemberID,
				RequirementID: p.RequirementID,
				Detail:        fmt.Sprintf("count %d exceeds required %d", p.CompletionCount, req.Required()),
			})
		}
		if p.Completed != p.IsDone(req.Required()) {
			warnings = append(warnings, Warning{
				Kind:          WarnCompletionMismatch,
				MemberID:      p.MemberID,
				RequirementID: p.RequirementID,
				Detail:        fmt.Sprintf("completed=%t but count %d of %d", p.Completed, p.CompletionCount, req.Required()),
			})
		}

		if prev, dup := ledger[p.RequirementID]; dup && prev.CompletionCount >= p.CompletionCount {
			continue
		}
		ledger[p.RequirementID] = p
	}
	return ledger, warnings
}

// count returns the clamped completion count for a requirement, 0 when no row exists.
func (l Ledger) count(req models.BadgeRequirement) int {
	p, ok := l[req.ID]
	if !ok || p.CompletionCount < 0 {
		return 0
	}
	if p.CompletionCount > req.Required() {
		return req.Required()
	}
	return p.CompletionCount
}

func (l Ledger) done(req models.BadgeRequirement) bool {
	return l.count(req) >= req.Required()
}

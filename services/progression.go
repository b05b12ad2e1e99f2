package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"badge-progress-system/models"
	"badge-progress-system/utils"
)

// ProgressionService owns the writes to the progress ledger.
type ProgressionService struct {
	DB  *gorm.DB
	Log *utils.Logger
	Now func() time.Time
}

func NewProgressionService(db *gorm.DB, log *utils.Logger) *ProgressionService {
	return &ProgressionService{DB: db, Log: log, Now: time.Now}
}

// EnsureMember ensures a Member row exists for the external identity (idempotent).
func (s *ProgressionService) EnsureMember(ctx context.Context, externalMemberID string) (*models.Member, error) {
	var member models.Member
	err := s.DB.WithContext(ctx).
		Where(models.Member{ExternalMemberID: externalMemberID}).
		FirstOrCreate(&member).Error
	if err != nil {
		return nil, fmt.Errorf("ensure member %s: %w", externalMemberID, err)
	}
	return &member, nil
}

// lockForUpdate adds SELECT ... FOR UPDATE where the dialect supports it.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// RecordRequirementCompletion adds increment (negative to undo) to a member's completion count.
// The count is clamped to 0..required_completions and the completed flag is derived from it,
// so stored rows always satisfy completed == (count == required).
func (s *ProgressionService) RecordRequirementCompletion(ctx context.Context, memberID, requirementID string, increment int) (*models.MemberRequirementProgress, error) {
	var out models.MemberRequirementProgress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.Member
		if err := tx.Select("id").Where("id = ?", memberID).First(&member).Error; err != nil {
			return notFound(err, ErrMemberNotFound, memberID)
		}
		var req models.BadgeRequirement
		if err := tx.Where("id = ?", requirementID).First(&req).Error; err != nil {
			return notFound(err, ErrRequirementNotFound, requirementID)
		}

		// Make sure the row exists so concurrent writers serialize on it.
		seed := models.MemberRequirementProgress{MemberID: memberID, RequirementID: requirementID, ModuleID: req.ModuleID}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}, {Name: "requirement_id"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return fmt.Errorf("seed progress: %w", err)
		}

		var prog models.MemberRequirementProgress
		if err := lockForUpdate(tx).
			Where("member_id = ? AND requirement_id = ?", memberID, requirementID).
			First(&prog).Error; err != nil {
			return fmt.Errorf("load progress: %w", err)
		}

		required := req.Required()
		count := prog.CompletionCount + increment
		if count < 0 {
			count = 0
		}
		if count > required {
			count = required
		}

		wasDone := prog.Completed
		prog.ModuleID = req.ModuleID
		prog.CompletionCount = count
		prog.Completed = count == required
		switch {
		case prog.Completed && !wasDone:
			now := s.Now()
			prog.CompletedAt = &now
		case !prog.Completed:
			prog.CompletedAt = nil
		}

		if err := tx.Save(&prog).Error; err != nil {
			return fmt.Errorf("save progress: %w", err)
		}
		out = prog
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("requirement progress recorded",
		"member_id", memberID, "requirement_id", requirementID,
		"increment", increment, "count", out.CompletionCount, "completed", out.Completed)
	return &out, nil
}

// ActivityInput is one nights-away or hikes-away entry.
type ActivityInput struct {
	Kind      models.ActivityKind
	StartDate time.Time
	Count     int
	Location  *string
}

// RecordActivity appends an activity log and bumps the member's cached total for that kind,
// but only when the member already tracks one; an untracked (nil) total stays nil.
func (s *ProgressionService) RecordActivity(ctx context.Context, memberID string, in ActivityInput) (*models.ActivityLog, error) {
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidActivity, in.Kind)
	}
	if in.Count < 1 {
		return nil, fmt.Errorf("%w: count must be positive", ErrInvalidActivity)
	}
	if in.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: start date required", ErrInvalidActivity)
	}

	column := "total_nights_away"
	if in.Kind == models.ActivityHikesAway {
		column = "total_hikes_away"
	}

	entry := models.ActivityLog{
		MemberID:  memberID,
		Kind:      in.Kind,
		StartDate: in.StartDate,
		Count:     in.Count,
		Location:  in.Location,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.Member
		if err := tx.Select("id").Where("id = ?", memberID).First(&member).Error; err != nil {
			return notFound(err, ErrMemberNotFound, memberID)
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("create activity log: %w", err)
		}
		return tx.Model(&models.Member{}).
			Where("id = ? AND "+column+" IS NOT NULL", memberID).
			UpdateColumn(column, gorm.Expr(column+" + ?", in.Count)).Error
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("activity recorded", "member_id", memberID, "kind", in.Kind, "count", in.Count)
	return &entry, nil
}

// ActivityPage is one page of a member's activity history.
type ActivityPage struct {
	Logs       []models.ActivityLog `json:"logs"`
	Page       int                  `json:"page"`
	Size       int                  `json:"size"`
	TotalItems int64                `json:"total_items"`
	TotalPages int                  `json:"total_pages"`
}

// GetActivityHistory returns a member's activity logs, newest first. An empty kind lists all kinds.
func (s *ProgressionService) GetActivityHistory(ctx context.Context, memberID string, kind models.ActivityKind, page, size int) (*ActivityPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	q := s.DB.WithContext(ctx).Model(&models.ActivityLog{}).Where("member_id = ?", memberID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count activity: %w", err)
	}
	var logs []models.ActivityLog
	if err := q.Order("start_date DESC").Limit(size).Offset(offset).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	return &ActivityPage{
		Logs:       logs,
		Page:       page,
		Size:       size,
		TotalItems: total,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}, nil
}

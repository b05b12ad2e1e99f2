package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"badge-progress-system/models"
)

// MemberService reads the local member mirror.
type MemberService struct {
	DB *gorm.DB
}

func NewMemberService(db *gorm.DB) *MemberService {
	return &MemberService{DB: db}
}

// MemberSummary is the public projection of a member used by search and roster views.
type MemberSummary struct {
	ID               string `json:"id"`
	ExternalMemberID string `json:"external_member_id"`
	Name             string `json:"name"`
	Section          string `json:"section"`
}

func summarize(m models.Member) MemberSummary {
	return MemberSummary{
		ID:               m.ID,
		ExternalMemberID: m.ExternalMemberID,
		Name:             m.DisplayName(),
		Section:          m.Section,
	}
}

// SearchMembers matches the query against first and last name, optionally within one section.
func (s *MemberService) SearchMembers(ctx context.Context, query, section string, limit int) ([]MemberSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	db := s.DB.WithContext(ctx).Model(&models.Member{}).Order("last_name, first_name").Limit(limit)
	if query = strings.TrimSpace(query); query != "" {
		term := "%" + strings.ToLower(query) + "%"
		db = db.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", term, term)
	}
	if section != "" {
		db = db.Where("section = ?", section)
	}

	var members []models.Member
	if err := db.Find(&members).Error; err != nil {
		return nil, fmt.Errorf("search members: %w", err)
	}

	res := make([]MemberSummary, len(members))
	for i, m := range members {
		res[i] = summarize(m)
	}
	return res, nil
}

// GetMember loads a member by local ID.
func (s *MemberService) GetMember(ctx context.Context, id string) (*models.Member, error) {
	var m models.Member
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, ErrMemberNotFound, id)
	}
	return &m, nil
}

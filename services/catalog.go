package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"badge-progress-system/engine"
	"badge-progress-system/models"
	"badge-progress-system/utils"
)

// ObjectFetcher reads a stored object; satisfied by utils.R2Store.
type ObjectFetcher interface {
	FetchObject(ctx context.Context, key string) ([]byte, error)
}

type CatalogService struct {
	DB    *gorm.DB
	Log   *utils.Logger
	Store ObjectFetcher // nil when R2 is not configured
}

func NewCatalogService(db *gorm.DB, log *utils.Logger, store ObjectFetcher) *CatalogService {
	return &CatalogService{DB: db, Log: log, Store: store}
}

// LoadCatalog reads the whole catalog, inactive badges included.
func (s *CatalogService) LoadCatalog(ctx context.Context) (engine.Catalog, error) {
	return loadCatalog(s.DB.WithContext(ctx))
}

func loadCatalog(db *gorm.DB) (engine.Catalog, error) {
	var c engine.Catalog
	if err := db.Order("created_at ASC, code ASC").Find(&c.Badges).Error; err != nil {
		return c, fmt.Errorf("load badges: %w", err)
	}
	if err := db.Order("badge_id, sort_order").Find(&c.Modules).Error; err != nil {
		return c, fmt.Errorf("load modules: %w", err)
	}
	if err := db.Order("module_id, sort_order").Find(&c.Requirements).Error; err != nil {
		return c, fmt.Errorf("load requirements: %w", err)
	}
	return c, nil
}

// catalogDoc is the YAML authoring format: badges → modules → requirements.
type catalogDoc struct {
	Badges []badgeDoc `yaml:"badges"`
}

type badgeDoc struct {
	Code            string                     `yaml:"code"`
	Name            string                     `yaml:"name"`
	Description     string                     `yaml:"description"`
	IconURL         string                     `yaml:"icon_url"`
	Category        models.BadgeCategory       `yaml:"category"`
	CompletionRule  models.BadgeCompletionRule `yaml:"completion_rule"`
	Section         string                     `yaml:"section"`
	Family          string                     `yaml:"family"`
	Stage           *int                       `yaml:"stage"`
	CounterKind     models.CounterKind         `yaml:"counter_kind"`
	ChiefScoutAward bool                       `yaml:"chief_scout_award"`
	Active          *bool                      `yaml:"active"`
	Modules         []moduleDoc                `yaml:"modules"`
}

type moduleDoc struct {
	Title          string                      `yaml:"title"`
	CompletionRule models.ModuleCompletionRule `yaml:"completion_rule"`
	RequiredCount  *int                        `yaml:"required_count"`
	Requirements   []requirementDoc            `yaml:"requirements"`
}

type requirementDoc struct {
	Text                string `yaml:"text"`
	RequiredCompletions *int   `yaml:"required_completions"`
}

// ImportSummary reports what an import touched.
type ImportSummary struct {
	Badges       int `json:"badges"`
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Modules      int `json:"modules"`
	Requirements int `json:"requirements"`
}

// parsedBadge is a validated badge with its children in document order.
type parsedBadge struct {
	badge   models.BadgeDefinition
	modules []parsedModule
}

type parsedModule struct {
	module       models.BadgeModule
	requirements []models.BadgeRequirement
}

// parseCatalog decodes and validates a YAML catalog document without touching the database.
func parseCatalog(raw []byte) ([]parsedBadge, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(doc.Badges) == 0 {
		return nil, fmt.Errorf("%w: no badges", ErrInvalidCatalog)
	}

	codes := make(map[string]bool, len(doc.Badges))
	stages := make(map[string]map[int]string)
	out := make([]parsedBadge, 0, len(doc.Badges))

	for i, bd := range doc.Badges {
		if strings.TrimSpace(bd.Name) == "" {
			return nil, fmt.Errorf("%w: badge #%d has no name", ErrInvalidCatalog, i+1)
		}
		code := bd.Code
		if code == "" {
			code = slug.Make(bd.Name)
		}
		if !slug.IsSlug(code) {
			return nil, fmt.Errorf("%w: badge code %q is not a slug", ErrInvalidCatalog, code)
		}
		if codes[code] {
			return nil, fmt.Errorf("%w: duplicate badge code %q", ErrInvalidCatalog, code)
		}
		codes[code] = true

		b := models.BadgeDefinition{
			Code:              code,
			Name:              bd.Name,
			Description:       bd.Description,
			IconURL:           bd.IconURL,
			Category:          bd.Category,
			CompletionRule:    bd.CompletionRule,
			Section:           bd.Section,
			StageNumber:       bd.Stage,
			CounterKind:       bd.CounterKind,
			IsChiefScoutAward: bd.ChiefScoutAward,
			Active:            bd.Active == nil || *bd.Active,
		}
		if b.CompletionRule == "" {
			b.CompletionRule = models.BadgeRuleAllModules
		}
		if b.CounterKind == "" {
			b.CounterKind = models.CounterNone
		}
		if b.Section == "" {
			b.Section = models.SectionAll
		}
		if bd.Family != "" {
			family := slug.Make(bd.Family)
			b.BadgeFamilyID = &family
			b.FamilyName = strings.TrimSpace(bd.Family)
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
		if b.IsStaged() {
			fam := b.FamilyID()
			if stages[fam] == nil {
				stages[fam] = make(map[int]string)
			}
			if other, dup := stages[fam][b.Stage()]; dup {
				return nil, fmt.Errorf("%w: family %q stage %d used by %q and %q", ErrInvalidCatalog, fam, b.Stage(), other, code)
			}
			stages[fam][b.Stage()] = code
		}

		pb := parsedBadge{badge: b}
		for mi, md := range bd.Modules {
			m := models.BadgeModule{
				Title:          md.Title,
				Order:          mi + 1,
				CompletionRule: md.CompletionRule,
				RequiredCount:  md.RequiredCount,
			}
			if m.CompletionRule == "" {
				m.CompletionRule = models.ModuleRuleAllRequirements
			}
			if err := m.Validate(len(md.Requirements)); err != nil {
				return nil, fmt.Errorf("%w: badge %q: %v", ErrInvalidCatalog, code, err)
			}

			pm := parsedModule{module: m}
			for ri, rd := range md.Requirements {
				required := 1
				if rd.RequiredCompletions != nil {
					required = *rd.RequiredCompletions
				}
				if required < 1 {
					return nil, fmt.Errorf("%w: badge %q module %q requirement %d: required_completions must be at least 1",
						ErrInvalidCatalog, code, m.Title, ri+1)
				}
				pm.requirements = append(pm.requirements, models.BadgeRequirement{
					Order:               ri + 1,
					Text:                rd.Text,
					RequiredCompletions: required,
				})
			}
			pb.modules = append(pb.modules, pm)
		}
		out = append(out, pb)
	}
	return out, nil
}

// ImportCatalog validates a YAML catalog and upserts it by badge code in one transaction.
// Modules and requirements are matched by position so their IDs, and the progress rows keyed
// on them, survive re-imports.
func (s *CatalogService) ImportCatalog(ctx context.Context, raw []byte) (ImportSummary, error) {
	parsed, err := parseCatalog(raw)
	if err != nil {
		return ImportSummary{}, err
	}

	var sum ImportSummary
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Stage numbers must stay unique against families already stored by badges outside this document.
		if err := checkStoredStages(tx, parsed); err != nil {
			return err
		}
		for _, pb := range parsed {
			created, err := upsertBadge(tx, pb)
			if err != nil {
				return err
			}
			sum.Badges++
			if created {
				sum.Created++
			} else {
				sum.Updated++
			}
			sum.Modules += len(pb.modules)
			for _, pm := range pb.modules {
				sum.Requirements += len(pm.requirements)
			}
		}
		return nil
	})
	if err != nil {
		return ImportSummary{}, err
	}

	s.Log.Info("catalog imported",
		"badges", sum.Badges, "created", sum.Created, "updated", sum.Updated,
		"modules", sum.Modules, "requirements", sum.Requirements)
	return sum, nil
}

// ImportCatalogFromR2 fetches a YAML catalog object and imports it.
func (s *CatalogService) ImportCatalogFromR2(ctx context.Context, key string) (ImportSummary, error) {
	if s.Store == nil {
		return ImportSummary{}, ErrCatalogStoreMissing
	}
	raw, err := s.Store.FetchObject(ctx, key)
	if err != nil {
		return ImportSummary{}, err
	}
	s.Log.Debug("catalog object fetched", "key", key, "bytes", len(raw))
	return s.ImportCatalog(ctx, raw)
}

func checkStoredStages(tx *gorm.DB, parsed []parsedBadge) error {
	incoming := make(map[string]bool, len(parsed))
	for _, pb := range parsed {
		incoming[pb.badge.Code] = true
	}
	for _, pb := range parsed {
		if !pb.badge.IsStaged() {
			continue
		}
		var clash []models.BadgeDefinition
		if err := tx.Where("badge_family_id = ? AND stage_number = ? AND code <> ?",
			pb.badge.FamilyID(), pb.badge.Stage(), pb.badge.Code).Find(&clash).Error; err != nil {
			return fmt.Errorf("check stages: %w", err)
		}
		for _, other := range clash {
			if !incoming[other.Code] {
				return fmt.Errorf("%w: family %q stage %d already used by %q",
					ErrInvalidCatalog, pb.badge.FamilyID(), pb.badge.Stage(), other.Code)
			}
		}
	}
	return nil
}

func upsertBadge(tx *gorm.DB, pb parsedBadge) (bool, error) {
	b := pb.badge
	var existing models.BadgeDefinition
	err := tx.Where("code = ?", b.Code).Limit(1).Find(&existing).Error
	if err != nil {
		return false, fmt.Errorf("find badge %q: %w", b.Code, err)
	}

	created := existing.ID == ""
	if created {
		if err := tx.Create(&b).Error; err != nil {
			return false, fmt.Errorf("create badge %q: %w", b.Code, err)
		}
	} else {
		b.ID = existing.ID
		b.CreatedAt = existing.CreatedAt
		if err := tx.Save(&b).Error; err != nil {
			return false, fmt.Errorf("update badge %q: %w", b.Code, err)
		}
	}

	var stored []models.BadgeModule
	if err := tx.Where("badge_id = ?", b.ID).Order("sort_order").Find(&stored).Error; err != nil {
		return false, fmt.Errorf("load modules of %q: %w", b.Code, err)
	}
	for i, pm := range pb.modules {
		m := pm.module
		m.BadgeID = b.ID
		if i < len(stored) {
			m.ID = stored[i].ID
			m.CreatedAt = stored[i].CreatedAt
			if err := tx.Save(&m).Error; err != nil {
				return false, fmt.Errorf("update module %q: %w", m.Title, err)
			}
		} else if err := tx.Create(&m).Error; err != nil {
			return false, fmt.Errorf("create module %q: %w", m.Title, err)
		}
		if err := syncRequirements(tx, m.ID, pm.requirements); err != nil {
			return false, err
		}
	}
	for _, extra := range stored[min(len(pb.modules), len(stored)):] {
		if err := tx.Where("module_id = ?", extra.ID).Delete(&models.BadgeRequirement{}).Error; err != nil {
			return false, fmt.Errorf("remove requirements of module %s: %w", extra.ID, err)
		}
		if err := tx.Delete(&extra).Error; err != nil {
			return false, fmt.Errorf("remove module %s: %w", extra.ID, err)
		}
	}
	return created, nil
}

func syncRequirements(tx *gorm.DB, moduleID string, reqs []models.BadgeRequirement) error {
	var stored []models.BadgeRequirement
	if err := tx.Where("module_id = ?", moduleID).Order("sort_order").Find(&stored).Error; err != nil {
		return fmt.Errorf("load requirements of module %s: %w", moduleID, err)
	}
	for i, r := range reqs {
		r.ModuleID = moduleID
		if i < len(stored) {
			r.ID = stored[i].ID
			r.CreatedAt = stored[i].CreatedAt
			if err := tx.Save(&r).Error; err != nil {
				return fmt.Errorf("update requirement %s: %w", r.ID, err)
			}
			continue
		}
		if err := tx.Create(&r).Error; err != nil {
			return fmt.Errorf("create requirement: %w", err)
		}
	}
	for _, extra := range stored[min(len(reqs), len(stored)):] {
		if err := tx.Delete(&extra).Error; err != nil {
			return fmt.Errorf("remove requirement %s: %w", extra.ID, err)
		}
	}
	return nil
}

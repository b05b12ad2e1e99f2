package engine

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"badge-progress-system/models"
)

// Bucket is the presentation bucket of a badge or family.
type Bucket string

const (
	BucketEarned     Bucket = "earned"
	BucketInProgress Bucket = "in_progress"
	BucketNotStarted Bucket = "not_started"
)

// ItemKind distinguishes standalone badges from staged families.
type ItemKind string

const (
	ItemBadge  ItemKind = "badge"
	ItemFamily ItemKind = "family"
)

// categoryPrecedence orders categories for presentation; unlisted categories sort after these.
var categoryPrecedence = []models.BadgeCategory{
	models.CategoryChallenge,
	models.CategoryActivity,
	models.CategoryStaged,
	models.CategoryCore,
}

// Item is one classifiable entry: a standalone badge or a whole family.
type Item struct {
	Kind       ItemKind             `json:"kind"`
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Category   models.BadgeCategory `json:"category"`
	Percentage int                  `json:"percentage"`
	Earned     bool                 `json:"earned"`
	Started    bool                 `json:"started"`
}

// CategoryGroup is one category's slice of the not-started bucket.
type CategoryGroup struct {
	Category models.BadgeCategory `json:"category"`
	Items    []Item               `json:"items"`
}

// Buckets is the classified and ranked view of a member's badges.
type Buckets struct {
	Earned     []Item          `json:"earned"`
	InProgress []Item          `json:"in_progress"`
	NotStarted []CategoryGroup `json:"not_started"`
}

// BadgeItem builds the classification entry for a standalone badge.
func BadgeItem(bp BadgeProgress) Item {
	return Item{
		Kind:       ItemBadge,
		ID:         bp.BadgeID,
		Name:       bp.Name,
		Category:   bp.Category,
		Percentage: bp.Percentage,
		Earned:     bp.IsComplete,
		Started:    bp.Started,
	}
}

// FamilyItem builds the classification entry for a staged family.
func FamilyItem(fp FamilyProgress) Item {
	return Item{
		Kind:       ItemFamily,
		ID:         fp.FamilyID,
		Name:       fp.Name,
		Category:   fp.Category,
		Percentage: fp.Percentage,
		Earned:     fp.HighestCompletedStage != nil,
		Started:    fp.Started,
	}
}

// BucketOf decides the bucket of a single item. Challenges are always surfaced as goals.
func BucketOf(it Item) Bucket {
	switch {
	case it.Earned:
		return BucketEarned
	case it.Category == models.CategoryChallenge, it.Started:
		return BucketInProgress
	default:
		return BucketNotStarted
	}
}

// Classify partitions items into buckets and ranks each one. Earned keeps input order; in-progress
// sorts by category precedence then percentage descending; not-started groups by category with the
// activity group alphabetical. All sorts are stable.
func Classify(items []Item) Buckets {
	var b Buckets
	var notStarted []Item
	for _, it := range items {
		switch BucketOf(it) {
		case BucketEarned:
			b.Earned = append(b.Earned, it)
		case BucketInProgress:
			b.InProgress = append(b.InProgress, it)
		default:
			notStarted = append(notStarted, it)
		}
	}

	sort.SliceStable(b.InProgress, func(i, j int) bool {
		ri, rj := categoryRank(b.InProgress[i].Category), categoryRank(b.InProgress[j].Category)
		if ri != rj {
			return ri < rj
		}
		return b.InProgress[i].Percentage > b.InProgress[j].Percentage
	})

	b.NotStarted = groupByCategory(notStarted)
	for _, g := range b.NotStarted {
		if g.Category == models.CategoryActivity {
			sortByName(g.Items)
		}
	}
	return b
}

// Flatten returns the not-started groups as one ordered list.
func (b Buckets) Flatten() []Item {
	var out []Item
	for _, g := range b.NotStarted {
		out = append(out, g.Items...)
	}
	return out
}

func categoryRank(c models.BadgeCategory) int {
	for i, p := range categoryPrecedence {
		if p == c {
			return i
		}
	}
	return len(categoryPrecedence)
}

// groupByCategory keeps first-appearance order among categories of equal rank.
func groupByCategory(items []Item) []CategoryGroup {
	var groups []CategoryGroup
	pos := make(map[models.BadgeCategory]int)
	for _, it := range items {
		i, ok := pos[it.Category]
		if !ok {
			i = len(groups)
			pos[it.Category] = i
			groups = append(groups, CategoryGroup{Category: it.Category})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return categoryRank(groups[i].Category) < categoryRank(groups[j].Category)
	})
	return groups
}

func sortByName(items []Item) {
	// Collators are not safe for concurrent use.
	col := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		return col.CompareString(items[i].Name, items[j].Name) < 0
	})
}

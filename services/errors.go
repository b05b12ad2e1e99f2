package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrMemberNotFound      = errors.New("member not found")
	ErrBadgeNotFound       = errors.New("badge not found")
	ErrRequirementNotFound = errors.New("requirement not found")
	ErrInvalidCatalog      = errors.New("invalid catalog")
	ErrInvalidActivity     = errors.New("invalid activity")
	ErrCatalogStoreMissing = errors.New("catalog object store not configured")
)

// notFound maps gorm.ErrRecordNotFound onto the given sentinel and wraps anything else.
func notFound(err error, sentinel error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return fmt.Errorf("lookup %s: %w", id, err)
}

package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/BotCoder254/URLBriefr/internal/errors"
	"github.com/BotCoder254/URLBriefr/internal/models"
)

// LinkRepository defines data access for short links and their satellites.
type LinkRepository interface {
	CreateLink(link *models.ShortLink) error
	GetLinkByCode(code string) (*models.ShortLink, error)
	GetAllLinks() ([]models.ShortLink, error)
	UpdateLink(link *models.ShortLink) error
	CodeExists(code string) (bool, error)

	// IncrementAccess bumps the access counter and last-accessed stamp with
	// a single storage-side update, never read-modify-write in memory.
	IncrementAccess(linkID uint, at time.Time) error
	IncrementVariantAccess(variantID uint) error
	IncrementVariantConversion(variantID uint) error

	// DeactivateIfActive flips active to false only when it is still true
	// and reports whether this call won that update. It is the gate for
	// one-time-use consumption under concurrent redirects.
	DeactivateIfActive(linkID uint) (bool, error)

	// DeactivateExpired flips every active link whose expiry has passed and
	// returns how many rows changed.
	DeactivateExpired(now time.Time) (int64, error)

	SaveScanResult(result *models.ScanResult) error
	GetScanResult(linkID uint) (*models.ScanResult, error)
}

// GormLinkRepository implements LinkRepository with GORM.
type GormLinkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) *GormLinkRepository {
	return &GormLinkRepository{db: db}
}

// CreateLink inserts a link together with any attached variants and
// restriction associations.
func (r *GormLinkRepository) CreateLink(link *models.ShortLink) error {
	if err := r.db.Create(link).Error; err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

// GetLinkByCode fetches a link with its variants and IP restrictions
// preloaded. Returns ErrLinkNotFound when the code is unknown.
func (r *GormLinkRepository) GetLinkByCode(code string) (*models.ShortLink, error) {
	var link models.ShortLink
	err := r.db.Preload("Variants").Preload("IPRestrictions").
		Where("code = ?", code).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *GormLinkRepository) GetAllLinks() ([]models.ShortLink, error) {
	var links []models.ShortLink
	if err := r.db.Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve all links: %w", err)
	}
	return links, nil
}

// UpdateLink persists changed fields and returns the row as written;
// callers keep working with the same struct, no re-read round trip.
func (r *GormLinkRepository) UpdateLink(link *models.ShortLink) error {
	if err := r.db.Save(link).Error; err != nil {
		return fmt.Errorf("failed to update link %d: %w", link.ID, err)
	}
	return nil
}

func (r *GormLinkRepository) CodeExists(code string) (bool, error) {
	var count int64
	err := r.db.Model(&models.ShortLink{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return count > 0, nil
}

func (r *GormLinkRepository) IncrementAccess(linkID uint, at time.Time) error {
	err := r.db.Model(&models.ShortLink{}).Where("id = ?", linkID).
		Updates(map[string]any{
			"access_count":  gorm.Expr("access_count + 1"),
			"last_accessed": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to increment access count for link %d: %w", linkID, err)
	}
	return nil
}

func (r *GormLinkRepository) IncrementVariantAccess(variantID uint) error {
	err := r.db.Model(&models.ABTestVariant{}).Where("id = ?", variantID).
		Update("access_count", gorm.Expr("access_count + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment access count for variant %d: %w", variantID, err)
	}
	return nil
}

func (r *GormLinkRepository) IncrementVariantConversion(variantID uint) error {
	err := r.db.Model(&models.ABTestVariant{}).Where("id = ?", variantID).
		Update("conversion_count", gorm.Expr("conversion_count + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment conversion count for variant %d: %w", variantID, err)
	}
	return nil
}

func (r *GormLinkRepository) DeactivateIfActive(linkID uint) (bool, error) {
	res := r.db.Model(&models.ShortLink{}).
		Where("id = ? AND is_active = ?", linkID, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, fmt.Errorf("failed to deactivate link %d: %w", linkID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormLinkRepository) DeactivateExpired(now time.Time) (int64, error) {
	res := r.db.Model(&models.ShortLink{}).
		Where("expires_at IS NOT NULL AND expires_at < ? AND is_active = ?", now, true).
		Update("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to deactivate expired links: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormLinkRepository) SaveScanResult(result *models.ScanResult) error {
	var existing models.ScanResult
	err := r.db.Where("link_id = ?", result.LinkID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = r.db.Create(result).Error
	case err == nil:
		result.ID = existing.ID
		err = r.db.Save(result).Error
	}
	if err != nil {
		return fmt.Errorf("failed to save scan result for link %d: %w", result.LinkID, err)
	}
	return nil
}

func (r *GormLinkRepository) GetScanResult(linkID uint) (*models.ScanResult, error) {
	var result models.ScanResult
	if err := r.db.Where("link_id = ?", linkID).First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

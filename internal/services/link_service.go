// Package services contains the business logic layer for the URL shortener.
package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/BotCoder254/URLBriefr/internal/cache"
	apperrors "github.com/BotCoder254/URLBriefr/internal/errors"
	"github.com/BotCoder254/URLBriefr/internal/models"
	"github.com/BotCoder254/URLBriefr/internal/repository"
	"github.com/BotCoder254/URLBriefr/internal/security"
)

// charset for generated short codes: 62 alphanumeric characters, so a
// 6-character code has ~56 billion combinations.
const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// VariantInput describes one A/B destination on a create or clone request.
type VariantInput struct {
	DestinationURL string `json:"destination_url" binding:"required,url"`
	Name           string `json:"name"`
	Weight         int    `json:"weight" binding:"required,min=1,max=100"`
}

// CreateLinkInput carries everything a shorten request can specify.
type CreateLinkInput struct {
	OriginalURL string
	CustomCode  string
	Title       string

	OwnerID   *uint
	OwnerRole string

	ExpiresAt  *time.Time
	OneTimeUse bool

	RedirectType    string
	RedirectDelay   int
	RedirectMessage string
	BrandName       string
	BrandLogoURL    string

	EnablePreview            bool
	EnableIPRestrictions     bool
	RestrictionIDs           []uint
	EnableSpoofingProtection bool

	Variants []VariantInput
}

// CloneOverrides are the optional field overrides applied when cloning.
type CloneOverrides struct {
	OriginalURL string
	Title       string
	ExpiresAt   *time.Time
}

// LinkService implements link lifecycle operations: creation with unique
// code generation, cloning, stats aggregation and the expiry sweep.
type LinkService struct {
	linkRepo   repository.LinkRepository
	clickRepo  repository.ClickRepository
	verifier   *security.IntegrityVerifier
	linkCache  *cache.Cache
	codeLength int
	maxRetries int
}

func NewLinkService(linkRepo repository.LinkRepository, clickRepo repository.ClickRepository, verifier *security.IntegrityVerifier, linkCache *cache.Cache, codeLength, maxRetries int) *LinkService {
	if codeLength <= 0 {
		codeLength = 6
	}
	if maxRetries <= 0 {
		maxRetries = 10
	}
	return &LinkService{
		linkRepo:   linkRepo,
		clickRepo:  clickRepo,
		verifier:   verifier,
		linkCache:  linkCache,
		codeLength: codeLength,
		maxRetries: maxRetries,
	}
}

// GenerateCode returns a cryptographically random short code of the given
// length.
func (s *LinkService) GenerateCode(length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// uniqueCode generates codes until one is unused, up to the retry cap.
// Exhaustion means the namespace is effectively full and is surfaced as
// ErrCodeGenerationFailed.
func (s *LinkService) uniqueCode() (string, error) {
	for i := 0; i < s.maxRetries; i++ {
		code, err := s.GenerateCode(s.codeLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate short code: %w", err)
		}
		exists, err := s.linkRepo.CodeExists(code)
		if err != nil {
			return "", fmt.Errorf("database error checking short code uniqueness: %w", err)
		}
		if !exists {
			return code, nil
		}
		log.Printf("Short code '%s' already exists, retrying generation (%d/%d)...", code, i+1, s.maxRetries)
	}
	return "", apperrors.ErrCodeGenerationFailed
}

// CreateLink creates a new short link. Custom codes are checked for
// availability; generated codes retry until unique. When variants are
// supplied the link becomes an A/B test, and the variant set must be valid
// up front: accepting a broken set would silently disable the test at
// redirect time.
func (s *LinkService) CreateLink(input CreateLinkInput) (*models.ShortLink, error) {
	var code string
	var err error

	if input.CustomCode != "" {
		exists, err := s.linkRepo.CodeExists(input.CustomCode)
		if err != nil {
			return nil, fmt.Errorf("database error checking custom code: %w", err)
		}
		if exists {
			return nil, apperrors.ErrCodeTaken
		}
		code = input.CustomCode
	} else {
		code, err = s.uniqueCode()
		if err != nil {
			return nil, err
		}
	}

	redirectType := input.RedirectType
	if redirectType == "" {
		redirectType = models.RedirectTypeDirect
	}

	link := &models.ShortLink{
		Code:                     code,
		OriginalURL:              input.OriginalURL,
		Title:                    input.Title,
		IsActive:                 true,
		ExpiresAt:                input.ExpiresAt,
		OwnerID:                  input.OwnerID,
		OwnerRole:                input.OwnerRole,
		IsCustomCode:             input.CustomCode != "",
		OneTimeUse:               input.OneTimeUse,
		RedirectType:             redirectType,
		RedirectDelay:            input.RedirectDelay,
		RedirectMessage:          input.RedirectMessage,
		BrandName:                input.BrandName,
		BrandLogoURL:             input.BrandLogoURL,
		EnablePreview:            input.EnablePreview,
		EnableIPRestrictions:     input.EnableIPRestrictions,
		EnableSpoofingProtection: input.EnableSpoofingProtection,
	}

	if len(input.Variants) > 0 {
		variants := make([]models.ABTestVariant, len(input.Variants))
		for i, v := range input.Variants {
			variants[i] = models.ABTestVariant{
				DestinationURL: v.DestinationURL,
				Name:           v.Name,
				Weight:         v.Weight,
			}
		}
		if !validWeights(variants) {
			return nil, apperrors.ErrInvalidVariants
		}
		link.IsABTest = true
		link.Variants = variants
	}

	if len(input.RestrictionIDs) > 0 {
		restrictions := make([]models.IPRestriction, len(input.RestrictionIDs))
		for i, id := range input.RestrictionIDs {
			restrictions[i] = models.IPRestriction{ID: id}
		}
		link.IPRestrictions = restrictions
	}

	if link.EnableSpoofingProtection {
		hash := s.verifier.Generate(link)
		link.IntegrityHash = &hash
	}

	if err := s.linkRepo.CreateLink(link); err != nil {
		return nil, err
	}
	return link, nil
}

func validWeights(variants []models.ABTestVariant) bool {
	if len(variants) < 2 {
		return false
	}
	total := 0
	for _, v := range variants {
		if v.Weight < 1 || v.Weight > 100 {
			return false
		}
		total += v.Weight
	}
	return total == 100
}

// CloneLink creates a new link copying the source link's configuration with
// a freshly generated code. Counters start at zero, overrides apply on top,
// and the integrity hash is recomputed for the new code.
func (s *LinkService) CloneLink(sourceCode string, overrides CloneOverrides) (*models.ShortLink, error) {
	source, err := s.linkRepo.GetLinkByCode(sourceCode)
	if err != nil {
		return nil, err
	}

	code, err := s.uniqueCode()
	if err != nil {
		return nil, err
	}

	clone := &models.ShortLink{
		Code:                     code,
		OriginalURL:              source.OriginalURL,
		Title:                    source.Title,
		IsActive:                 true,
		ExpiresAt:                source.ExpiresAt,
		OwnerID:                  source.OwnerID,
		OwnerRole:                source.OwnerRole,
		OneTimeUse:               source.OneTimeUse,
		RedirectType:             source.RedirectType,
		RedirectDelay:            source.RedirectDelay,
		RedirectMessage:          source.RedirectMessage,
		BrandName:                source.BrandName,
		BrandLogoURL:             source.BrandLogoURL,
		EnablePreview:            source.EnablePreview,
		EnableIPRestrictions:     source.EnableIPRestrictions,
		EnableSpoofingProtection: source.EnableSpoofingProtection,
		ClonedFromID:             &source.ID,
	}

	if overrides.OriginalURL != "" {
		clone.OriginalURL = overrides.OriginalURL
	}
	if overrides.Title != "" {
		clone.Title = overrides.Title
	}
	if overrides.ExpiresAt != nil {
		clone.ExpiresAt = overrides.ExpiresAt
	}

	if source.IsABTest && len(source.Variants) > 0 {
		clone.IsABTest = true
		clone.Variants = make([]models.ABTestVariant, len(source.Variants))
		for i, v := range source.Variants {
			clone.Variants[i] = models.ABTestVariant{
				DestinationURL: v.DestinationURL,
				Name:           v.Name,
				Weight:         v.Weight,
			}
		}
	}

	if len(source.IPRestrictions) > 0 {
		clone.IPRestrictions = source.IPRestrictions
	}

	if clone.EnableSpoofingProtection {
		hash := s.verifier.Generate(clone)
		clone.IntegrityHash = &hash
	}

	if err := s.linkRepo.CreateLink(clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// GetLinkByCode retrieves a link with its associations.
func (s *LinkService) GetLinkByCode(code string) (*models.ShortLink, error) {
	return s.linkRepo.GetLinkByCode(code)
}

// UpdateLink saves link edits, regenerates the integrity hash when the
// protected identity fields may have changed, and drops any stale cache
// entry.
func (s *LinkService) UpdateLink(ctx context.Context, link *models.ShortLink) error {
	if link.EnableSpoofingProtection {
		hash := s.verifier.Generate(link)
		link.IntegrityHash = &hash
	}
	if err := s.linkRepo.UpdateLink(link); err != nil {
		return err
	}
	if err := s.linkCache.Invalidate(ctx, link.Code); err != nil {
		log.Printf("WARNING: failed to invalidate cache for %s: %v", link.Code, err)
	}
	return nil
}

// LinkStats aggregates a link's analytics for the stats endpoint.
type LinkStats struct {
	Link            *models.ShortLink       `json:"link"`
	TotalClicks     int64                   `json:"total_clicks"`
	ClicksByDate    []repository.DayCount   `json:"clicks_by_date"`
	ClicksByBrowser []repository.FieldCount `json:"clicks_by_browser"`
	ClicksByDevice  []repository.FieldCount `json:"clicks_by_device"`
	ClicksByOS      []repository.FieldCount `json:"clicks_by_os"`
	ClicksByCountry []repository.FieldCount `json:"clicks_by_country"`
	TopReferrers    []repository.FieldCount `json:"top_referrers"`
	RecentClicks    []models.ClickEvent     `json:"recent_clicks"`
}

// GetLinkStats returns the link plus its click aggregations over the last
// 30 days.
func (s *LinkService) GetLinkStats(code string) (*LinkStats, error) {
	link, err := s.linkRepo.GetLinkByCode(code)
	if err != nil {
		return nil, err
	}

	stats := &LinkStats{Link: link}

	if stats.TotalClicks, err = s.clickRepo.CountClicksByLinkID(link.ID); err != nil {
		return nil, err
	}
	if stats.ClicksByDate, err = s.clickRepo.ClicksByDay(link.ID, 30); err != nil {
		return nil, err
	}
	if stats.ClicksByBrowser, err = s.clickRepo.ClicksByField(link.ID, "browser"); err != nil {
		return nil, err
	}
	if stats.ClicksByDevice, err = s.clickRepo.ClicksByField(link.ID, "device"); err != nil {
		return nil, err
	}
	if stats.ClicksByOS, err = s.clickRepo.ClicksByField(link.ID, "os"); err != nil {
		return nil, err
	}
	if stats.ClicksByCountry, err = s.clickRepo.ClicksByField(link.ID, "country"); err != nil {
		return nil, err
	}
	if stats.TopReferrers, err = s.clickRepo.ClicksByField(link.ID, "referrer"); err != nil {
		return nil, err
	}
	if stats.RecentClicks, err = s.clickRepo.RecentClicks(link.ID, 10); err != nil {
		return nil, err
	}
	return stats, nil
}

// DeactivateExpired runs one expiry sweep pass and returns how many links
// were flipped inactive.
func (s *LinkService) DeactivateExpired(now time.Time) (int64, error) {
	return s.linkRepo.DeactivateExpired(now)
}

// RecordScan persists a malware scan outcome for the link.
func (s *LinkService) RecordScan(linkID uint, result *models.ScanResult) error {
	result.LinkID = linkID
	return s.linkRepo.SaveScanResult(result)
}

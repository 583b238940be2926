package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "github.com/BotCoder254/URLBriefr/internal/errors"
	"github.com/BotCoder254/URLBriefr/internal/models"
	"github.com/BotCoder254/URLBriefr/internal/repository"
	"github.com/BotCoder254/URLBriefr/internal/security"
)

func newLinkService(t *testing.T) (*LinkService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.ShortLink{},
		&models.ABTestVariant{},
		&models.IPRestriction{},
		&models.ClickEvent{},
		&models.UserSession{},
		&models.SpoofingAttempt{},
		&models.ScanResult{},
	))

	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickRepository(db)
	verifier := security.NewIntegrityVerifier("test-secret")
	return NewLinkService(linkRepo, clickRepo, verifier, nil, 6, 10), db
}

func TestGenerateCodeLengthAndCharset(t *testing.T) {
	svc, _ := newLinkService(t)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := svc.GenerateCode(6)
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.Contains(t, charset, string(r))
		}
		seen[code] = true
	}
	// 100 draws from a 62^6 space colliding would mean a broken generator.
	assert.Len(t, seen, 100)
}

func TestCreateLinkGeneratesUniqueCode(t *testing.T) {
	svc, _ := newLinkService(t)

	a, err := svc.CreateLink(CreateLinkInput{OriginalURL: "https://example.com/a"})
	require.NoError(t, err)
	b, err := svc.CreateLink(CreateLinkInput{OriginalURL: "https://example.com/b"})
	require.NoError(t, err)

	assert.Len(t, a.Code, 6)
	assert.NotEqual(t, a.Code, b.Code)
	assert.False(t, a.IsCustomCode)
	assert.True(t, a.IsActive)
}

func TestCreateLinkCustomCodeConflict(t *testing.T) {
	svc, _ := newLinkService(t)

	link, err := svc.CreateLink(CreateLinkInput{OriginalURL: "https://example.com", CustomCode: "mine"})
	require.NoError(t, err)
	assert.Equal(t, "mine", link.Code)
	assert.True(t, link.IsCustomCode)

	_, err = svc.CreateLink(CreateLinkInput{OriginalURL: "https://example.org", CustomCode: "mine"})
	assert.ErrorIs(t, err, apperrors.ErrCodeTaken)
}

func TestCreateLinkRejectsInvalidVariantWeights(t *testing.T) {
	svc, _ := newLinkService(t)

	tests := []struct {
		name     string
		variants []VariantInput
	}{
		{"sum below 100", []VariantInput{
			{DestinationURL: "https://a.example", Weight: 40},
			{DestinationURL: "https://b.example", Weight: 40},
		}},
		{"sum above 100", []VariantInput{
			{DestinationURL: "https://a.example", Weight: 60},
			{DestinationURL: "https://b.example", Weight: 60},
		}},
		{"single variant", []VariantInput{
			{DestinationURL: "https://a.example", Weight: 100},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateLink(CreateLinkInput{
				OriginalURL: "https://example.com",
				Variants:    tt.variants,
			})
			assert.ErrorIs(t, err, apperrors.ErrInvalidVariants)
		})
	}
}

func TestCreateLinkWithSpoofingProtectionStoresHash(t *testing.T) {
	svc, _ := newLinkService(t)

	link, err := svc.CreateLink(CreateLinkInput{
		OriginalURL:              "https://example.com",
		EnableSpoofingProtection: true,
	})
	require.NoError(t, err)
	require.NotNil(t, link.IntegrityHash)
	assert.Len(t, *link.IntegrityHash, 64)
}

func TestCloneLinkGetsFreshCodeAndZeroCounters(t *testing.T) {
	svc, db := newLinkService(t)

	source, err := svc.CreateLink(CreateLinkInput{
		OriginalURL:              "https://example.com/product",
		CustomCode:               "orig01",
		Title:                    "Product",
		EnableSpoofingProtection: true,
		Variants: []VariantInput{
			{DestinationURL: "https://example.com/v1", Weight: 30},
			{DestinationURL: "https://example.com/v2", Weight: 70},
		},
	})
	require.NoError(t, err)

	// Give the source some history the clone must not inherit.
	require.NoError(t, db.Model(&models.ShortLink{}).
		Where("id = ?", source.ID).
		Update("access_count", 42).Error)

	clone, err := svc.CloneLink("orig01", CloneOverrides{Title: "Product v2"})
	require.NoError(t, err)

	assert.NotEqual(t, source.Code, clone.Code)
	assert.Len(t, clone.Code, 6)
	assert.Equal(t, "https://example.com/product", clone.OriginalURL)
	assert.Equal(t, "Product v2", clone.Title)
	assert.Equal(t, uint(0), clone.AccessCount)
	require.NotNil(t, clone.ClonedFromID)
	assert.Equal(t, source.ID, *clone.ClonedFromID)

	// Variant copies belong to the clone and start from zero.
	require.Len(t, clone.Variants, 2)
	for _, v := range clone.Variants {
		assert.Equal(t, clone.ID, v.LinkID)
		assert.Equal(t, uint(0), v.AccessCount)
	}

	// The hash covers the clone's own code, not the source's.
	require.NotNil(t, clone.IntegrityHash)
	require.NotNil(t, source.IntegrityHash)
	assert.NotEqual(t, *source.IntegrityHash, *clone.IntegrityHash)
}

func TestCloneLinkUnknownSource(t *testing.T) {
	svc, _ := newLinkService(t)

	_, err := svc.CloneLink("nosuch", CloneOverrides{})
	assert.ErrorIs(t, err, apperrors.ErrLinkNotFound)
}

func TestDeactivateExpiredSweep(t *testing.T) {
	svc, _ := newLinkService(t)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired, err := svc.CreateLink(CreateLinkInput{OriginalURL: "https://example.com/a", ExpiresAt: &past})
	require.NoError(t, err)
	fresh, err := svc.CreateLink(CreateLinkInput{OriginalURL: "https://example.com/b", ExpiresAt: &future})
	require.NoError(t, err)
	forever, err := svc.CreateLink(CreateLinkInput{OriginalURL: "https://example.com/c"})
	require.NoError(t, err)

	n, err := svc.DeactivateExpired(time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	check := func(code string, wantActive bool) {
		link, err := svc.GetLinkByCode(code)
		require.NoError(t, err)
		assert.Equal(t, wantActive, link.IsActive, code)
	}
	check(expired.Code, false)
	check(fresh.Code, true)
	check(forever.Code, true)

	// A second sweep finds nothing left to do.
	n, err = svc.DeactivateExpired(time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestGetLinkStatsAggregates(t *testing.T) {
	svc, db := newLinkService(t)

	link, err := svc.CreateLink(CreateLinkInput{OriginalURL: "https://example.com", CustomCode: "stat01"})
	require.NoError(t, err)

	now := time.Now()
	clicks := []models.ClickEvent{
		{LinkID: link.ID, Timestamp: now, Browser: "Chrome 120", Device: "Desktop", OS: "Windows 10", Country: "France", Referrer: "https://twitter.com/", SessionID: "s1"},
		{LinkID: link.ID, Timestamp: now, Browser: "Chrome 120", Device: "Mobile", OS: "Android 14", Country: "France", Referrer: "https://twitter.com/", SessionID: "s2"},
		{LinkID: link.ID, Timestamp: now, Browser: "Firefox 121", Device: "Desktop", OS: "Linux", Country: "Germany", SessionID: "s3"},
	}
	for i := range clicks {
		require.NoError(t, db.Create(&clicks[i]).Error)
	}

	stats, err := svc.GetLinkStats("stat01")
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalClicks)
	require.NotEmpty(t, stats.ClicksByBrowser)
	assert.Equal(t, "Chrome 120", stats.ClicksByBrowser[0].Value)
	assert.Equal(t, int64(2), stats.ClicksByBrowser[0].Count)
	require.NotEmpty(t, stats.ClicksByCountry)
	assert.Equal(t, "France", stats.ClicksByCountry[0].Value)
	require.NotEmpty(t, stats.TopReferrers)
	assert.Equal(t, "https://twitter.com/", stats.TopReferrers[0].Value)
	assert.Len(t, stats.RecentClicks, 3)
}

func TestRecordScanUpserts(t *testing.T) {
	svc, db := newLinkService(t)

	link, err := svc.CreateLink(CreateLinkInput{OriginalURL: "https://example.com", CustomCode: "scan01"})
	require.NoError(t, err)

	require.NoError(t, svc.RecordScan(link.ID, &models.ScanResult{
		Status:          models.ScanStatusClean,
		ConfidenceScore: 1.0,
	}))
	require.NoError(t, svc.RecordScan(link.ID, &models.ScanResult{
		Status:          models.ScanStatusSuspicious,
		Details:         "suspicious TLD",
		ConfidenceScore: 0.4,
	}))

	var results []models.ScanResult
	require.NoError(t, db.Where("link_id = ?", link.ID).Find(&results).Error)
	require.Len(t, results, 1)
	assert.Equal(t, models.ScanStatusSuspicious, results[0].Status)
}

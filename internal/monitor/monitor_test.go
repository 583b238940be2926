package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BotCoder254/URLBriefr/internal/models"
	"github.com/BotCoder254/URLBriefr/internal/repository"
)

func newMonitorEnv(t *testing.T) (*Monitor, repository.LinkRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.ShortLink{}, &models.ABTestVariant{}, &models.IPRestriction{}))

	linkRepo := repository.NewLinkRepository(db)
	return NewMonitor(linkRepo, time.Minute), linkRepo
}

func TestSweepDeactivatesExpiredLinks(t *testing.T) {
	m, linkRepo := newMonitorEnv(t)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	require.NoError(t, linkRepo.CreateLink(&models.ShortLink{
		Code: "gone01", OriginalURL: "https://example.com", IsActive: true, ExpiresAt: &past,
	}))
	require.NoError(t, linkRepo.CreateLink(&models.ShortLink{
		Code: "live01", OriginalURL: "https://example.com", IsActive: true, ExpiresAt: &future,
	}))

	m.deactivateExpired()

	gone, err := linkRepo.GetLinkByCode("gone01")
	require.NoError(t, err)
	assert.False(t, gone.IsActive)

	live, err := linkRepo.GetLinkByCode("live01")
	require.NoError(t, err)
	assert.True(t, live.IsActive)
}

func TestCheckDestinationsTracksState(t *testing.T) {
	m, linkRepo := newMonitorEnv(t)

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	up := &models.ShortLink{Code: "up0001", OriginalURL: healthy.URL, IsActive: true}
	down := &models.ShortLink{Code: "down01", OriginalURL: broken.URL, IsActive: true}
	skipped := &models.ShortLink{Code: "off001", OriginalURL: broken.URL, IsActive: false}
	require.NoError(t, linkRepo.CreateLink(up))
	require.NoError(t, linkRepo.CreateLink(down))
	require.NoError(t, linkRepo.CreateLink(skipped))

	m.checkDestinations(context.Background())

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.True(t, m.knownStates[up.ID])
	assert.False(t, m.knownStates[down.ID])
	_, tracked := m.knownStates[skipped.ID]
	assert.False(t, tracked, "inactive links are not health-checked")
}

func TestIsURLAccessible(t *testing.T) {
	m, _ := newMonitorEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	assert.True(t, m.isURLAccessible(context.Background(), srv.URL))
	assert.False(t, m.isURLAccessible(context.Background(), "http://127.0.0.1:1/nope"))
}

package safety

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BotCoder254/URLBriefr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicCleanURL(t *testing.T) {
	outcome := HeuristicCheck("https://example.com/articles/go-tips")
	assert.Equal(t, models.ScanStatusClean, outcome.Status)
	assert.Greater(t, outcome.Confidence, 0.5)
}

func TestHeuristicSuspiciousTLDAndKeywords(t *testing.T) {
	outcome := HeuristicCheck("https://secure-login-verify-paypal.example.tk")
	assert.Equal(t, models.ScanStatusSuspicious, outcome.Status)
	assert.GreaterOrEqual(t, outcome.Confidence, 0.4)
}

func TestHeuristicRawIPHost(t *testing.T) {
	clean := HeuristicCheck("https://198.51.100.4/file")
	ip := clean.Confidence
	named := HeuristicCheck("https://example.org/file").Confidence
	// Same path, raw IP host scores worse.
	assert.Less(t, ip, named)
}

func TestScanPrefersSafeBrowsingMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"matches":[{"threatType":"MALWARE"}]}`))
	}))
	defer server.Close()

	s := NewScanner("test-key")
	s.endpoint = server.URL

	outcome := s.Scan(context.Background(), "https://example.com")
	assert.Equal(t, models.ScanStatusMalicious, outcome.Status)
	require.Len(t, outcome.ThreatTypes, 1)
	assert.Equal(t, "MALWARE", outcome.ThreatTypes[0])
}

func TestScanFallsBackToHeuristicsOnAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewScanner("test-key")
	s.endpoint = server.URL

	outcome := s.Scan(context.Background(), "https://example.com/articles")
	assert.Equal(t, models.ScanStatusClean, outcome.Status)
}

func TestScanWithoutAPIKeyUsesHeuristics(t *testing.T) {
	s := NewScanner("")
	outcome := s.Scan(context.Background(), "https://example.com")
	assert.Equal(t, models.ScanStatusClean, outcome.Status)
}

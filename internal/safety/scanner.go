// Package safety scans destination URLs for malware and phishing signals.
// A heuristic check always runs; when a Google Safe Browsing API key is
// configured, a positive match there takes precedence.
package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BotCoder254/URLBriefr/internal/models"
)

var phishingKeywords = []string{
	"login", "verify", "account", "secure", "banking", "password",
	"credential", "confirm", "update", "paypal", "ebay", "amazon",
	"apple", "microsoft", "google", "facebook", "instagram", "netflix",
	"wallet", "crypto", "bitcoin", "bank", "credit", "debit",
}

var suspiciousTLDs = []string{".tk", ".top", ".xyz", ".gq", ".ml", ".ga", ".cf"}

const safeBrowsingEndpoint = "https://safebrowsing.googleapis.com/v4/threatMatches:find"

// Outcome is the result of scanning one URL.
type Outcome struct {
	Status      string
	Details     string
	ThreatTypes []string
	Confidence  float64
}

// Scanner checks URLs against heuristics and, optionally, Safe Browsing.
type Scanner struct {
	apiKey     string
	httpClient *http.Client
	endpoint   string
}

func NewScanner(apiKey string) *Scanner {
	return &Scanner{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   safeBrowsingEndpoint,
	}
}

// Scan evaluates the URL. Safe Browsing runs first when configured; its
// failures fall through to the heuristics so scanning always yields a result.
func (s *Scanner) Scan(ctx context.Context, target string) Outcome {
	if s.apiKey != "" {
		if matched, threats, err := s.safeBrowsingLookup(ctx, target); err == nil && matched {
			return Outcome{
				Status:      models.ScanStatusMalicious,
				Details:     "Detected by Google Safe Browsing API",
				ThreatTypes: threats,
				Confidence:  0.9,
			}
		}
	}
	return HeuristicCheck(target)
}

// HeuristicCheck scores a URL on suspicious TLDs, phishing keywords, raw IP
// hosts and excessive subdomains. Thresholds: >= 0.4 suspicious, below that
// clean.
func HeuristicCheck(target string) Outcome {
	lower := strings.ToLower(target)

	score := 0.0
	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(hostOf(lower), tld) {
			score += 0.3
			break
		}
	}

	keywordScore := 0.0
	for _, kw := range phishingKeywords {
		if strings.Contains(lower, kw) {
			keywordScore += 0.1
		}
	}
	if keywordScore > 0.5 {
		keywordScore = 0.5
	}
	score += keywordScore

	if hostIsIP(lower) {
		score += 0.2
	}
	if strings.Count(lower, ".") > 3 {
		score += 0.2
	}

	switch {
	case score >= 0.7:
		return Outcome{
			Status:     models.ScanStatusSuspicious,
			Details:    "URL contains suspicious patterns that may indicate phishing",
			Confidence: score,
		}
	case score >= 0.4:
		return Outcome{
			Status:     models.ScanStatusSuspicious,
			Details:    "URL contains some patterns that may be concerning",
			Confidence: score,
		}
	default:
		return Outcome{
			Status:     models.ScanStatusClean,
			Details:    "No obvious threats detected",
			Confidence: 1 - score,
		}
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Hostname()
}

func hostIsIP(raw string) bool {
	host := hostOf(raw)
	if host == "" {
		return false
	}
	stripped := strings.ReplaceAll(host, ".", "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return strings.Contains(host, ".")
}

type threatMatch struct {
	ThreatType string `json:"threatType"`
}

type safeBrowsingResponse struct {
	Matches []threatMatch `json:"matches"`
}

func (s *Scanner) safeBrowsingLookup(ctx context.Context, target string) (bool, []string, error) {
	payload := map[string]any{
		"client": map[string]string{
			"clientId":      "urlbriefr",
			"clientVersion": "1.0.0",
		},
		"threatInfo": map[string]any{
			"threatTypes": []string{
				"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE", "POTENTIALLY_HARMFUL_APPLICATION",
			},
			"platformTypes":    []string{"ANY_PLATFORM"},
			"threatEntryTypes": []string{"URL"},
			"threatEntries":    []map[string]string{{"url": target}},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"?key="+url.QueryEscape(s.apiKey), bytes.NewReader(body))
	if err != nil {
		return false, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil, fmt.Errorf("safe browsing API returned status %d", resp.StatusCode)
	}

	var parsed safeBrowsingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, nil, err
	}

	if len(parsed.Matches) == 0 {
		return false, nil, nil
	}
	threats := make([]string, len(parsed.Matches))
	for i, m := range parsed.Matches {
		threats[i] = m.ThreatType
	}
	return true, threats, nil
}

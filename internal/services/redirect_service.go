package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"

	"github.com/BotCoder254/URLBriefr/internal/abtest"
	"github.com/BotCoder254/URLBriefr/internal/cache"
	apperrors "github.com/BotCoder254/URLBriefr/internal/errors"
	"github.com/BotCoder254/URLBriefr/internal/geoip"
	"github.com/BotCoder254/URLBriefr/internal/models"
	"github.com/BotCoder254/URLBriefr/internal/repository"
	"github.com/BotCoder254/URLBriefr/internal/security"
)

// RequestContext is what the redirect path knows about the inbound request.
// SessionToken is optional; when a client replays the token it received on a
// previous interstitial response, repeat visits land on the same session row.
type RequestContext struct {
	IP           string
	UserAgent    string
	Referrer     string
	SessionToken string
}

// PreviewData mirrors the link's stored destination preview for the
// interstitial payload.
type PreviewData struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// RedirectSettings describes the client-rendered interstitial page.
type RedirectSettings struct {
	PageType     string       `json:"page_type"`
	Delay        int          `json:"delay"`
	Message      string       `json:"message,omitempty"`
	Title        string       `json:"title,omitempty"`
	BrandName    string       `json:"brand_name,omitempty"`
	BrandLogoURL string       `json:"brand_logo_url,omitempty"`
	SessionID    string       `json:"session_id"`
	PreviewData  *PreviewData `json:"preview_data,omitempty"`
	OneTimeUse   bool         `json:"one_time_use"`
}

// RedirectOutcome is the single result of resolving a short code: either a
// plain destination to redirect to, or an interstitial description.
type RedirectOutcome struct {
	DestinationURL string
	Interstitial   bool
	Settings       *RedirectSettings
	SessionID      string
}

// RedirectService is the orchestrator for the redirect pipeline. It owns the
// full decision: state gating, security policy, variant selection, analytics
// and the response shape.
type RedirectService struct {
	linkRepo  repository.LinkRepository
	clickRepo repository.ClickRepository
	verifier  *security.IntegrityVerifier
	selector  *abtest.Selector
	geo       geoip.Resolver
	linkCache *cache.Cache
	sink      AnalyticsSink

	geoTimeout time.Duration
	now        func() time.Time
}

// NewRedirectService wires the orchestrator. linkCache may be nil; geo must
// not be (use geoip.NoopResolver when no database is configured).
func NewRedirectService(
	linkRepo repository.LinkRepository,
	clickRepo repository.ClickRepository,
	verifier *security.IntegrityVerifier,
	selector *abtest.Selector,
	geo geoip.Resolver,
	linkCache *cache.Cache,
	sink AnalyticsSink,
	geoTimeout time.Duration,
) *RedirectService {
	if geoTimeout <= 0 {
		geoTimeout = 2 * time.Second
	}
	return &RedirectService{
		linkRepo:   linkRepo,
		clickRepo:  clickRepo,
		verifier:   verifier,
		selector:   selector,
		geo:        geo,
		linkCache:  linkCache,
		sink:       sink,
		geoTimeout: geoTimeout,
		now:        time.Now,
	}
}

// Resolve runs the redirect pipeline for a short code. Gating checks run
// first and short-circuit with dedicated errors before any state mutation;
// analytics and counters only move once the destination is settled.
func (s *RedirectService) Resolve(ctx context.Context, code string, rc RequestContext) (*RedirectOutcome, error) {
	link, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now()

	// Gating, in order: active flag, live expiry, IP policy, integrity.
	if !link.IsActive {
		return nil, apperrors.ErrLinkInactive
	}
	if link.IsExpired(now) {
		return nil, apperrors.ErrLinkExpired
	}
	if link.EnableIPRestrictions {
		if !security.IsAllowed(link.IPRestrictions, rc.IP) {
			return nil, apperrors.ErrIPRestricted
		}
	}
	if link.EnableSpoofingProtection {
		if !s.verifier.Verify(link) {
			s.logSpoofingAttempt(link, rc, now)
			return nil, apperrors.ErrTampered
		}
	}

	// One-time-use consumption is the concurrency gate: only the request
	// that wins the conditional deactivation delivers the destination. The
	// loser sees the link as already used.
	if link.OneTimeUse {
		won, err := s.linkRepo.DeactivateIfActive(link.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to consume one-time-use link %d: %w", link.ID, err)
		}
		if !won {
			return nil, apperrors.ErrLinkInactive
		}
		if err := s.linkCache.Invalidate(ctx, link.Code); err != nil {
			log.Printf("WARNING: failed to invalidate cache for %s: %v", link.Code, err)
		}
	}

	// Destination: weighted variant when the A/B invariant holds, primary
	// URL otherwise. A broken variant set silently falls back rather than
	// failing the visitor.
	destination := link.OriginalURL
	var variantID *uint
	if link.IsABTest {
		if abtest.ValidSet(link.Variants) {
			if v := s.selector.Select(link.Variants); v != nil {
				destination = v.DestinationURL
				variantID = &v.ID
			}
		} else {
			log.Printf("WARNING: link %s marked as A/B test with invalid variant set, using primary destination", link.Code)
		}
	}

	// Informational enrichment from here on: failures degrade, never block.
	geoCtx, cancel := context.WithTimeout(ctx, s.geoTimeout)
	location := s.geo.Resolve(geoCtx, rc.IP)
	cancel()

	sessionID := rc.SessionToken
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	browser, device, osName := parseUserAgent(rc.UserAgent)
	s.sink.Publish(models.AnalyticsEvent{
		LinkID:    link.ID,
		VariantID: variantID,
		Timestamp: now,
		IPAddress: rc.IP,
		UserAgent: rc.UserAgent,
		Browser:   browser,
		Device:    device,
		OS:        osName,
		Country:   location.Country,
		City:      location.City,
		Referrer:  rc.Referrer,
		SessionID: sessionID,
	})

	if err := s.linkRepo.IncrementAccess(link.ID, now); err != nil {
		log.Printf("WARNING: failed to increment access count for link %d: %v", link.ID, err)
	}
	if variantID != nil {
		if err := s.linkRepo.IncrementVariantAccess(*variantID); err != nil {
			log.Printf("WARNING: failed to increment access count for variant %d: %v", *variantID, err)
		}
	}

	outcome := &RedirectOutcome{
		DestinationURL: destination,
		SessionID:      sessionID,
	}
	if link.RedirectType == models.RedirectTypeCustom {
		outcome.Interstitial = true
		outcome.Settings = &RedirectSettings{
			PageType:     link.RedirectType,
			Delay:        link.RedirectDelay,
			Message:      link.RedirectMessage,
			Title:        link.Title,
			BrandName:    link.BrandName,
			BrandLogoURL: link.BrandLogoURL,
			SessionID:    sessionID,
			OneTimeUse:   link.OneTimeUse,
		}
		if link.EnablePreview {
			outcome.Settings.PreviewData = &PreviewData{
				Title:       link.PreviewTitle,
				Description: link.PreviewDescription,
				Image:       link.PreviewImage,
			}
		}
	}
	return outcome, nil
}

// lookup resolves a code to its link, consulting the cache first. One-time-use
// links always go to the store: their active state is consumed per request
// and must never be served stale.
func (s *RedirectService) lookup(ctx context.Context, code string) (*models.ShortLink, error) {
	cached, err := s.linkCache.GetLink(ctx, code)
	if err == nil && !cached.OneTimeUse {
		return cached, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("WARNING: cache lookup for %s failed: %v", code, err)
	}

	link, err := s.linkRepo.GetLinkByCode(code)
	if err != nil {
		return nil, err
	}

	if !link.OneTimeUse {
		if err := s.linkCache.SetLink(ctx, link); err != nil {
			log.Printf("WARNING: failed to cache link %s: %v", code, err)
		}
	}
	return link, nil
}

// logSpoofingAttempt records the audit row for a failed integrity check.
// The write is best-effort: auditing must not mask the tampered response.
func (s *RedirectService) logSpoofingAttempt(link *models.ShortLink, rc RequestContext, now time.Time) {
	expected := s.verifier.Generate(link)
	presented := ""
	if link.IntegrityHash != nil {
		presented = *link.IntegrityHash
	}
	attempt := &models.SpoofingAttempt{
		LinkID:        link.ID,
		Timestamp:     now,
		IPAddress:     rc.IP,
		UserAgent:     rc.UserAgent,
		ExpectedHash:  expected,
		PresentedHash: presented,
	}
	if err := s.clickRepo.CreateSpoofingAttempt(attempt); err != nil {
		log.Printf("ERROR: failed to record spoofing attempt for link %d: %v", link.ID, err)
	}
}

// RecordConversion marks a session's completed-action funnel stage and bumps
// the variant conversion counter when the original click chose a variant.
func (s *RedirectService) RecordConversion(code, sessionID string) error {
	link, err := s.linkRepo.GetLinkByCode(code)
	if err != nil {
		return err
	}
	if err := s.clickRepo.MarkSessionCompleted(link.ID, sessionID); err != nil {
		return err
	}
	if link.IsABTest {
		var clicks []models.ClickEvent
		clicks, err = s.clickRepo.RecentClicks(link.ID, 50)
		if err != nil {
			return err
		}
		for _, c := range clicks {
			if c.SessionID == sessionID && c.VariantID != nil {
				return s.linkRepo.IncrementVariantConversion(*c.VariantID)
			}
		}
	}
	return nil
}

// parseUserAgent extracts browser, device class and OS from a raw UA string.
func parseUserAgent(raw string) (browser, device, osName string) {
	if raw == "" {
		return "", "", ""
	}
	ua := useragent.Parse(raw)

	browser = strings.TrimSpace(ua.Name + " " + ua.Version)
	osName = strings.TrimSpace(ua.OS + " " + ua.OSVersion)

	switch {
	case ua.Device != "":
		device = ua.Device
	case ua.Mobile:
		device = "Mobile"
	case ua.Tablet:
		device = "Tablet"
	case ua.Desktop:
		device = "Desktop"
	case ua.Bot:
		device = "Bot"
	default:
		device = "Other"
	}
	return browser, device, osName
}

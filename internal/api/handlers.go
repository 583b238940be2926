package api

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/BotCoder254/URLBriefr/internal/errors"
	"github.com/BotCoder254/URLBriefr/internal/models"
	"github.com/BotCoder254/URLBriefr/internal/preview"
	"github.com/BotCoder254/URLBriefr/internal/safety"
	"github.com/BotCoder254/URLBriefr/internal/services"
)

// sessionCookie carries the visitor's session token so repeat visits map to
// the same session row instead of minting a fresh id every redirect.
const sessionCookie = "ubr_session"

// Handlers bundles the dependencies the HTTP layer needs.
type Handlers struct {
	links     *services.LinkService
	redirects *services.RedirectService
	scanner   *safety.Scanner
	previews  *preview.Fetcher
	baseURL   string
}

func NewHandlers(links *services.LinkService, redirects *services.RedirectService, scanner *safety.Scanner, previews *preview.Fetcher, baseURL string) *Handlers {
	return &Handlers{
		links:     links,
		redirects: redirects,
		scanner:   scanner,
		previews:  previews,
		baseURL:   baseURL,
	}
}

// SetupRoutes configures all Gin routes.
func SetupRoutes(router *gin.Engine, h *Handlers) {
	router.GET("/health", HealthCheckHandler)

	api := router.Group("/api/v1")
	{
		api.POST("/links", h.CreateLinkHandler)
		api.GET("/links/:code/stats", h.LinkStatsHandler)
		api.POST("/links/:code/clone", h.CloneLinkHandler)
		api.POST("/links/:code/scan", h.ScanLinkHandler)
		api.POST("/links/:code/preview/refresh", h.RefreshPreviewHandler)
		api.POST("/links/:code/conversions", h.ConversionHandler)
	}

	// Resolution endpoint; this is what shortened URLs point at.
	router.GET("/s/:code", h.RedirectHandler)
}

// HealthCheckHandler verifies service availability for load balancers.
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateLinkRequest is the JSON body for creating one or more links.
// Either url or urls must be provided; everything else is optional.
type CreateLinkRequest struct {
	URL  string   `json:"url" binding:"omitempty,url"`
	URLs []string `json:"urls" binding:"omitempty,dive,url"`

	CustomCode string `json:"custom_code" binding:"omitempty,alphanum,max=15"`
	Title      string `json:"title" binding:"omitempty,max=255"`

	ExpiresAt  *time.Time `json:"expires_at"`
	OneTimeUse bool       `json:"one_time_use"`

	RedirectType    string `json:"redirect_type" binding:"omitempty,oneof=direct custom"`
	RedirectDelay   int    `json:"redirect_delay" binding:"omitempty,min=0,max=60"`
	RedirectMessage string `json:"redirect_message" binding:"omitempty,max=500"`
	BrandName       string `json:"brand_name" binding:"omitempty,max=100"`
	BrandLogoURL    string `json:"brand_logo_url" binding:"omitempty,url"`

	EnablePreview            bool   `json:"enable_preview"`
	EnableIPRestrictions     bool   `json:"enable_ip_restrictions"`
	RestrictionIDs           []uint `json:"restriction_ids"`
	EnableSpoofingProtection bool   `json:"enable_spoofing_protection"`

	Variants []services.VariantInput `json:"variants" binding:"omitempty,dive"`
}

func (r *CreateLinkRequest) toInput(originalURL string) services.CreateLinkInput {
	return services.CreateLinkInput{
		OriginalURL:              originalURL,
		CustomCode:               r.CustomCode,
		Title:                    r.Title,
		ExpiresAt:                r.ExpiresAt,
		OneTimeUse:               r.OneTimeUse,
		RedirectType:             r.RedirectType,
		RedirectDelay:            r.RedirectDelay,
		RedirectMessage:          r.RedirectMessage,
		BrandName:                r.BrandName,
		BrandLogoURL:             r.BrandLogoURL,
		EnablePreview:            r.EnablePreview,
		EnableIPRestrictions:     r.EnableIPRestrictions,
		RestrictionIDs:           r.RestrictionIDs,
		EnableSpoofingProtection: r.EnableSpoofingProtection,
		Variants:                 r.Variants,
	}
}

// CreateLinkResponse is one result row of a create call.
type CreateLinkResponse struct {
	Code         string `json:"code"`
	OriginalURL  string `json:"original_url"`
	FullShortURL string `json:"full_short_url"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// CreateLinkHandler creates one link, or several when urls is supplied.
// Batch requests report per-URL results with aggregate counts.
func (h *Handlers) CreateLinkHandler(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	var urls []string
	if req.URL != "" {
		urls = append(urls, req.URL)
	}
	urls = append(urls, req.URLs...)

	if len(urls) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Either 'url' or 'urls' must be provided"})
		return
	}

	if len(urls) > 1 {
		if req.CustomCode != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "custom_code cannot be used with a batch request"})
			return
		}
		h.createBatch(c, req, urls)
		return
	}
	h.createSingle(c, req, urls[0])
}

func (h *Handlers) createSingle(c *gin.Context, req CreateLinkRequest, originalURL string) {
	link, err := h.links.CreateLink(req.toInput(originalURL))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrCodeTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Requested short code is already in use"})
		case errors.Is(err, apperrors.ErrInvalidVariants):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Variant weights must sum to 100 across at least two variants"})
		case errors.Is(err, apperrors.ErrCodeGenerationFailed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Unable to generate unique short code. Please try again later."})
		default:
			log.Printf("Error creating link: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create short link"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":           link.Code,
		"original_url":   link.OriginalURL,
		"full_short_url": h.shortURL(link.Code),
		"one_time_use":   link.OneTimeUse,
		"is_ab_test":     link.IsABTest,
		"expires_at":     link.ExpiresAt,
	})
}

func (h *Handlers) createBatch(c *gin.Context, req CreateLinkRequest, urls []string) {
	var results []CreateLinkResponse
	successful := 0

	for _, originalURL := range urls {
		result := CreateLinkResponse{OriginalURL: originalURL}

		link, err := h.links.CreateLink(req.toInput(originalURL))
		if err != nil {
			result.Error = "Failed to create short link"
			if errors.Is(err, apperrors.ErrCodeGenerationFailed) {
				result.Error = "Unable to generate unique short code"
			} else if errors.Is(err, apperrors.ErrInvalidVariants) {
				result.Error = "Invalid variant configuration"
			} else {
				log.Printf("Error creating link for %s: %v", originalURL, err)
			}
		} else {
			result.Success = true
			result.Code = link.Code
			result.FullShortURL = h.shortURL(link.Code)
			successful++
		}
		results = append(results, result)
	}

	failed := len(urls) - successful
	statusCode := http.StatusCreated
	if successful == 0 {
		statusCode = http.StatusBadRequest
	} else if failed > 0 {
		statusCode = http.StatusMultiStatus
	}

	c.JSON(statusCode, gin.H{
		"results": results,
		"summary": gin.H{
			"total":      len(urls),
			"successful": successful,
			"failed":     failed,
		},
	})
}

// RedirectHandler resolves a short code into either an HTTP redirect or a
// JSON interstitial description, with machine-readable error reasons.
func (h *Handlers) RedirectHandler(c *gin.Context) {
	code := c.Param("code")

	rc := services.RequestContext{
		IP:           c.ClientIP(),
		UserAgent:    c.GetHeader("User-Agent"),
		Referrer:     c.GetHeader("Referer"),
		SessionToken: sessionToken(c),
	}

	outcome, err := h.redirects.Resolve(c.Request.Context(), code, rc)
	if err != nil {
		reason := apperrors.Reason(err)
		status := statusForReason(reason)
		if reason == apperrors.ReasonGeneralError {
			log.Printf("Error resolving short code %s: %v", code, err)
		}
		c.JSON(status, gin.H{"status": "error", "reason": reason})
		return
	}

	// Persist the session token so repeat visits are attributed correctly.
	c.SetCookie(sessionCookie, outcome.SessionID, int((30 * 24 * time.Hour).Seconds()), "/", "", false, true)

	if outcome.Interstitial {
		c.JSON(http.StatusOK, gin.H{
			"status":            "success",
			"redirect_type":     models.RedirectTypeCustom,
			"destination_url":   outcome.DestinationURL,
			"redirect_settings": outcome.Settings,
		})
		return
	}

	c.Redirect(http.StatusFound, outcome.DestinationURL)
}

func sessionToken(c *gin.Context) string {
	if sid := c.Query("sid"); sid != "" {
		return sid
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		return cookie
	}
	return ""
}

func statusForReason(reason string) int {
	switch reason {
	case apperrors.ReasonNotFound, apperrors.ReasonInactive, apperrors.ReasonExpired:
		return http.StatusNotFound
	case apperrors.ReasonIPRestricted:
		return http.StatusForbidden
	case apperrors.ReasonTampered:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// LinkStatsHandler returns click analytics for a short code.
func (h *Handlers) LinkStatsHandler(c *gin.Context) {
	code := c.Param("code")

	stats, err := h.links.GetLinkStats(code)
	if err != nil {
		if errors.Is(err, apperrors.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Short URL not found"})
			return
		}
		log.Printf("Error retrieving stats for %s: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CloneRequest carries the optional overrides for a clone call.
type CloneRequest struct {
	URL       string     `json:"url" binding:"omitempty,url"`
	Title     string     `json:"title" binding:"omitempty,max=255"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CloneLinkHandler copies a link's configuration under a fresh code.
func (h *Handlers) CloneLinkHandler(c *gin.Context) {
	code := c.Param("code")

	// An empty body is a valid clone request; overrides are optional.
	var req CloneRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
	}

	clone, err := h.links.CloneLink(code, services.CloneOverrides{
		OriginalURL: req.URL,
		Title:       req.Title,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Short URL not found"})
			return
		}
		log.Printf("Error cloning link %s: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clone link"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":           clone.Code,
		"original_url":   clone.OriginalURL,
		"full_short_url": h.shortURL(clone.Code),
		"cloned_from":    code,
	})
}

// ScanLinkHandler runs a malware scan on the link's destination and stores
// the result.
func (h *Handlers) ScanLinkHandler(c *gin.Context) {
	code := c.Param("code")

	link, err := h.links.GetLinkByCode(code)
	if err != nil {
		if errors.Is(err, apperrors.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Short URL not found"})
			return
		}
		log.Printf("Error fetching link %s for scan: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	outcome := h.scanner.Scan(c.Request.Context(), link.OriginalURL)
	result := &models.ScanResult{
		Status:          outcome.Status,
		Details:         outcome.Details,
		ThreatTypes:     strings.Join(outcome.ThreatTypes, ","),
		ConfidenceScore: outcome.Confidence,
	}
	if err := h.links.RecordScan(link.ID, result); err != nil {
		log.Printf("Error saving scan result for %s: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save scan result"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":       code,
		"status":     result.Status,
		"details":    result.Details,
		"threats":    outcome.ThreatTypes,
		"confidence": result.ConfidenceScore,
	})
}

// RefreshPreviewHandler re-fetches the destination page metadata.
func (h *Handlers) RefreshPreviewHandler(c *gin.Context) {
	code := c.Param("code")

	link, err := h.links.GetLinkByCode(code)
	if err != nil {
		if errors.Is(err, apperrors.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Short URL not found"})
			return
		}
		log.Printf("Error fetching link %s for preview refresh: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	data, err := h.previews.Fetch(c.Request.Context(), link.OriginalURL)
	if err != nil {
		log.Printf("Preview fetch failed for %s: %v", code, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch destination page"})
		return
	}

	now := time.Now().UTC()
	link.PreviewTitle = data.Title
	link.PreviewDescription = data.Description
	link.PreviewImage = data.Image
	link.PreviewUpdatedAt = &now
	if err := h.links.UpdateLink(c.Request.Context(), link); err != nil {
		log.Printf("Error saving preview for %s: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save preview"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":        code,
		"title":       data.Title,
		"description": data.Description,
		"image":       data.Image,
		"updated_at":  now,
	})
}

// ConversionRequest identifies the session that completed the funnel action.
type ConversionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// ConversionHandler marks a visitor session as converted and credits the
// variant that served the original click.
func (h *Handlers) ConversionHandler(c *gin.Context) {
	code := c.Param("code")

	var req ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	if err := h.redirects.RecordConversion(code, req.SessionID); err != nil {
		if errors.Is(err, apperrors.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Short URL not found"})
			return
		}
		log.Printf("Error recording conversion for %s: %v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record conversion"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) shortURL(code string) string {
	return h.baseURL + "/s/" + code
}

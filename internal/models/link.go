package models

import "time"

// Redirect page types. Direct issues an HTTP redirect; custom tells the
// client to render an interstitial page with the settings stored on the link.
const (
	RedirectTypeDirect = "direct"
	RedirectTypeCustom = "custom"
)

// Owner roles. Links created without an owner are guest links.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ShortLink represents a shortened URL and all of its behavior toggles.
type ShortLink struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Code        string `gorm:"uniqueIndex;size:15;not null" json:"code"`
	OriginalURL string `gorm:"size:2000;not null" json:"original_url"`
	Title       string `gorm:"size:255" json:"title,omitempty"`

	IsActive     bool       `gorm:"default:true;index" json:"is_active"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	AccessCount  uint       `gorm:"default:0" json:"access_count"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`

	// Owner is nullable: guest-created links are allowed.
	OwnerID   *uint  `gorm:"index" json:"owner_id,omitempty"`
	OwnerRole string `gorm:"size:20" json:"owner_role,omitempty"`

	IsCustomCode bool `json:"is_custom_code"`
	OneTimeUse   bool `json:"one_time_use"`
	IsABTest     bool `json:"is_ab_test"`

	// Security toggles.
	EnableIPRestrictions     bool    `json:"enable_ip_restrictions"`
	EnableSpoofingProtection bool    `json:"enable_spoofing_protection"`
	IntegrityHash            *string `gorm:"size:64" json:"-"`

	// Custom redirect page settings, used when RedirectType is "custom".
	RedirectType    string `gorm:"size:20;default:direct" json:"redirect_type"`
	RedirectDelay   int    `gorm:"default:0" json:"redirect_delay"`
	RedirectMessage string `gorm:"size:500" json:"redirect_message,omitempty"`
	BrandName       string `gorm:"size:100" json:"brand_name,omitempty"`
	BrandLogoURL    string `gorm:"size:2000" json:"brand_logo_url,omitempty"`

	// Live preview of the destination page.
	EnablePreview      bool       `json:"enable_preview"`
	PreviewTitle       string     `gorm:"size:255" json:"preview_title,omitempty"`
	PreviewDescription string     `gorm:"size:2000" json:"preview_description,omitempty"`
	PreviewImage       string     `gorm:"size:2000" json:"preview_image,omitempty"`
	PreviewUpdatedAt   *time.Time `json:"preview_updated_at,omitempty"`

	ClonedFromID *uint `json:"cloned_from_id,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Variants       []ABTestVariant `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
	IPRestrictions []IPRestriction `gorm:"many2many:link_ip_restrictions" json:"ip_restrictions,omitempty"`
}

// IsExpired reports whether the link's expiry timestamp, if any, has passed.
// Expiry is evaluated live on every request; the background sweeper only
// flips the stored flag so listings stay consistent.
func (l *ShortLink) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// ABTestVariant is one alternate destination of an A/B-tested link.
// Weights are percentages; a valid variant set sums to exactly 100.
type ABTestVariant struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	LinkID          uint      `gorm:"index;not null" json:"link_id"`
	DestinationURL  string    `gorm:"size:2000;not null" json:"destination_url"`
	Name            string    `gorm:"size:100" json:"name"`
	Weight          int       `gorm:"not null" json:"weight"`
	AccessCount     uint      `gorm:"default:0" json:"access_count"`
	ConversionCount uint      `gorm:"default:0" json:"conversion_count"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Restriction types for IPRestriction.
const (
	RestrictionAllow = "allow"
	RestrictionBlock = "block"
)

// IPRestriction is a reusable allow or block entry. Address holds either a
// single IP or a CIDR range and is matched by the access policy evaluator.
type IPRestriction struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	RestrictionType string    `gorm:"size:10;not null" json:"restriction_type"`
	Address         string    `gorm:"size:64;not null" json:"address"`
	Description     string    `gorm:"size:255" json:"description,omitempty"`
	OwnerID         *uint     `gorm:"index" json:"owner_id,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

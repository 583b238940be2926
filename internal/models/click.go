package models

import "time"

// ClickEvent is one recorded visit to a short link. Rows are append-only:
// the redirect path inserts them and never mutates or deletes them.
type ClickEvent struct {
	ID        uint `gorm:"primaryKey"`
	LinkID    uint `gorm:"index;not null"`
	Link      ShortLink `gorm:"foreignKey:LinkID"`
	VariantID *uint     `gorm:"index"`

	Timestamp time.Time `gorm:"index"`
	IPAddress string    `gorm:"size:50"`

	// Device info, parsed from the raw user agent.
	UserAgent string `gorm:"size:500"`
	Browser   string `gorm:"size:100"`
	Device    string `gorm:"size:100"`
	OS        string `gorm:"size:100"`

	// Location info from IP geolocation; "Unknown" when resolution fails.
	Country string `gorm:"size:100"`
	City    string `gorm:"size:100"`

	Referrer  string `gorm:"size:2000"`
	SessionID string `gorm:"size:100;index"`
}

// UserSession tracks visitor retention per link. The (link, session) pair is
// unique; repeated visits bump visit_count and last_visit on the same row.
type UserSession struct {
	ID        uint   `gorm:"primaryKey"`
	LinkID    uint   `gorm:"not null;uniqueIndex:idx_sessions_link_session"`
	SessionID string `gorm:"size:100;not null;uniqueIndex:idx_sessions_link_session"`
	IPAddress string `gorm:"size:50"`

	FirstVisit time.Time
	LastVisit  time.Time
	VisitCount uint `gorm:"default:1"`

	// Funnel stages.
	ReachedDestination bool `gorm:"default:false"`
	CompletedAction    bool `gorm:"default:false"`

	// Device info from the first visit.
	UserAgent string `gorm:"size:500"`
	Browser   string `gorm:"size:100"`
	Device    string `gorm:"size:100"`
	OS        string `gorm:"size:100"`
}

// SpoofingAttempt is logged whenever integrity verification fails on a
// protected link. Append-only security audit trail.
type SpoofingAttempt struct {
	ID            uint      `gorm:"primaryKey"`
	LinkID        uint      `gorm:"index;not null"`
	Timestamp     time.Time `gorm:"index"`
	IPAddress     string    `gorm:"size:50"`
	UserAgent     string    `gorm:"size:500"`
	ExpectedHash  string    `gorm:"size:64"`
	PresentedHash string    `gorm:"size:64"`
}

// Scan statuses for ScanResult.
const (
	ScanStatusPending    = "pending"
	ScanStatusClean      = "clean"
	ScanStatusSuspicious = "suspicious"
	ScanStatusMalicious  = "malicious"
	ScanStatusError      = "error"
)

// ScanResult holds the latest malware scan outcome for a link's destination.
type ScanResult struct {
	ID              uint      `gorm:"primaryKey"`
	LinkID          uint      `gorm:"uniqueIndex;not null"`
	Status          string    `gorm:"size:20;default:pending"`
	Details         string    `gorm:"size:500"`
	ThreatTypes     string    `gorm:"size:255"`
	ConfidenceScore float64   `gorm:"default:0"`
	ScannedAt       time.Time `gorm:"autoUpdateTime"`
}

// AnalyticsEvent is the payload passed through the analytics channel from the
// redirect path to the worker pool. It carries everything needed to insert a
// ClickEvent row and upsert the matching UserSession without further lookups.
type AnalyticsEvent struct {
	LinkID    uint
	VariantID *uint
	Timestamp time.Time
	IPAddress string
	UserAgent string
	Browser   string
	Device    string
	OS        string
	Country   string
	City      string
	Referrer  string
	SessionID string
}

package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BotCoder254/URLBriefr/internal/models"
)

// FieldCount is one bucket of a grouped click aggregation, e.g. clicks per
// browser or per country.
type FieldCount struct {
	Value string `gorm:"column:value"`
	Count int64  `gorm:"column:count"`
}

// DayCount is clicks per calendar day.
type DayCount struct {
	Day   string `gorm:"column:day"`
	Count int64  `gorm:"column:count"`
}

// ClickRepository defines data access for click events, sessions and the
// spoofing audit log.
type ClickRepository interface {
	CreateClickEvent(click *models.ClickEvent) error
	CountClicksByLinkID(linkID uint) (int64, error)

	// UpsertSession inserts the session row or, when the (link, session)
	// pair already exists, bumps visit_count and last_visit atomically.
	UpsertSession(session *models.UserSession) error
	GetSession(linkID uint, sessionID string) (*models.UserSession, error)
	MarkSessionCompleted(linkID uint, sessionID string) error

	CreateSpoofingAttempt(attempt *models.SpoofingAttempt) error

	ClicksByDay(linkID uint, days int) ([]DayCount, error)
	ClicksByField(linkID uint, field string) ([]FieldCount, error)
	RecentClicks(linkID uint, limit int) ([]models.ClickEvent, error)
}

// Click columns that may be grouped on. Guards ClicksByField against
// arbitrary column injection.
var groupableFields = map[string]bool{
	"browser":  true,
	"device":   true,
	"os":       true,
	"country":  true,
	"city":     true,
	"referrer": true,
}

// GormClickRepository implements ClickRepository with GORM.
type GormClickRepository struct {
	db *gorm.DB
}

func NewClickRepository(db *gorm.DB) *GormClickRepository {
	return &GormClickRepository{db: db}
}

func (r *GormClickRepository) CreateClickEvent(click *models.ClickEvent) error {
	if err := r.db.Create(click).Error; err != nil {
		return fmt.Errorf("failed to create click event: %w", err)
	}
	return nil
}

func (r *GormClickRepository) CountClicksByLinkID(linkID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.ClickEvent{}).Where("link_id = ?", linkID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count clicks for link ID %d: %w", linkID, err)
	}
	return count, nil
}

func (r *GormClickRepository) UpsertSession(session *models.UserSession) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "link_id"}, {Name: "session_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"visit_count": gorm.Expr("visit_count + 1"),
			"last_visit":  session.LastVisit,
		}),
	}).Create(session).Error
	if err != nil {
		return fmt.Errorf("failed to upsert session %s for link %d: %w", session.SessionID, session.LinkID, err)
	}
	return nil
}

func (r *GormClickRepository) GetSession(linkID uint, sessionID string) (*models.UserSession, error) {
	var session models.UserSession
	err := r.db.Where("link_id = ? AND session_id = ?", linkID, sessionID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *GormClickRepository) MarkSessionCompleted(linkID uint, sessionID string) error {
	err := r.db.Model(&models.UserSession{}).
		Where("link_id = ? AND session_id = ?", linkID, sessionID).
		Update("completed_action", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark session %s completed: %w", sessionID, err)
	}
	return nil
}

func (r *GormClickRepository) CreateSpoofingAttempt(attempt *models.SpoofingAttempt) error {
	if err := r.db.Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to record spoofing attempt: %w", err)
	}
	return nil
}

func (r *GormClickRepository) ClicksByDay(linkID uint, days int) ([]DayCount, error) {
	var rows []DayCount
	err := r.db.Model(&models.ClickEvent{}).
		Select("date(timestamp) AS day, count(*) AS count").
		Where("link_id = ? AND timestamp >= date('now', ?)", linkID, fmt.Sprintf("-%d days", days)).
		Group("day").Order("day").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate clicks by day: %w", err)
	}
	return rows, nil
}

func (r *GormClickRepository) ClicksByField(linkID uint, field string) ([]FieldCount, error) {
	if !groupableFields[field] {
		return nil, fmt.Errorf("cannot group clicks by %q", field)
	}
	var rows []FieldCount
	err := r.db.Model(&models.ClickEvent{}).
		Select(field+" AS value, count(*) AS count").
		Where("link_id = ? AND "+field+" <> ''", linkID).
		Group("value").Order("count DESC").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate clicks by %s: %w", field, err)
	}
	return rows, nil
}

func (r *GormClickRepository) RecentClicks(linkID uint, limit int) ([]models.ClickEvent, error) {
	var clicks []models.ClickEvent
	err := r.db.Where("link_id = ?", linkID).
		Order("timestamp DESC").Limit(limit).Find(&clicks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent clicks: %w", err)
	}
	return clicks, nil
}

package services

import (
	"log"

	"github.com/BotCoder254/URLBriefr/internal/models"
	"github.com/BotCoder254/URLBriefr/internal/repository"
	"github.com/BotCoder254/URLBriefr/internal/workers"
)

// AnalyticsSink receives analytics events from the redirect path. Publishing
// must never block or fail the redirect; implementations degrade by dropping.
type AnalyticsSink interface {
	Publish(event models.AnalyticsEvent)
}

// ChannelSink feeds the worker pool through a buffered channel, dropping
// events when the buffer is full so a slow database never delays a redirect.
type ChannelSink struct {
	events chan<- models.AnalyticsEvent
}

func NewChannelSink(events chan<- models.AnalyticsEvent) *ChannelSink {
	return &ChannelSink{events: events}
}

func (s *ChannelSink) Publish(event models.AnalyticsEvent) {
	select {
	case s.events <- event:
	default:
		log.Printf("WARNING: analytics channel full, dropping click event for link %d", event.LinkID)
	}
}

// SyncSink persists events inline. Used by the CLI and by tests that assert
// on recorded rows immediately after a redirect resolves.
type SyncSink struct {
	clickRepo repository.ClickRepository
}

func NewSyncSink(clickRepo repository.ClickRepository) *SyncSink {
	return &SyncSink{clickRepo: clickRepo}
}

func (s *SyncSink) Publish(event models.AnalyticsEvent) {
	if err := workers.PersistEvent(s.clickRepo, event); err != nil {
		log.Printf("ERROR: failed to persist analytics event for link %d: %v", event.LinkID, err)
	}
}

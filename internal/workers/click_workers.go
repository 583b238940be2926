// Package workers implements the asynchronous analytics pipeline: a pool of
// goroutines draining the event channel fed by the redirect path.
package workers

import (
	"log"
	"sync"

	"github.com/BotCoder254/URLBriefr/internal/models"
	"github.com/BotCoder254/URLBriefr/internal/repository"
)

// StartClickWorkers launches workerCount goroutines consuming events from the
// channel. Workers exit when the channel is closed; the returned WaitGroup
// lets the server drain them on shutdown.
func StartClickWorkers(workerCount int, events <-chan models.AnalyticsEvent, clickRepo repository.ClickRepository) *sync.WaitGroup {
	log.Printf("Starting %d click worker(s)...", workerCount)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clickWorker(events, clickRepo)
		}()
	}
	return &wg
}

func clickWorker(events <-chan models.AnalyticsEvent, clickRepo repository.ClickRepository) {
	for event := range events {
		if err := PersistEvent(clickRepo, event); err != nil {
			// Log and keep going; one bad event must not stall the pool.
			log.Printf("ERROR: failed to persist analytics event for link %d: %v", event.LinkID, err)
		}
	}
}

// PersistEvent writes the click row and upserts the visitor session for one
// analytics event. Shared by the worker pool and by synchronous recording in
// tests and CLI tooling.
func PersistEvent(clickRepo repository.ClickRepository, event models.AnalyticsEvent) error {
	click := &models.ClickEvent{
		LinkID:    event.LinkID,
		VariantID: event.VariantID,
		Timestamp: event.Timestamp,
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
		Browser:   event.Browser,
		Device:    event.Device,
		OS:        event.OS,
		Country:   event.Country,
		City:      event.City,
		Referrer:  event.Referrer,
		SessionID: event.SessionID,
	}
	if err := clickRepo.CreateClickEvent(click); err != nil {
		return err
	}

	session := &models.UserSession{
		LinkID:             event.LinkID,
		SessionID:          event.SessionID,
		IPAddress:          event.IPAddress,
		FirstVisit:         event.Timestamp,
		LastVisit:          event.Timestamp,
		VisitCount:         1,
		ReachedDestination: true,
		UserAgent:          event.UserAgent,
		Browser:            event.Browser,
		Device:             event.Device,
		OS:                 event.OS,
	}
	return clickRepo.UpsertSession(session)
}

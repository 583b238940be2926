// Package monitor runs the periodic background sweep: expired links are
// deactivated in the store and destination URLs are health-checked, with
// state transitions logged for operators.
package monitor

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/BotCoder254/URLBriefr/internal/repository"
)

// Monitor owns the sweep loop. The per-request expiry check on the redirect
// path never depends on this loop having run; the sweep only keeps the
// stored active flags consistent for listings and dashboards.
type Monitor struct {
	linkRepo    repository.LinkRepository
	interval    time.Duration
	knownStates map[uint]bool
	mu          sync.Mutex
	httpClient  *http.Client
	now         func() time.Time
}

func NewMonitor(linkRepo repository.LinkRepository, interval time.Duration) *Monitor {
	return &Monitor{
		linkRepo:    linkRepo,
		interval:    interval,
		knownStates: make(map[uint]bool),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		now:         time.Now,
	}
}

// Start runs the sweep loop until ctx is cancelled. An immediate pass runs
// on startup before the first tick.
func (m *Monitor) Start(ctx context.Context) {
	log.Printf("[MONITOR] Starting sweep with interval of %v...", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("[MONITOR] Sweep stopped.")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	m.deactivateExpired()
	m.checkDestinations(ctx)
}

// deactivateExpired flips every active link whose expiry has passed.
func (m *Monitor) deactivateExpired() {
	count, err := m.linkRepo.DeactivateExpired(m.now())
	if err != nil {
		log.Printf("[MONITOR] ERROR deactivating expired links: %v", err)
		return
	}
	if count > 0 {
		log.Printf("[MONITOR] Deactivated %d expired link(s).", count)
	}
}

// checkDestinations verifies destination reachability and logs transitions
// between accessible and inaccessible.
func (m *Monitor) checkDestinations(ctx context.Context) {
	links, err := m.linkRepo.GetAllLinks()
	if err != nil {
		log.Printf("[MONITOR] ERROR retrieving links for monitoring: %v", err)
		return
	}

	for _, link := range links {
		if !link.IsActive {
			continue
		}
		currentState := m.isURLAccessible(ctx, link.OriginalURL)

		m.mu.Lock()
		previousState, exists := m.knownStates[link.ID]
		m.knownStates[link.ID] = currentState
		m.mu.Unlock()

		if !exists {
			log.Printf("[MONITOR] Initial state for link %s (%s): %s",
				link.Code, link.OriginalURL, formatState(currentState))
			continue
		}

		if currentState != previousState {
			log.Printf("[NOTIFICATION] Link %s (%s) changed from %s to %s!",
				link.Code, link.OriginalURL, formatState(previousState), formatState(currentState))
		}
	}
}

// isURLAccessible performs an HTTP HEAD request against the destination.
// 2xx and 3xx count as accessible.
func (m *Monitor) isURLAccessible(ctx context.Context, url string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, url, nil)
	if err != nil {
		log.Printf("[MONITOR] Error creating request for URL '%s': %v", url, err)
		return false
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

func formatState(accessible bool) string {
	if accessible {
		return "ACCESSIBLE"
	}
	return "INACCESSIBLE"
}

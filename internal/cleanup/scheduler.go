package cleanup

import (
	"log"
	"time"

	"github.com/codebuildervaibhav/video-ingest/internal/cache"
)

// Scheduler periodically sweeps expired entries out of the cache so that
// long-lived keys (dedup records in particular) do not pile up dead weight
// between lazy purges.
type Scheduler struct {
	store    *cache.Cache
	interval time.Duration
	stopChan chan struct{}
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(store *cache.Cache, interval time.Duration) *Scheduler {
	return &Scheduler{
		store:    store,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the cleanup scheduler
func (s *Scheduler) Start() {
	// Run initial sweep on startup
	s.sweep()

	ticker := time.NewTicker(s.interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	log.Printf("Cache cleanup scheduler started (interval: %s)", s.interval)
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	log.Println("Cache cleanup scheduler stopped")
}

func (s *Scheduler) sweep() {
	if removed := s.store.CleanupExpired(); removed > 0 {
		log.Printf("Cache cleanup: %d expired entries removed", removed)
	}
}

// Package dedupe suppresses duplicate GitHub webhook deliveries:
// GitHub redelivers a webhook whenever it doesn't receive a prompt 200,
// and a dispatch core that reprocessed every redelivery would double
// schedule jobs. Deduplicator tracks delivery GUIDs within a TTL window,
// the same sliding-window approach the review-bot lineage used to
// collapse duplicate review requests.
package dedupe

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds deduplicator configuration.
type Config struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults: remember deliveries for five
// minutes, matching GitHub's own redelivery retry window.
func DefaultConfig() Config {
	return Config{
		TTL:             5 * time.Minute,
		CleanupInterval: 1 * time.Minute,
	}
}

// Deduplicator remembers webhook delivery GUIDs seen within cfg.TTL.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// New creates a Deduplicator and starts its background cleanup loop.
func New(cfg Config) *Deduplicator {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}

	d := &Deduplicator{
		seen: make(map[string]time.Time),
		ttl:  cfg.TTL,
	}
	go d.cleanupLoop(cfg.CleanupInterval)
	return d
}

// Seen records id as processed and reports whether it had already been
// seen within the TTL window. It implements githubhost.Deduplicator.
func (d *Deduplicator) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if at, ok := d.seen[id]; ok && time.Since(at) <= d.ttl {
		return true
	}
	d.seen[id] = time.Now()
	return false
}

func (d *Deduplicator) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		d.cleanup()
	}
}

func (d *Deduplicator) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	expired := 0
	for id, at := range d.seen {
		if now.Sub(at) > d.ttl {
			delete(d.seen, id)
			expired++
		}
	}
	if expired > 0 {
		log.Debug().Int("expired", expired).Int("remaining", len(d.seen)).Msg("cleaned up expired webhook delivery IDs")
	}
}

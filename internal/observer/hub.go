// Package observer implements the dispatch core's observer channel: a
// fan-out broadcast of job lifecycle events to every connected client,
// with per-listener fault isolation so one bad connection never stalls
// or aborts delivery to the others.
package observer

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Listener receives one broadcast message at a time. Send must not
// block indefinitely: Notify waits for every listener's Send to return.
// Hub drops a listener whose Send returns an error.
type Listener interface {
	Send(data []byte) error
	Close()
}

// Hub fans a message out to every registered Listener.
type Hub struct {
	mu        sync.RWMutex
	listeners map[Listener]struct{}
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[Listener]struct{})}
}

// Register adds l to the broadcast set.
func (h *Hub) Register(l Listener) {
	h.mu.Lock()
	h.listeners[l] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes l from the broadcast set.
func (h *Hub) Unregister(l Listener) {
	h.mu.Lock()
	delete(h.listeners, l)
	h.mu.Unlock()
}

// Notify implements dispatch.Notifier: it marshals msg to JSON and
// broadcasts it to every registered listener in parallel. A listener
// whose Send fails is unregistered and closed; its failure does not
// affect delivery to any other listener.
func (h *Hub) Notify(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal observer broadcast message")
		return
	}

	h.mu.RLock()
	targets := make([]Listener, 0, len(h.listeners))
	for l := range h.listeners {
		targets = append(targets, l)
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, l := range targets {
		wg.Add(1)
		go func(l Listener) {
			defer wg.Done()
			if err := l.Send(data); err != nil {
				log.Warn().Err(err).Msg("observer listener failed, dropping it")
				h.Unregister(l)
				l.Close()
			}
		}(l)
	}
	wg.Wait()
}

// Count returns the number of currently registered listeners.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

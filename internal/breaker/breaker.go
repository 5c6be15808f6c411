// Package breaker implements the circuit breaker pattern in front of
// the hosting adapter: a run of consecutive GitHub API failures trips
// the breaker so the dispatch core fails fast instead of hanging every
// worker on a degraded API, recovering automatically after its timeout.
// Grounded on the review-bot lineage's circuitbreaker package.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// State is the breaker's current mode.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Execute while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration.
type Config struct {
	Name             string
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	MaxHalfOpen      int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		MaxHalfOpen:      1,
	}
}

// Breaker implements the circuit breaker pattern around any fallible
// operation — here, hosting adapter calls.
type Breaker struct {
	mu sync.Mutex

	config Config
	state  State

	failureCount    int
	successCount    int
	lastFailure     time.Time
	lastStateChange time.Time
	halfOpenCount   int
}

// New creates a Breaker.
func New(config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxHalfOpen <= 0 {
		config.MaxHalfOpen = 1
	}
	return &Breaker{config: config, state: StateClosed, lastStateChange: time.Now()}
}

// Execute runs fn with circuit breaker protection.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allowRequest() {
		log.Warn().Str("circuit", b.config.Name).Str("state", b.State().String()).Msg("circuit breaker rejected request")
		return ErrCircuitOpen
	}

	err := fn()
	b.recordResult(err)
	return err
}

func (b *Breaker) allowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.lastFailure) > b.config.Timeout {
			b.toHalfOpen()
			return b.halfOpenCount < b.config.MaxHalfOpen
		}
		return false
	case StateHalfOpen:
		if b.halfOpenCount < b.config.MaxHalfOpen {
			b.halfOpenCount++
			return true
		}
		return false
	}
	return false
}

func (b *Breaker) recordResult(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.onFailure()
	} else {
		b.onSuccess()
	}
}

func (b *Breaker) onFailure() {
	b.failureCount++
	b.successCount = 0
	b.lastFailure = time.Now()

	switch b.state {
	case StateClosed:
		if b.failureCount >= b.config.FailureThreshold {
			b.toOpen()
		}
	case StateHalfOpen:
		b.halfOpenCount--
		b.toOpen()
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.halfOpenCount--
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.toClosed()
		}
	}
}

func (b *Breaker) toOpen() {
	b.state = StateOpen
	b.lastStateChange = time.Now()
	b.halfOpenCount = 0
	log.Warn().Str("circuit", b.config.Name).Int("failure_count", b.failureCount).Msg("circuit breaker opened")
}

func (b *Breaker) toHalfOpen() {
	b.state = StateHalfOpen
	b.lastStateChange = time.Now()
	b.halfOpenCount = 0
	b.successCount = 0
	log.Info().Str("circuit", b.config.Name).Msg("circuit breaker half-opened")
}

func (b *Breaker) toClosed() {
	b.state = StateClosed
	b.lastStateChange = time.Now()
	b.failureCount = 0
	b.successCount = 0
	log.Info().Str("circuit", b.config.Name).Msg("circuit breaker closed")
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

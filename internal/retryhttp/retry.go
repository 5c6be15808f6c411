// Package retryhttp wraps a dispatch.HostingAdapter's network calls
// with exponential backoff and jitter, so a transient GitHub API error
// doesn't drop a job the way a bare call would. Grounded on the
// review-bot lineage's retry package, originally built for Claude CLI
// calls; the backoff math is unchanged, only the wrapped operations are
// GitHub API calls now.
package retryhttp

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrMaxRetries = errors.New("maximum retries exceeded")
)

// Config holds retry configuration.
type Config struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
}

// DefaultConfig returns sensible defaults for GitHub API calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		InitialDelay:   time.Second,
		MaxDelay:       60 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.3,
	}
}

// Retrier implements exponential backoff with jitter.
type Retrier struct {
	config Config
	rng    *rand.Rand
}

// New creates a Retrier with the given configuration.
func New(config Config) *Retrier {
	return &Retrier{config: config, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewWithDefaults creates a Retrier with DefaultConfig.
func NewWithDefaults() *Retrier {
	return New(DefaultConfig())
}

// RetryableFunc is a function Do can retry.
type RetryableFunc func(ctx context.Context) error

// Do executes fn, retrying retryable failures with exponential backoff.
func (r *Retrier) Do(ctx context.Context, fn RetryableFunc) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
		if attempt == r.config.MaxRetries {
			break
		}

		delay := r.calculateDelay(attempt)
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying GitHub API call after error")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return errors.Join(ErrMaxRetries, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "429"), strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "too many requests"):
		return true
	case strings.Contains(errStr, "500"), strings.Contains(errStr, "502"), strings.Contains(errStr, "503"), strings.Contains(errStr, "504"):
		return true
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"), errors.Is(err, context.DeadlineExceeded):
		return true
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "connection reset"), strings.Contains(errStr, "no such host"):
		return true
	default:
		return false
	}
}

func (r *Retrier) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	jitterRange := delay * r.config.JitterFraction
	jitter := (r.rng.Float64() * 2 * jitterRange) - jitterRange
	delay += jitter

	if delay < float64(100*time.Millisecond) {
		delay = float64(100 * time.Millisecond)
	}
	return time.Duration(delay)
}

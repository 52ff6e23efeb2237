package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	listingRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	listingRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listing_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	listingRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryPolicy decides how often and how long to wait before resubmitting a
// failed request. The zero value performs a single attempt.
type RetryPolicy struct {
	// MaxAttempts is the number of attempts including the first one.
	MaxAttempts int

	// Delay returns the wait before the given retry (1 for the first retry).
	Delay func(retry int) time.Duration

	// Retryable reports whether err should be retried. Nil retries nothing.
	Retryable func(err error) bool
}

// NoRetry returns a policy that performs exactly one attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// ForbiddenPolicy resubmits a request once after delay when the platform
// answers 403.
func ForbiddenPolicy(delay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 2,
		Delay:       FixedDelay(delay),
		Retryable:   IsForbidden,
	}
}

// FixedDelay waits d before every retry.
func FixedDelay(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// RetryConfig holds the configuration for exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default exponential backoff configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Policy converts the configuration into a RetryPolicy that retries
// forbidden, server and network errors with jittered exponential backoff.
func (c RetryConfig) Policy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: c.MaxAttempts,
		Delay:       c.backoff,
		Retryable: func(err error) bool {
			return shouldRetry(ClassOf(err))
		},
	}
}

// backoff returns the jittered (±20%) exponential delay before a retry.
func (c RetryConfig) backoff(retry int) time.Duration {
	d := float64(c.InitialBackoff)
	for i := 1; i < retry; i++ {
		d *= c.BackoffMultiplier
		if c.MaxBackoff > 0 && d > float64(c.MaxBackoff) {
			d = float64(c.MaxBackoff)
			break
		}
	}
	return time.Duration(d * (0.8 + rand.Float64()*0.4))
}

// Retry runs fn until it succeeds, returns a non-retryable error or the
// policy's attempts are used up. Waits are interrupted by ctx.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("error_class", string(ClassOf(lastErr))).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		errorClass := string(ClassOf(err))

		if policy.Retryable == nil || !policy.Retryable(err) {
			return err
		}

		if attempt >= maxAttempts {
			break
		}

		var wait time.Duration
		if policy.Delay != nil {
			wait = policy.Delay(attempt)
		}

		listingRetriesTotal.WithLabelValues(errorClass).Inc()
		listingRetryBackoffSeconds.WithLabelValues(errorClass).Observe(wait.Seconds())

		log.Warn().
			Err(err).
			Str("error_class", errorClass).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	if maxAttempts == 1 {
		return lastErr
	}

	listingRetryExhaustedTotal.WithLabelValues(string(ClassOf(lastErr))).Inc()
	log.Warn().
		Str("error_class", string(ClassOf(lastErr))).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}

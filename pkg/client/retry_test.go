package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errForbidden = &RequestError{StatusCode: 403, ErrorClass: ErrorClassForbidden, Message: "403 Forbidden"}
	errServer    = &RequestError{StatusCode: 502, ErrorClass: ErrorClassServer, Message: "502 Bad Gateway"}
	errNotFound  = &RequestError{StatusCode: 404, ErrorClass: ErrorClassClient, Message: "404 Not Found"}
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		Delay:       FixedDelay(time.Millisecond),
		Retryable:   func(err error) bool { return shouldRetry(ClassOf(err)) },
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestForbiddenPolicy(t *testing.T) {
	policy := ForbiddenPolicy(time.Minute)

	if policy.MaxAttempts != 2 {
		t.Errorf("MaxAttempts = %d, want 2", policy.MaxAttempts)
	}
	if d := policy.Delay(1); d != time.Minute {
		t.Errorf("Delay(1) = %v, want 1m", d)
	}
	if !policy.Retryable(errForbidden) {
		t.Error("403 should be retryable")
	}
	if policy.Retryable(errServer) {
		t.Error("502 should not be retryable under the forbidden policy")
	}
}

func TestRetry_Success(t *testing.T) {
	callCount := 0
	err := Retry(context.Background(), fastPolicy(3), func(context.Context) error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetry_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	err := Retry(context.Background(), fastPolicy(3), func(context.Context) error {
		callCount++
		if callCount < 3 {
			return errServer
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetry_MaxAttemptsExhausted(t *testing.T) {
	callCount := 0
	err := Retry(context.Background(), fastPolicy(3), func(context.Context) error {
		callCount++
		return errServer
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if ClassOf(err) != ErrorClassServer {
		t.Errorf("Exhausted error should keep the last error class, got %q", ClassOf(err))
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (MaxAttempts), got %d", callCount)
	}
}

func TestRetry_ClientErrorNoRetry(t *testing.T) {
	callCount := 0
	err := Retry(context.Background(), fastPolicy(3), func(context.Context) error {
		callCount++
		return errNotFound
	})

	if callCount != 1 {
		t.Errorf("Expected 1 call (no retry for client errors), got %d", callCount)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("Should not return ErrRetryExhausted for client errors (no retry attempted)")
	}
	if !errors.Is(err, errNotFound) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestRetry_NoRetryPolicy(t *testing.T) {
	callCount := 0
	err := Retry(context.Background(), NoRetry(), func(context.Context) error {
		callCount++
		return errForbidden
	})

	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
	if !errors.Is(err, errForbidden) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestRetry_ForbiddenResubmittedOnce(t *testing.T) {
	policy := ForbiddenPolicy(time.Millisecond)

	callCount := 0
	err := Retry(context.Background(), policy, func(context.Context) error {
		callCount++
		return errForbidden
	})

	if callCount != 2 {
		t.Errorf("Expected 2 calls, got %d", callCount)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if !IsForbidden(err) {
		t.Errorf("Expected forbidden class to survive wrapping, got %v", err)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := RetryPolicy{
		MaxAttempts: 3,
		Delay:       FixedDelay(time.Minute),
		Retryable:   func(error) bool { return true },
	}

	callCount := 0
	err := Retry(ctx, policy, func(context.Context) error {
		callCount++
		if callCount == 1 {
			cancel()
		}
		return errServer
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", callCount)
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        3 * time.Second,
		BackoffMultiplier: 10.0,
	}

	first := config.backoff(1)
	if first < 800*time.Millisecond || first > 1200*time.Millisecond {
		t.Errorf("First backoff %v outside jitter range [800ms, 1200ms]", first)
	}

	capped := config.backoff(4)
	if capped < 2400*time.Millisecond || capped > 3600*time.Millisecond {
		t.Errorf("Capped backoff %v outside jitter range around MaxBackoff", capped)
	}
}

func TestRetryConfig_Policy(t *testing.T) {
	policy := DefaultRetryConfig().Policy()

	if policy.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", policy.MaxAttempts)
	}
	if !policy.Retryable(errServer) {
		t.Error("server errors should be retryable")
	}
	if policy.Retryable(errNotFound) {
		t.Error("client errors should not be retryable")
	}
}

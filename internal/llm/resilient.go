package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/montarelab/rev-ai/internal/config"
	"github.com/montarelab/rev-ai/internal/metrics"
)

// ErrCircuitOpen is returned without calling the model while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// RetryConfig tunes ResilientGenerator.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration

	RequestsPerSecond float64
	Burst             int
}

// DefaultRetryConfig returns conservative defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		FailureThreshold:  5,
		SuccessThreshold:  2,
		OpenTimeout:       30 * time.Second,
		RequestsPerSecond: 2,
		Burst:             4,
	}
}

// RetryConfigFrom reads the retry settings from the AI section.
func RetryConfigFrom(cfg *config.AIConfig) RetryConfig {
	rc := DefaultRetryConfig()
	if cfg.MaxRetries >= 0 {
		rc.MaxRetries = cfg.MaxRetries
	}
	if cfg.InitialBackoff > 0 {
		rc.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.FailureThreshold > 0 {
		rc.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.OpenTimeout > 0 {
		rc.OpenTimeout = cfg.OpenTimeout
	}
	rc.RequestsPerSecond = cfg.RequestsPerSecond
	if cfg.Burst > 0 {
		rc.Burst = cfg.Burst
	}
	return rc
}

// CircuitState is the breaker state.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker fails fast after repeated transient failures.
type CircuitBreaker struct {
	mu sync.Mutex

	state            CircuitState
	failures         int
	successes        int
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	now              func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(failureThreshold, successThreshold int, openTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
		now:              time.Now,
	}
}

// Allow returns ErrCircuitOpen while the breaker is open and the open timeout
// has not elapsed. After the timeout it moves to half-open and lets trial calls through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.openedAt) < cb.openTimeout {
			return ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
		cb.successes = 0
	}
	return nil
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = CircuitClosed
			cb.failures = 0
			cb.successes = 0
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.open()
		}
	case CircuitHalfOpen:
		cb.open()
	}
}

// State reports the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// must hold mu
func (cb *CircuitBreaker) open() {
	cb.state = CircuitOpen
	cb.successes = 0
	cb.openedAt = cb.now()
}

// ResilientGenerator adds rate limiting, retry with exponential backoff and a
// circuit breaker around another Generator.
type ResilientGenerator struct {
	inner    Generator
	provider string
	retry    RetryConfig
	breaker  *CircuitBreaker
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewResilientGenerator wraps inner. A zero RequestsPerSecond disables rate limiting.
func NewResilientGenerator(inner Generator, provider string, rc RetryConfig, m *metrics.Metrics, logger *slog.Logger) *ResilientGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if rc.RequestsPerSecond > 0 {
		burst := rc.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rc.RequestsPerSecond), burst)
	}
	if rc.BackoffMultiplier <= 1 {
		rc.BackoffMultiplier = 2
	}
	if rc.MaxBackoff <= 0 {
		rc.MaxBackoff = 30 * time.Second
	}
	if rc.SuccessThreshold <= 0 {
		rc.SuccessThreshold = 1
	}
	var breaker *CircuitBreaker
	if rc.FailureThreshold > 0 {
		breaker = NewCircuitBreaker(rc.FailureThreshold, rc.SuccessThreshold, rc.OpenTimeout)
	}
	return &ResilientGenerator{
		inner:    inner,
		provider: provider,
		retry:    rc,
		breaker:  breaker,
		limiter:  limiter,
		metrics:  m,
		logger:   logger,
	}
}

func (g *ResilientGenerator) Call(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	backoff := g.retry.InitialBackoff

	for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
		if g.breaker != nil {
			if err := g.breaker.Allow(); err != nil {
				g.metrics.RecordModelCall(g.provider, "circuit_open")
				return "", fmt.Errorf("model call blocked: %w", err)
			}
		}
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limiter wait failed: %w", err)
			}
		}

		out, err := g.inner.Call(ctx, prompt)
		if err == nil {
			if g.breaker != nil {
				g.breaker.RecordSuccess()
			}
			g.metrics.RecordModelCall(g.provider, "success")
			if attempt > 0 {
				g.logger.Info("model call succeeded after retries", "provider", g.provider, "retries", attempt)
			}
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", fmt.Errorf("model call canceled: %w", ctx.Err())
		}

		if !isRetriableError(err) {
			g.metrics.RecordModelCall(g.provider, "error")
			return "", err
		}
		if g.breaker != nil {
			g.breaker.RecordFailure()
		}
		if attempt == g.retry.MaxRetries {
			g.metrics.RecordModelCall(g.provider, "error")
			break
		}

		g.metrics.RecordModelCall(g.provider, "retry")
		g.logger.Warn("model call failed, retrying",
			"provider", g.provider,
			"attempt", attempt+1,
			"max_attempts", g.retry.MaxRetries+1,
			"backoff", backoff,
			"error", err)

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * g.retry.BackoffMultiplier)
			if backoff > g.retry.MaxBackoff {
				backoff = g.retry.MaxBackoff
			}
		case <-ctx.Done():
			return "", fmt.Errorf("model call canceled during backoff: %w", ctx.Err())
		}
	}

	return "", fmt.Errorf("model call failed after %d attempts: %w", g.retry.MaxRetries+1, lastErr)
}

// Inner returns the wrapped generator.
func (g *ResilientGenerator) Inner() Generator {
	return g.inner
}

// CountTokens delegates to the wrapped generator.
func (g *ResilientGenerator) CountTokens(ctx context.Context, text string) (int, error) {
	if tc, ok := g.inner.(TokenCounter); ok {
		return tc.CountTokens(ctx, text)
	}
	return 0, errNoTokenizer
}

// isRetriableError reports whether err looks transient. The caller's own
// cancellation is not retriable; a per-attempt deadline from a transport is.
func isRetriableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"400", "401", "403", "404", "invalid api key", "unauthorized"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	for _, s := range []string{
		"429", "rate limit", "overloaded",
		"500", "502", "503", "504", "529",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout",
		"connection refused", "connection reset", "timeout", "temporary failure", "eof",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

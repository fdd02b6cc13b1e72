package crudapi

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"sync"
	"time"
)

// Middleware wraps a Transport with additional behavior.
type Middleware func(Transport) Transport

// RetryConfig controls exponential backoff for idempotent calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// PipelineConfig selects the middlewares NewPipeline installs. Zero values
// leave the corresponding layer out.
type PipelineConfig struct {
	Timeout           time.Duration
	Retry             RetryConfig
	RequestsPerSecond float64
	Metrics           MetricsRecorder
}

// MetricsRecorder observes calls made through the pipeline. ObserveCall sees
// each call once, after any retries; ObserveRetry sees each failed attempt
// that is about to be repeated.
type MetricsRecorder interface {
	ObserveCall(call Call, duration time.Duration, err error)
	ObserveRetry(call Call, err error)
}

// NewPipeline wraps base, from the inside out, with a per-attempt timeout,
// request pacing, retries and metrics. Every attempt waits its turn under the
// rate limit and gets a fresh deadline.
func NewPipeline(base Transport, cfg PipelineConfig) Transport {
	if base == nil {
		return nil
	}

	t := base
	if cfg.Timeout > 0 {
		t = WithTimeout(cfg.Timeout)(t)
	}
	if cfg.RequestsPerSecond > 0 {
		t = WithRateLimit(cfg.RequestsPerSecond)(t)
	}
	if cfg.Retry.MaxAttempts > 1 {
		t = WithRetry(cfg.Retry, cfg.Metrics)(t)
	}
	if cfg.Metrics != nil {
		t = WithMetrics(cfg.Metrics)(t)
	}
	return t
}

// WithTimeout bounds each attempt with its own deadline.
func WithTimeout(timeout time.Duration) Middleware {
	return func(next Transport) Transport {
		return transportFunc(func(ctx context.Context, call Call) ([]byte, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next.Send(ctx, call)
		})
	}
}

// WithRetry repeats idempotent calls that failed with a rate limit, an
// upstream error or a timeout. Creates are sent once: a create that timed out
// may already be stored remotely, and repeating it would store it twice.
// recorder may be nil.
func WithRetry(cfg RetryConfig, recorder MetricsRecorder) Middleware {
	cfg = normalizeRetryConfig(cfg)
	return func(next Transport) Transport {
		return &retryTransport{next: next, cfg: cfg, recorder: recorder}
	}
}

type retryTransport struct {
	next     Transport
	cfg      RetryConfig
	recorder MetricsRecorder
}

func (t *retryTransport) Send(ctx context.Context, call Call) ([]byte, error) {
	attempts := t.cfg.MaxAttempts
	if !call.Idempotent() {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		data, err := t.next.Send(ctx, call)
		if err == nil || attempt >= attempts || !isRetryableError(err) || ctx.Err() != nil {
			return data, err
		}
		if t.recorder != nil {
			t.recorder.ObserveRetry(call, err)
		}
		if err := sleep(ctx, jitter(t.cfg.backoff(attempt))); err != nil {
			return nil, err
		}
	}
}

// backoff doubles BaseDelay per attempt, capped at MaxDelay.
func (c RetryConfig) backoff(attempt int) time.Duration {
	delay := c.BaseDelay
	for i := 1; i < attempt && delay < c.MaxDelay; i++ {
		delay *= 2
	}
	return min(delay, c.MaxDelay)
}

// jitter picks a delay in [d/2, d] so concurrent clients spread out.
func jitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half+1)
}

func normalizeRetryConfig(cfg RetryConfig) RetryConfig {
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	cfg.MaxDelay = max(cfg.MaxDelay, cfg.BaseDelay)
	return cfg
}

func isRetryableError(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case ErrorKindRateLimit, ErrorKindUpstream:
			return true
		case ErrorKindNetwork:
			var netErr net.Error
			return errors.As(apiErr.Err, &netErr) && netErr.Timeout()
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// WithRateLimit spaces calls at least 1/perSecond apart.
func WithRateLimit(perSecond float64) Middleware {
	return func(next Transport) Transport {
		p := &pacer{interval: time.Duration(float64(time.Second) / perSecond)}
		return transportFunc(func(ctx context.Context, call Call) ([]byte, error) {
			if err := p.wait(ctx); err != nil {
				return nil, err
			}
			return next.Send(ctx, call)
		})
	}
}

// pacer hands out send slots one interval apart.
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func (p *pacer) wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	if p.next.Before(now) {
		p.next = now
	}
	delay := p.next.Sub(now)
	p.next = p.next.Add(p.interval)
	p.mu.Unlock()

	return sleep(ctx, delay)
}

// WithMetrics reports each call's total duration and outcome to recorder.
func WithMetrics(recorder MetricsRecorder) Middleware {
	return func(next Transport) Transport {
		return transportFunc(func(ctx context.Context, call Call) ([]byte, error) {
			start := time.Now()
			data, err := next.Send(ctx, call)
			recorder.ObserveCall(call, time.Since(start), err)
			return data, err
		})
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type transportFunc func(ctx context.Context, call Call) ([]byte, error)

func (f transportFunc) Send(ctx context.Context, call Call) ([]byte, error) {
	return f(ctx, call)
}

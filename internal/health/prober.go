// Package health polls the inference server's readiness endpoint until
// it answers 2xx or a wall-clock budget runs out.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultWaitBudget is the total time to wait for the server to come up
	DefaultWaitBudget = 2 * time.Minute

	// DefaultPollInterval is how often to probe
	DefaultPollInterval = 5 * time.Second

	// DefaultRequestTimeout bounds each individual probe request
	DefaultRequestTimeout = 3 * time.Second
)

// TimeoutError indicates the server never became healthy within the budget
type TimeoutError struct {
	URL       string
	Attempts  int
	Budget    time.Duration
	LastError string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("health check at %s timed out after %s (%d attempts): %s",
		e.URL, e.Budget, e.Attempts, e.LastError)
}

// ProbeResult contains the outcome of one polling run
type ProbeResult struct {
	Healthy   bool
	Attempts  int
	Duration  time.Duration
	LastError string
}

// Prober polls a health endpoint with a bounded wait
type Prober struct {
	waitBudget     time.Duration
	pollInterval   time.Duration
	requestTimeout time.Duration
	client         *http.Client
}

// Option configures the Prober
type Option func(*Prober)

// WithWaitBudget sets the total polling budget
func WithWaitBudget(d time.Duration) Option {
	return func(p *Prober) {
		p.waitBudget = d
	}
}

// WithPollInterval sets the interval between probes
func WithPollInterval(d time.Duration) Option {
	return func(p *Prober) {
		p.pollInterval = d
	}
}

// WithRequestTimeout sets the timeout for each probe request
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Prober) {
		p.requestTimeout = d
	}
}

// WithHTTPClient sets a custom HTTP client (for testing)
func WithHTTPClient(client *http.Client) Option {
	return func(p *Prober) {
		p.client = client
	}
}

// NewProber creates a new health prober
func NewProber(opts ...Option) *Prober {
	p := &Prober{
		waitBudget:     DefaultWaitBudget,
		pollInterval:   DefaultPollInterval,
		requestTimeout: DefaultRequestTimeout,
		client:         http.DefaultClient,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe GETs url at the poll interval until it returns 2xx or the wait
// budget elapses. Individual probe failures are retried; exhausting the
// budget returns a TimeoutError alongside the result.
func (p *Prober) Probe(ctx context.Context, url string) (*ProbeResult, error) {
	start := time.Now()

	budgetCtx, cancel := context.WithTimeout(ctx, p.waitBudget)
	defer cancel()

	// The limiter paces attempts: the first Wait returns immediately,
	// every subsequent one blocks for the poll interval.
	limiter := rate.NewLimiter(rate.Every(p.pollInterval), 1)

	attempts := 0
	var lastError string

	for {
		if err := limiter.Wait(budgetCtx); err != nil {
			result := &ProbeResult{
				Attempts:  attempts,
				Duration:  time.Since(start),
				LastError: lastError,
			}
			// Distinguish caller cancellation from budget exhaustion
			if ctx.Err() != nil {
				result.LastError = ctx.Err().Error()
				return result, ctx.Err()
			}
			return result, &TimeoutError{
				URL:       url,
				Attempts:  attempts,
				Budget:    p.waitBudget,
				LastError: lastError,
			}
		}

		attempts++

		err := p.tryOnce(budgetCtx, url)
		if err == nil {
			return &ProbeResult{
				Healthy:  true,
				Attempts: attempts,
				Duration: time.Since(start),
			}, nil
		}
		lastError = err.Error()
	}
}

// tryOnce issues a single probe request with its own short timeout
func (p *Prober) tryOnce(ctx context.Context, url string) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	// The body is not inspected, only drained so the connection is reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}

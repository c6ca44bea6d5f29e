package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/config"
)

const requestTimeout = 10 * time.Second

// Refresher keeps the EUR to RUB rate warm in the background. Consumers read
// through CurrentRate and never block on a refresh; a rate that was never
// fetched, or whose source is down, degrades to the configured fallback.
type Refresher struct {
	endpoint string
	interval time.Duration
	fallback float64
	client   *http.Client
	logger   func(context.Context, string, map[string]any)

	mu          sync.RWMutex
	rate        float64
	refreshedAt time.Time
}

// RefresherDeps bundles the refresher's configuration.
type RefresherDeps struct {
	Config config.ExchangeConfig
	Client *http.Client
	Logger func(context.Context, string, map[string]any)
}

// NewRefresher validates the configuration and builds the refresher.
func NewRefresher(deps RefresherDeps) (*Refresher, error) {
	if deps.Config.Endpoint == "" {
		return nil, errors.New("exchange refresher: endpoint is required")
	}
	if deps.Config.FallbackRate <= 0 {
		return nil, errors.New("exchange refresher: fallback rate must be positive")
	}
	interval := deps.Config.RefreshInterval
	if interval <= 0 {
		interval = time.Hour
	}
	client := deps.Client
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Refresher{
		endpoint: deps.Config.Endpoint,
		interval: interval,
		fallback: deps.Config.FallbackRate,
		client:   client,
		logger:   logger,
	}, nil
}

// CurrentRate returns the last fetched rate, or the fallback when no fetch
// has succeeded yet.
func (r *Refresher) CurrentRate() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.rate > 0 {
		return r.rate
	}
	return r.fallback
}

// Start fetches once immediately, then refreshes on the configured interval
// until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	r.refresh(ctx)
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.refresh(ctx)
			}
		}
	}()
}

// Refresh performs a single fetch. Exposed for tests and manual pokes.
func (r *Refresher) Refresh(ctx context.Context) error {
	return r.refreshOnce(ctx)
}

func (r *Refresher) refresh(ctx context.Context) {
	if err := r.refreshOnce(ctx); err != nil {
		r.logger(ctx, "exchange.refresh_failed", map[string]any{
			"endpoint": r.endpoint,
			"error":    err.Error(),
		})
	}
}

func (r *Refresher) refreshOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return fmt.Errorf("build rate request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch rate: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode rate payload: %w", err)
	}
	rate, ok := payload.Rates["RUB"]
	if !ok || rate <= 0 {
		return fmt.Errorf("rate payload has no usable RUB rate")
	}

	r.mu.Lock()
	r.rate = rate
	r.refreshedAt = time.Now().UTC()
	r.mu.Unlock()
	return nil
}

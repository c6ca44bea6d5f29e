package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/config"
)

func testConfig(endpoint string) config.ExchangeConfig {
	return config.ExchangeConfig{
		Endpoint:        endpoint,
		RefreshInterval: time.Hour,
		FallbackRate:    105,
	}
}

func TestRefresherFetchesRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"EUR","rates":{"RUB":92.35,"USD":1.08}}`))
	}))
	defer srv.Close()

	refresher, err := NewRefresher(RefresherDeps{Config: testConfig(srv.URL)})
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}

	if err := refresher.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := refresher.CurrentRate(); got != 92.35 {
		t.Fatalf("rate: got %.2f", got)
	}
}

func TestRefresherFallsBackBeforeFirstFetch(t *testing.T) {
	refresher, err := NewRefresher(RefresherDeps{Config: testConfig("http://localhost:1/rates")})
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}
	if got := refresher.CurrentRate(); got != 105 {
		t.Fatalf("fallback rate: got %.2f", got)
	}
}

func TestRefresherKeepsLastRateOnFailure(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"rates":{"RUB":90}}`))
	}))
	defer srv.Close()

	refresher, err := NewRefresher(RefresherDeps{Config: testConfig(srv.URL)})
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}

	if err := refresher.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	healthy = false
	if err := refresher.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh failure")
	}
	// A stale rate beats the hardcoded fallback.
	if got := refresher.CurrentRate(); got != 90 {
		t.Fatalf("rate after failure: got %.2f", got)
	}
}

func TestRefresherRejectsUnusablePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"USD":1.08}}`))
	}))
	defer srv.Close()

	refresher, err := NewRefresher(RefresherDeps{Config: testConfig(srv.URL)})
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}
	if err := refresher.Refresh(context.Background()); err == nil {
		t.Fatal("expected error for payload without RUB")
	}
	if got := refresher.CurrentRate(); got != 105 {
		t.Fatalf("rate: got %.2f", got)
	}
}

package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/config"
	"github.com/g1nlyf/BikeWerk-sub001/internal/services"
)

const defaultTimeout = 20 * time.Second

// Client talks to the external listing-parser service. The booking flow
// treats every call as best-effort; this client only reports errors, it
// never retries.
type Client struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewClient validates the configuration and builds the client.
func NewClient(cfg config.ListingConfig) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("listing client: endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   endpoint,
		authToken: cfg.AuthToken,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// ParseShippingHint asks the parser to recover shipping, title and price
// hints from the raw listing snapshot.
func (c *Client) ParseShippingHint(ctx context.Context, snapshot map[string]any) (services.ListingHint, error) {
	var payload struct {
		ShippingOption  string  `json:"shipping_option"`
		Title           string  `json:"title"`
		ListingPriceEur float64 `json:"listing_price_eur"`
	}
	if err := c.post(ctx, "/v1/parse", snapshot, &payload); err != nil {
		return services.ListingHint{}, err
	}
	return services.ListingHint{
		ShippingOption:  strings.TrimSpace(payload.ShippingOption),
		Title:           strings.TrimSpace(payload.Title),
		ListingPriceEur: payload.ListingPriceEur,
	}, nil
}

// FindListingURL asks the parser to resolve the canonical listing URL.
func (c *Client) FindListingURL(ctx context.Context, snapshot map[string]any) (string, error) {
	var payload struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/v1/listing-url", snapshot, &payload); err != nil {
		return "", err
	}
	return strings.TrimSpace(payload.URL), nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode listing request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build listing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call listing parser: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("listing parser: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode listing response: %w", err)
	}
	return nil
}

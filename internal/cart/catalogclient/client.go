// Package catalogclient is the cart service's synchronous path to the
// catalog, used only when a product is not in the local cache at
// add-to-cart time. Event-driven reconciliation never goes through here.
package catalogclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/domain"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/events"
	"github.com/sony/gobreaker/v2"
)

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*domain.Product]
}

func New(baseURL string) *Client {
	settings := gobreaker.Settings{
		Name:    "catalog-client",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[*domain.Product](settings),
	}
}

// GetProduct fetches one product from the catalog service. The circuit
// breaker keeps a catalog outage from stalling every add-to-cart request.
func (c *Client) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	return c.breaker.Execute(func() (*domain.Product, error) {
		return c.fetch(ctx, productID)
	})
}

func (c *Client) fetch(ctx context.Context, productID int64) (*domain.Product, error) {
	url := fmt.Sprintf("%s/products/%d", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	if id := events.CorrelationID(ctx); id != "" {
		req.Header.Set(events.CorrelationIDHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var product domain.Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	return &product, nil
}

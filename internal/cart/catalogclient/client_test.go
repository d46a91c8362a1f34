package catalogclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/domain"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/events"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/42", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.Product{
			ID: 42, Name: "Widget", Price: 9.99, Currency: "USD", Active: true,
		})
	}))
	defer srv.Close()

	client := New(srv.URL)

	product, err := client.GetProduct(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), product.ID)
	assert.Equal(t, "Widget", product.Name)
	assert.True(t, product.Active)
}

func TestGetProduct_ForwardsCorrelationHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Correlation-ID")
		_ = json.NewEncoder(w).Encode(domain.Product{ID: 42, Name: "Widget"})
	}))
	defer srv.Close()

	client := New(srv.URL)
	ctx := events.WithCorrelationID(context.Background(), "corr-1")

	_, err := client.GetProduct(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "corr-1", got)
}

func TestGetProduct_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := New(srv.URL)

	_, err := client.GetProduct(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestGetProduct_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL)

	_, err := client.GetProduct(context.Background(), 42)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrProductNotFound)
}

func TestGetProduct_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL)

	for i := 0; i < 5; i++ {
		_, err := client.GetProduct(context.Background(), 42)
		require.Error(t, err)
	}

	_, err := client.GetProduct(context.Background(), 42)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/property"
)

func TestClient_FetchesProperty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/properties/p-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"p-1","owner_id":"o-1","title":"Loft","type":"Rent","price_per_night":"100.50","currency":"usd"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/api/", time.Second, nil, nil)
	require.NoError(t, err)
	p, err := c.Property(context.Background(), "p-1")
	require.NoError(t, err)

	assert.Equal(t, property.TypeRent, p.Type)
	assert.Equal(t, "100.5", p.PricePerNight.Amount.String())
	assert.Equal(t, "USD", p.PricePerNight.Currency)
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second, nil, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := c.Property(context.Background(), "missing")
		assert.ErrorIs(t, err, property.ErrNotFound)
	}
	assert.Equal(t, int32(5), hits.Load())
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second, nil, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := c.Property(context.Background(), "p-1")
		var se statusError
		require.True(t, errors.As(err, &se))
	}
	_, err = c.Property(context.Background(), "p-1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_RejectsInvalidPayloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p-1","type":"castle","price_per_night":10,"currency":"USD"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second, nil, nil)
	require.NoError(t, err)
	_, err = c.Property(context.Background(), "p-1")
	assert.ErrorIs(t, err, property.ErrInvalidType)
}

func TestNewClient_ValidatesBaseURL(t *testing.T) {
	_, err := NewClient("not a url", time.Second, nil, nil)
	assert.Error(t, err)
}

package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPProvider_GetVariant(t *testing.T) {
	srv := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/variants/42", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(Variant{ID: 42, ProductID: 4, Price: 1999, Stock: 3, Active: true, PetType: "dog"})
	})

	p := NewHTTPProvider(srv.URL, "secret", time.Second, BreakerSettings{})
	v, err := p.GetVariant(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, uint(4), v.ProductID)
	assert.Equal(t, int64(1999), v.Price)
	assert.True(t, v.InStock())
}

func TestHTTPProvider_NotFoundAndInactive(t *testing.T) {
	srv := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/variants/1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(Variant{ID: 2, ProductID: 1, Price: 10, Stock: 1, Active: false})
	})

	p := NewHTTPProvider(srv.URL, "", time.Second, BreakerSettings{})
	_, err := p.GetVariant(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.GetVariant(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPProvider_ServerErrorIsUnavailable(t *testing.T) {
	srv := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	p := NewHTTPProvider(srv.URL, "", time.Second, BreakerSettings{})
	_, err := p.GetVariant(context.Background(), 9)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPProvider_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	srv := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	p := NewHTTPProvider(srv.URL, "", time.Second, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute})
	for i := 0; i < 2; i++ {
		_, err := p.GetVariant(context.Background(), 5)
		require.ErrorIs(t, err, ErrUnavailable)
	}

	_, err := p.GetVariant(context.Background(), 5)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "open breaker must not reach the server")
}

func TestHTTPProvider_NotFoundDoesNotTripBreaker(t *testing.T) {
	var calls int32
	srv := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	p := NewHTTPProvider(srv.URL, "", time.Second, BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Minute})
	for i := 0; i < 3; i++ {
		_, err := p.GetVariant(context.Background(), 5)
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPProvider_ListVariants(t *testing.T) {
	srv := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/7/variants":
			_ = json.NewEncoder(w).Encode([]Variant{
				{ID: 70, ProductID: 7, Price: 900, Stock: 1, Active: true},
				{ID: 71, Price: 1200, Stock: 0, Active: true},
				{ID: 72, ProductID: 7, Price: 100, Stock: 5, Active: false},
			})
		case "/products/8/variants":
			_ = json.NewEncoder(w).Encode([]Variant{{ID: 80, ProductID: 8, Active: false}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	p := NewHTTPProvider(srv.URL, "", time.Second, BreakerSettings{})
	vs, err := p.ListVariants(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, vs, 2, "inactive variants are dropped")
	assert.Equal(t, uint(70), vs[0].ID)
	assert.Equal(t, uint(7), vs[1].ProductID)
	assert.False(t, vs[1].InStock())

	_, err = p.ListVariants(context.Background(), 8)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = p.ListVariants(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPProvider_BreakerIsSharedAcrossEndpoints(t *testing.T) {
	var calls int32
	srv := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	p := NewHTTPProvider(srv.URL, "", time.Second, BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Minute})
	_, err := p.GetVariant(context.Background(), 5)
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = p.ListVariants(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(Variant{ID: 1, ProductID: 10, Price: 500, Stock: 2, Active: true})

	v, err := p.GetVariant(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(500), v.Price)

	p.SetPrice(1, 700)
	v, err = p.GetVariant(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(700), v.Price)

	p.FailWith(ErrUnavailable)
	_, err = p.GetVariant(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	p.FailWith(nil)

	p.Put(Variant{ID: 2, ProductID: 10, Price: 300, Stock: 0, Active: true})
	p.Put(Variant{ID: 3, ProductID: 10, Price: 100, Stock: 1, Active: false})
	vs, err := p.ListVariants(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, uint(1), vs[0].ID)
	assert.Equal(t, uint(2), vs[1].ID)

	p.Remove(1)
	_, err = p.GetVariant(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.ListVariants(context.Background(), 11)
	assert.ErrorIs(t, err, ErrNotFound)
}

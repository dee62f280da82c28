package adminapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storefront/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, srv *httptest.Server, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:         srv.URL + "/api",
		Token:           "secret",
		Timeout:         2 * time.Second,
		PageSize:        2,
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty base url", Config{Timeout: time.Second}},
		{"relative base url", Config{BaseURL: "/api", Timeout: time.Second}},
		{"zero timeout", Config{BaseURL: "http://admin/api"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg, nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestClient_ListOrdersByStatus_FollowsSpringPages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "SHIPPED", r.URL.Query().Get("status"))
		assert.Equal(t, "2", r.URL.Query().Get("size"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		switch r.URL.Query().Get("page") {
		case "0":
			fmt.Fprint(w, `{"content":[{"id":1,"status":"SHIPPED"},{"id":2,"status":"SHIPPED"}],"last":false}`)
		case "1":
			fmt.Fprint(w, `{"content":[{"id":9007199254740993,"status":"SHIPPED"}],"last":true}`)
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	orders, err := newTestClient(t, srv).ListOrdersByStatus(context.Background(), "SHIPPED")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, json.Number("9007199254740993"), orders[2]["id"])
}

func TestClient_BareArrayIsSinglePage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[{"id":1},{"id":2},{"id":3}]`)
	}))
	defer srv.Close()

	orders, err := newTestClient(t, srv).ListOrdersByStatus(context.Background(), "PENDING")
	require.NoError(t, err)
	assert.Len(t, orders, 3)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_PageWithoutLastFlagStopsOnShortPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "0" {
			fmt.Fprint(w, `{"content":[{"id":1},{"id":2}]}`)
			return
		}
		fmt.Fprint(w, `{"content":[{"id":3}]}`)
	}))
	defer srv.Close()

	orders, err := newTestClient(t, srv).ListOrdersByStatus(context.Background(), "PENDING")
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}

func TestClient_ListCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/categories":
			fmt.Fprint(w, `[{"id":1,"name":"Pizza","active":true},{"id":2,"name":"Drinks","parentId":1}]`)
		case "/api/products":
			fmt.Fprint(w, `{"content":[{"id":10,"sku":"P-10","name":"Margherita","price":"8.50","categoryId":1,"stockQuantity":4}],"last":true}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	cats, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	require.NotNil(t, cats[1].ParentID)
	assert.Equal(t, int64(1), *cats[1].ParentID)

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "P-10", products[0].SKU)
	assert.Equal(t, "8.5", products[0].Price.String())
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, integration.ErrAdminAuthFailed},
		{http.StatusForbidden, integration.ErrAdminAuthFailed},
		{http.StatusTooManyRequests, integration.ErrAdminRateLimited},
		{http.StatusBadRequest, integration.ErrAdminRequestFailed},
		{http.StatusBadGateway, integration.ErrAdminUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv).ListOrdersByStatus(context.Background(), "PENDING")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_InvalidResponses(t *testing.T) {
	t.Run("malformed json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"content":[`)
		}))
		defer srv.Close()
		_, err := newTestClient(t, srv).ListOrdersByStatus(context.Background(), "PENDING")
		assert.ErrorIs(t, err, integration.ErrAdminInvalidResponse)
	})

	t.Run("oversized body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "["+strings.Repeat(`{"id":1},`, 100)+`{"id":1}]`)
		}))
		defer srv.Close()
		c := newTestClient(t, srv, func(cfg *Config) { cfg.MaxResponseBytes = 64 })
		_, err := c.ListOrdersByStatus(context.Background(), "PENDING")
		assert.ErrorIs(t, err, integration.ErrAdminInvalidResponse)
	})
}

func TestClient_BreakerOpensOnTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	for i := 0; i < 2; i++ {
		_, err := c.ListOrdersByStatus(context.Background(), "PENDING")
		require.ErrorIs(t, err, integration.ErrAdminUnavailable)
	}
	assert.Equal(t, "open", c.BreakerState())

	_, err := c.ListOrdersByStatus(context.Background(), "PENDING")
	assert.ErrorIs(t, err, integration.ErrAdminUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	for i := 0; i < 5; i++ {
		_, err := c.ListCategories(context.Background())
		require.ErrorIs(t, err, integration.ErrAdminRequestFailed)
	}
	assert.Equal(t, "closed", c.BreakerState())
}

func TestClient_RateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()
	c := newTestClient(t, srv, func(cfg *Config) {
		cfg.RateLimit = 0.001
		cfg.RateBurst = 1
	})

	_, err := c.ListOrdersByStatus(context.Background(), "PENDING")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListOrdersByStatus(ctx, "PENDING")
	assert.ErrorIs(t, err, integration.ErrAdminRateLimited)
}

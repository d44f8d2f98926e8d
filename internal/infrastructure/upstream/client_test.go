package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/dashboard/internal/domain/listing"
	"github.com/erp/dashboard/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingObserver struct {
	sections []string
}

func (o *countingObserver) ObserveUpstreamError(section string) {
	o.sections = append(o.sections, section)
}

var inventorySection = listing.Section{
	Key:      "inventory",
	Resource: "inventory/items",
	Columns: []listing.Column{
		{Key: "product_name", Kind: listing.KindText},
		{Key: "available_quantity", Kind: listing.KindQuantity},
		{Key: "unit_cost", Kind: listing.KindMoney},
	},
}

func newTestClient(t *testing.T, baseURL string, obs ErrorObserver) (*Client, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	c, err := NewClient(config.UpstreamConfig{BaseURL: baseURL, Timeout: 2 * time.Second}, zap.New(core), obs)
	require.NoError(t, err)
	return c, logs
}

func TestFetchRows_ForwardsTokenAndDecodesArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/inventory/items", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("page_size"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"product_name":"Pallet","available_quantity":1200,"unit_cost":"350000.5"}]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL+"/", nil)
	rows, err := c.FetchRows(context.Background(), inventorySection, "tok-123")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Pallet", rows[0]["product_name"])

	l := inventorySection.Render(rows)
	assert.Equal(t, []string{"Pallet", "1,200", "350,000.5 VNĐ"}, l.Rows[0])
}

func TestFetchRows_PagedData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":true,"data":{"items":[{"product_name":"A"},{"product_name":"B"}]},"meta":{"total":2}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, nil)
	rows, err := c.FetchRows(context.Background(), inventorySection, "")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFetchRows_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"success":false}`, ErrUnexpectedStatus},
		{"unauthorized", http.StatusUnauthorized, ``, ErrUnexpectedStatus},
		{"not json", http.StatusOK, `<html>`, ErrEnvelope},
		{"failure envelope", http.StatusOK, `{"success":false,"error":{"code":"ERR_X","message":"boom"}}`, ErrEnvelope},
		{"data not a list", http.StatusOK, `{"success":true,"data":"nope"}`, ErrEnvelope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, _ := newTestClient(t, srv.URL, nil)
			_, err := c.FetchRows(context.Background(), inventorySection, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFetchRows_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":null}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, nil)
	rows, err := c.FetchRows(context.Background(), inventorySection, "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFetch_DegradesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	obs := &countingObserver{}
	c, logs := newTestClient(t, srv.URL, obs)

	l := c.Fetch(context.Background(), inventorySection, "")
	assert.Empty(t, l.Rows)
	assert.NotEmpty(t, l.Warning)
	assert.Equal(t, []string{"inventory"}, obs.sections)
	assert.Equal(t, 1, logs.FilterMessage("Section listing unavailable").Len())
}

func TestFetch_Unconfigured(t *testing.T) {
	obs := &countingObserver{}
	c, logs := newTestClient(t, "", obs)
	assert.False(t, c.Configured())

	_, err := c.FetchRows(context.Background(), inventorySection, "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	l := c.Fetch(context.Background(), inventorySection, "")
	assert.Empty(t, l.Rows)
	assert.Equal(t, "No data source is configured.", l.Warning)
	assert.Empty(t, obs.sections)
	assert.Equal(t, 0, logs.Len())
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(config.UpstreamConfig{BaseURL: "not a url"}, nil, nil)
	assert.Error(t, err)
}

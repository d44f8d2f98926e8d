// Package upstream fetches section listings from the ERP data API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erp/dashboard/internal/domain/listing"
	"github.com/erp/dashboard/internal/infrastructure/config"
	"github.com/erp/dashboard/internal/infrastructure/logger"
	"github.com/erp/dashboard/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	apiPrefix       = "/api/v1/"
	defaultPageSize = 50
	maxBodyBytes    = 4 << 20
)

var (
	// ErrNotConfigured is returned when no base URL is set
	ErrNotConfigured = errors.New("upstream data API not configured")
	// ErrUnexpectedStatus is returned for non-2xx responses
	ErrUnexpectedStatus = errors.New("unexpected upstream status")
	// ErrEnvelope is returned when the response is not a success envelope
	ErrEnvelope = errors.New("malformed upstream response")
)

// ErrorObserver counts failed fetches per section
type ErrorObserver interface {
	ObserveUpstreamError(section string)
}

// Client reads section rows from the ERP API
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
	observer   ErrorObserver
}

// NewClient creates a client. An empty base URL yields an unconfigured
// client whose listings are always empty.
func NewClient(cfg config.UpstreamConfig, log *zap.Logger, observer ErrorObserver) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base != "" {
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid upstream base URL %q", cfg.BaseURL)
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:  base,
		logger:   log,
		observer: observer,
	}, nil
}

// Configured reports whether a base URL is set
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchRows GETs the section's resource, forwarding token as a bearer
// credential, and decodes the rows of the success envelope. The data member
// may be a bare array or an object with an items array.
func (c *Client) FetchRows(ctx context.Context, section listing.Section, token string) ([]listing.Row, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, span := telemetry.StartSpan(ctx, "upstream.fetch",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrSection, section.Key),
	)
	defer span.End()

	endpoint := c.baseURL + apiPrefix + strings.TrimLeft(section.Resource, "/") +
		fmt.Sprintf("?page=1&page_size=%d", defaultPageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "warehouse-dashboard/1.0")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := logger.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("requesting %s: %w", section.Resource, err)
	}
	defer resp.Body.Close()

	telemetry.SetAttributes(span, "http.response.status_code", resp.StatusCode)
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		telemetry.RecordError(span, err)
		return nil, err
	}

	rows, err := decodeRows(body)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "dashboard.rows", len(rows))
	return rows, nil
}

// Fetch returns the display listing of section. Failures degrade to an
// empty listing carrying a warning so the page still renders.
func (c *Client) Fetch(ctx context.Context, section listing.Section, token string) listing.Listing {
	rows, err := c.FetchRows(ctx, section, token)
	if err == nil {
		return section.Render(rows)
	}

	out := section.Render(nil)
	if errors.Is(err, ErrNotConfigured) {
		out.Warning = "No data source is configured."
		return out
	}

	logger.With(ctx, c.logger).Warn("Section listing unavailable",
		zap.String("section", section.Key),
		zap.Error(err),
	)
	if c.observer != nil {
		c.observer.ObserveUpstreamError(section.Key)
	}
	out.Warning = "Data is temporarily unavailable."
	return out
}

func decodeRows(body []byte) ([]listing.Row, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	if !env.Success {
		if env.Error != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrEnvelope, env.Error.Code, env.Error.Message)
		}
		return nil, fmt.Errorf("%w: success is false", ErrEnvelope)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []listing.Row{}, nil
	}

	if data[0] == '{' {
		var page struct {
			Items json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
		}
		data = bytes.TrimSpace(page.Items)
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return []listing.Row{}, nil
		}
	}

	var rows []listing.Row
	dec = json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	return rows, nil
}

// Package catalog fetches properties from the remote catalog service.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
)

var ErrUnavailable = errors.New("catalog: service unavailable")

// statusError is a non-2xx answer. 4xx answers count as breaker successes:
// the catalog is up, the request was wrong.
type statusError struct {
	StatusCode int
}

func (e statusError) Error() string {
	return fmt.Sprintf("catalog: unexpected status %d", e.StatusCode)
}

// Client implements property.Catalog over HTTP behind a circuit breaker.
type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, tracer trace.Tracer, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("catalog: invalid base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:    base,
		http:    &http.Client{Timeout: timeout},
		breaker: newBreaker("property-catalog", logger),
		tracer:  tracer,
		logger:  logger,
	}, nil
}

var _ property.Catalog = (*Client)(nil)

func newBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 2
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se statusError
			return errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500
		},
	})
}

type propertyResponse struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Title         string          `json:"title"`
	Type          string          `json:"type"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
	Currency      string          `json:"currency"`
}

func (c *Client) Property(ctx context.Context, id property.ID) (*property.Property, error) {
	var span trace.Span
	if c.tracer != nil {
		ctx, span = c.tracer.Start(ctx, "catalog.Property")
		defer span.End()
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, id)
	})
	if err != nil {
		if span != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		var se statusError
		switch {
		case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", property.ErrNotFound, id)
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		default:
			return nil, err
		}
	}
	return result.(*property.Property), nil
}

func (c *Client) fetch(ctx context.Context, id property.ID) (*property.Property, error) {
	endpoint := c.base.JoinPath("properties", string(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError{StatusCode: resp.StatusCode}
	}

	var body propertyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("catalog: decode property %s: %w", id, err)
	}
	return body.toDomain()
}

func (r propertyResponse) toDomain() (*property.Property, error) {
	kind, err := property.ParseType(r.Type)
	if err != nil {
		return nil, err
	}
	rate, err := money.New(r.PricePerNight, r.Currency)
	if err != nil {
		return nil, err
	}
	p := &property.Property{
		ID:            property.ID(r.ID),
		OwnerID:       r.OwnerID,
		Title:         r.Title,
		Type:          kind,
		PricePerNight: rate,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

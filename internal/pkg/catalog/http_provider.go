package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sony/gobreaker/v2"

	"github.com/ManuelReschke/PawPantry/internal/pkg/env"
)

const (
	defaultCatalogBaseURL = "http://catalog:8080/api/v1"
	defaultCatalogTimeout = 3 * time.Second
)

// HTTPProvider reads variant snapshots from the storefront catalog API. Calls go
// through a circuit breaker so a struggling catalog fails fast with ErrUnavailable.
type HTTPProvider struct {
	BaseURL    string
	APIToken   string
	HTTPClient *http.Client

	// one breaker for every endpoint: an outage is an outage of the whole catalog
	breaker *gobreaker.CircuitBreaker[[]Variant]
}

// BreakerSettings tunes the catalog circuit breaker.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func NewHTTPProvider(baseURL, apiToken string, timeout time.Duration, bs BreakerSettings) *HTTPProvider {
	if timeout <= 0 {
		timeout = defaultCatalogTimeout
	}
	if bs.ConsecutiveFailures == 0 {
		bs.ConsecutiveFailures = 5
	}
	if bs.OpenTimeout <= 0 {
		bs.OpenTimeout = 30 * time.Second
	}

	p := &HTTPProvider{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIToken:   apiToken,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	p.breaker = gobreaker.NewCircuitBreaker[[]Variant](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		// A missing variant is a valid answer, not a catalog outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("[Catalog] Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return p
}

// NewHTTPProviderFromEnv configures the provider from CATALOG_* variables.
func NewHTTPProviderFromEnv() *HTTPProvider {
	return NewHTTPProvider(
		strings.TrimSpace(env.GetEnv("CATALOG_BASE_URL", defaultCatalogBaseURL)),
		strings.TrimSpace(env.GetEnv("CATALOG_API_TOKEN", "")),
		env.GetEnvDuration("CATALOG_TIMEOUT", defaultCatalogTimeout),
		BreakerSettings{
			ConsecutiveFailures: uint32(env.GetEnvInt("CATALOG_BREAKER_FAILURES", 5)),
			OpenTimeout:         env.GetEnvDuration("CATALOG_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
	)
}

func (p *HTTPProvider) GetVariant(ctx context.Context, variantID uint) (*Variant, error) {
	if variantID == 0 {
		return nil, ErrNotFound
	}
	vs, err := p.breaker.Execute(func() ([]Variant, error) {
		v, err := p.fetchVariant(ctx, variantID)
		if err != nil {
			return nil, err
		}
		return []Variant{*v}, nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return &vs[0], nil
}

// ListVariants fetches the variants of a product from /products/{id}/variants.
func (p *HTTPProvider) ListVariants(ctx context.Context, productID uint) ([]Variant, error) {
	if productID == 0 {
		return nil, ErrNotFound
	}
	vs, err := p.breaker.Execute(func() ([]Variant, error) {
		return p.fetchProductVariants(ctx, productID)
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return vs, nil
}

// unavailable keeps catalog sentinels and maps everything else to ErrUnavailable.
func unavailable(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
		return err
	}
	// gobreaker.ErrOpenState, ErrTooManyRequests and context errors all land here.
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (p *HTTPProvider) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIToken)
	}

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrUnavailable, resp.StatusCode, string(body))
	}
	return body, nil
}

func (p *HTTPProvider) fetchVariant(ctx context.Context, variantID uint) (*Variant, error) {
	body, err := p.get(ctx, "/variants/"+strconv.FormatUint(uint64(variantID), 10))
	if err != nil {
		return nil, err
	}

	var out Variant
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode variant %d: %v", ErrUnavailable, variantID, err)
	}
	if !out.Active {
		return nil, ErrNotFound
	}
	if out.ID == 0 {
		out.ID = variantID
	}
	return &out, nil
}

func (p *HTTPProvider) fetchProductVariants(ctx context.Context, productID uint) ([]Variant, error) {
	body, err := p.get(ctx, "/products/"+strconv.FormatUint(uint64(productID), 10)+"/variants")
	if err != nil {
		return nil, err
	}

	var all []Variant
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, fmt.Errorf("%w: decode variants of product %d: %v", ErrUnavailable, productID, err)
	}
	out := all[:0]
	for _, v := range all {
		if v.Active {
			if v.ProductID == 0 {
				v.ProductID = productID
			}
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

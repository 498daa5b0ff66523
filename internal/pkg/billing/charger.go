package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuelReschke/PawPantry/internal/pkg/env"
)

// ErrChargeDeclined is returned when the payment endpoint refused the charge.
var ErrChargeDeclined = errors.New("charge declined")

// Charger collects the money for one billing cycle.
type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
}

// WebhookCharger posts signed charge requests to a payment endpoint.
type WebhookCharger struct {
	URL        string
	Secret     string
	HTTPClient *http.Client
}

func NewWebhookChargerFromEnv() *WebhookCharger {
	return &WebhookCharger{
		URL:    strings.TrimSpace(env.GetEnv("UNLIMITED_BILLING_WEBHOOK_URL", "")),
		Secret: strings.TrimSpace(env.GetEnv("UNLIMITED_BILLING_WEBHOOK_SECRET", "")),
		HTTPClient: &http.Client{
			Timeout: env.GetEnvDuration("UNLIMITED_BILLING_WEBHOOK_TIMEOUT", 15*time.Second),
		},
	}
}

func (c *WebhookCharger) Charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	if c.URL == "" {
		return nil, errors.New("UNLIMITED_BILLING_WEBHOOK_URL is not configured")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if c.Secret != "" {
		httpReq.Header.Set(SignatureHeader, SignPayload(payload, c.Secret))
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrChargeDeclined, resp.StatusCode, string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("charge request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out ChargeResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, err
		}
	}
	if strings.EqualFold(out.Status, "declined") {
		return nil, fmt.Errorf("%w: %s", ErrChargeDeclined, out.Reason)
	}
	return &out, nil
}

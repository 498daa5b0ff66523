package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PawPantry/app/models"
	"github.com/ManuelReschke/PawPantry/internal/pkg/catalog"
	"github.com/ManuelReschke/PawPantry/internal/pkg/unlimited"
)

type fakeCharger struct {
	mu       sync.Mutex
	requests []ChargeRequest
	err      error
}

func (f *fakeCharger) Charge(_ context.Context, req ChargeRequest) (*ChargeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &ChargeResponse{Status: "succeeded", Reference: "ch_1"}, nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newEngine(t *testing.T, clk *clock, cfg unlimited.Config) (*unlimited.Service, string) {
	t.Helper()
	provider := catalog.NewStaticProvider(
		catalog.Variant{ID: 11, ProductID: 1, Price: 200, Stock: 5, Active: true},
	)
	svc := unlimited.NewService(
		unlimited.NewMemoryDraftStore(cfg.DraftTTL, clk.Now),
		unlimited.NewMemoryPlanRepository(),
		provider,
		cfg,
		unlimited.WithClock(clk.Now),
	)
	ctx := context.Background()
	d, err := svc.CreateDraft(ctx, 7, 1000, models.PetTypeDog, models.UnlimitedModeMonthly)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, d.ID, 1, 11, 2)
	require.NoError(t, err)
	plan, err := svc.Activate(ctx, d.ID)
	require.NoError(t, err)
	return svc, plan.ID
}

func TestBillPlan_ChargesSpentAndAdvances(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	engine, planID := newEngine(t, clk, unlimited.DefaultConfig())
	charger := &fakeCharger{}
	svc := NewService(engine, charger, WithClock(clk.Now))

	clk.t = time.Date(2024, 2, 15, 6, 0, 0, 0, time.UTC)
	due, err := svc.DuePlans(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	billedFor := due[0].NextBillingDate
	outcome, err := svc.BillPlan(context.Background(), planID, billedFor)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCharged, outcome)

	require.Len(t, charger.requests, 1)
	assert.Equal(t, int64(400), charger.requests[0].Amount)
	assert.Equal(t, "2024-02-15", charger.requests[0].BilledFor)
	assert.Equal(t, IdempotencyKey(planID, billedFor), charger.requests[0].IdempotencyKey)

	plan, err := engine.GetPlan(context.Background(), planID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", plan.NextBillingDate.Format("2006-01-02"))

	// a redelivered job for the same cycle does not charge twice
	outcome, err = svc.BillPlan(context.Background(), planID, billedFor)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Len(t, charger.requests, 1)
}

func TestBillPlan_FailureAppliesPolicy(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	cfg := unlimited.DefaultConfig()
	cfg.FailurePolicy = unlimited.BillingFailurePolicy{Mode: unlimited.FailureRetry, MaxAttempts: 2}
	engine, planID := newEngine(t, clk, cfg)
	charger := &fakeCharger{err: ErrChargeDeclined}
	svc := NewService(engine, charger, WithClock(clk.Now))

	clk.t = time.Date(2024, 2, 15, 6, 0, 0, 0, time.UTC)
	billedFor := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)

	outcome, err := svc.BillPlan(context.Background(), planID, billedFor)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	plan, _ := engine.GetPlan(context.Background(), planID)
	assert.Equal(t, models.UnlimitedStatusActive, plan.Status)
	assert.Equal(t, 1, plan.FailedBillingAttempts)

	_, err = svc.BillPlan(context.Background(), planID, billedFor)
	require.NoError(t, err)
	plan, _ = engine.GetPlan(context.Background(), planID)
	assert.Equal(t, models.UnlimitedStatusPaused, plan.Status)
	assert.Equal(t, "2024-02-15", plan.NextBillingDate.Format("2006-01-02"))

	outcome, err = svc.BillPlan(context.Background(), planID, billedFor)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestWebhookCharger(t *testing.T) {
	var gotSig, gotKey string
	var got ChargeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotKey = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.Amount > 5000 {
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}
		_ = json.NewEncoder(w).Encode(ChargeResponse{Status: "succeeded", Reference: "ref-1"})
	}))
	defer server.Close()

	c := &WebhookCharger{URL: server.URL, Secret: "s3cret", HTTPClient: server.Client()}
	resp, err := c.Charge(context.Background(), ChargeRequest{PlanID: "p1", Amount: 900, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, "ref-1", resp.Reference)
	assert.Equal(t, "k1", gotKey)
	assert.NotEmpty(t, gotSig)

	_, err = c.Charge(context.Background(), ChargeRequest{PlanID: "p1", Amount: 9000, IdempotencyKey: "k2"})
	assert.True(t, errors.Is(err, ErrChargeDeclined))

	_, err = (&WebhookCharger{HTTPClient: server.Client()}).Charge(context.Background(), ChargeRequest{})
	assert.Error(t, err)
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"planId":"p1"}`)
	sig := SignPayload(payload, "top-secret")

	assert.True(t, VerifyWebhookSignature(payload, sig, "top-secret"))
	assert.False(t, VerifyWebhookSignature(payload, sig, "other"))
	assert.False(t, VerifyWebhookSignature(payload, "deadbeef", "top-secret"))
	assert.False(t, VerifyWebhookSignature(payload, "", "top-secret"))
}

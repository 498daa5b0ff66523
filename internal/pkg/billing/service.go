package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PawPantry/app/models"
	"github.com/ManuelReschke/PawPantry/internal/pkg/env"
	"github.com/ManuelReschke/PawPantry/internal/pkg/unlimited"
)

// Engine is the part of the lifecycle engine billing needs.
type Engine interface {
	GetPlan(ctx context.Context, planID string) (*models.UnlimitedPlan, error)
	DueForBilling(ctx context.Context, asOf time.Time, limit int) ([]models.UnlimitedPlan, error)
	RecordBillingSuccess(ctx context.Context, planID string, billedFor time.Time) (*models.UnlimitedPlan, error)
	RecordBillingFailure(ctx context.Context, planID string, billedFor time.Time, cause error) (*models.UnlimitedPlan, error)
}

// Service charges due plans and reports the result back to the engine.
type Service struct {
	engine   Engine
	charger  Charger
	currency string
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now for due checks and request timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a billing service from an injected engine and charger.
func NewService(engine Engine, charger Charger, opts ...Option) *Service {
	s := &Service{
		engine:   engine,
		charger:  charger,
		currency: env.GetEnv("UNLIMITED_CURRENCY", "INR"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IdempotencyKey identifies one cycle of one plan towards the payment endpoint.
func IdempotencyKey(planID string, billedFor time.Time) string {
	return fmt.Sprintf("unlimited:%s:%s", planID, billedFor.UTC().Format("2006-01-02"))
}

// DuePlans lists plans the runner should enqueue now.
func (s *Service) DuePlans(ctx context.Context, limit int) ([]models.UnlimitedPlan, error) {
	return s.engine.DueForBilling(ctx, s.now(), limit)
}

// BillPlan charges the cycle of planID that falls on billedFor. A plan that was
// paused, cancelled, skipped or already billed meanwhile is skipped.
func (s *Service) BillPlan(ctx context.Context, planID string, billedFor time.Time) (Outcome, error) {
	plan, err := s.engine.GetPlan(ctx, planID)
	if err != nil {
		return OutcomeSkipped, err
	}
	if plan.Status != models.UnlimitedStatusActive || !sameDay(plan.NextBillingDate, billedFor) {
		log.Infof("[Billing] Skipping plan %s for %s (status=%s next=%s)", planID, billedFor.Format("2006-01-02"),
			plan.Status, plan.NextBillingDate.Format("2006-01-02"))
		return OutcomeSkipped, nil
	}

	amount := unlimited.Evaluate(plan.Budget, plan.SelectionLines()).Spent
	_, chargeErr := s.charger.Charge(ctx, ChargeRequest{
		PlanID:         plan.ID,
		UserID:         plan.UserID,
		Amount:         amount,
		Currency:       s.currency,
		BilledFor:      billedFor.UTC().Format("2006-01-02"),
		IdempotencyKey: IdempotencyKey(plan.ID, billedFor),
		RequestedAt:    s.now().UTC(),
	})
	if chargeErr != nil {
		if _, err := s.engine.RecordBillingFailure(ctx, plan.ID, billedFor, chargeErr); err != nil {
			return OutcomeFailed, s.settleError(plan.ID, err)
		}
		return OutcomeFailed, nil
	}

	if _, err := s.engine.RecordBillingSuccess(ctx, plan.ID, billedFor); err != nil {
		return OutcomeCharged, s.settleError(plan.ID, err)
	}
	log.Infof("[Billing] Charged plan %s: %d %s", plan.ID, amount, s.currency)
	return OutcomeCharged, nil
}

// settleError drops races where the plan moved on between charge and settlement.
func (s *Service) settleError(planID string, err error) error {
	if errors.Is(err, unlimited.ErrStaleBillingDate) || errors.Is(err, unlimited.ErrInvalidTransition) {
		log.Warnf("[Billing] Plan %s changed during billing: %v", planID, err)
		return nil
	}
	return err
}

func sameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

package unlimited

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PawPantry/app/models"
)

// Activate commits a fresh draft into an active plan. The draft is claimed first so
// a second Activate of the same draft cannot produce a second plan.
func (s *Service) Activate(ctx context.Context, draftID string) (*models.UnlimitedPlan, error) {
	planID := s.newID()
	claimed, err := s.drafts.Update(ctx, draftID, func(d *Draft) error {
		if d.ConsumedBy != "" {
			return ErrDraftNotFound
		}
		if d.IsEdit() {
			return ErrDraftHasSourcePlan
		}
		if err := s.commitCheck(d); err != nil {
			return err
		}
		d.ConsumedBy = planID
		return nil
	})
	if err != nil {
		return nil, err
	}

	cycleDay, next := initialSchedule(s.now())
	plan := &models.UnlimitedPlan{
		ID:              planID,
		UserID:          claimed.UserID,
		Mode:            claimed.Mode,
		PetType:         claimed.PetType,
		Budget:          claimed.Budget,
		BillingCycleDay: cycleDay,
		NextBillingDate: next,
		Status:          models.UnlimitedStatusActive,
		SourceDraftID:   claimed.ID,
		Version:         1,
	}
	plan.ReplaceLines(claimed.Lines)
	if err := plan.Validate(); err != nil {
		s.releaseClaim(ctx, draftID, planID)
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		s.releaseClaim(ctx, draftID, planID)
		return nil, err
	}
	s.finishCommit(ctx, draftID)

	log.Infof("[Unlimited] Plan %s activated for user %d (next billing %s)", plan.ID, plan.UserID, plan.NextBillingDate.Format("2006-01-02"))
	s.record(ctx, EventPlanActivated)
	return plan, nil
}

// GetPlan returns a committed plan.
func (s *Service) GetPlan(ctx context.Context, planID string) (*models.UnlimitedPlan, error) {
	return s.plans.GetByID(ctx, planID)
}

// ListPlans returns every plan of a user, newest first, cancelled ones included.
func (s *Service) ListPlans(ctx context.Context, userID uint) ([]models.UnlimitedPlan, error) {
	return s.plans.ListByUser(ctx, userID)
}

func (s *Service) transition(ctx context.Context, planID string, action Action, event string, apply func(p *models.UnlimitedPlan)) (*models.UnlimitedPlan, error) {
	plan, err := s.plans.Update(ctx, planID, func(p *models.UnlimitedPlan) error {
		if err := checkTransition(action, p); err != nil {
			return err
		}
		apply(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Unlimited] Plan %s: %s -> %s", planID, action, plan.Status)
	s.record(ctx, event)
	return plan, nil
}

// Pause stops billing for an active plan. Lines and next billing date are kept.
func (s *Service) Pause(ctx context.Context, planID string) (*models.UnlimitedPlan, error) {
	now := s.now().UTC()
	return s.transition(ctx, planID, ActionPause, EventPlanPaused, func(p *models.UnlimitedPlan) {
		p.Status = models.UnlimitedStatusPaused
		p.PausedAt = &now
	})
}

// Resume reactivates a paused plan. A billing date that passed while paused moves
// to the first cycle on or after today; missed cycles are not billed.
func (s *Service) Resume(ctx context.Context, planID string) (*models.UnlimitedPlan, error) {
	today := dateOnly(s.now())
	return s.transition(ctx, planID, ActionResume, EventPlanResumed, func(p *models.UnlimitedPlan) {
		p.Status = models.UnlimitedStatusActive
		p.PausedAt = nil
		p.FailedBillingAttempts = 0
		if dateOnly(p.NextBillingDate).Before(today) {
			p.NextBillingDate = firstCycleOnOrAfter(today, p.BillingCycleDay)
		}
	})
}

// Skip moves the next billing date of an active plan forward by one cycle.
func (s *Service) Skip(ctx context.Context, planID string) (*models.UnlimitedPlan, error) {
	return s.transition(ctx, planID, ActionSkip, EventPlanSkipped, func(p *models.UnlimitedPlan) {
		p.NextBillingDate = nextCycle(p.NextBillingDate, p.BillingCycleDay)
	})
}

// Cancel ends a plan for good.
func (s *Service) Cancel(ctx context.Context, planID string) (*models.UnlimitedPlan, error) {
	now := s.now().UTC()
	return s.transition(ctx, planID, ActionCancel, EventPlanCancelled, func(p *models.UnlimitedPlan) {
		p.Status = models.UnlimitedStatusCancelled
		p.CancelledAt = &now
	})
}

// DueForBilling lists active plans whose next billing date is on or before asOf.
func (s *Service) DueForBilling(ctx context.Context, asOf time.Time, limit int) ([]models.UnlimitedPlan, error) {
	return s.plans.ListDue(ctx, asOf, limit)
}

func checkBilledFor(p *models.UnlimitedPlan, billedFor time.Time) error {
	if !dateOnly(p.NextBillingDate).Equal(dateOnly(billedFor)) {
		return fmt.Errorf("%w: plan %s bills next on %s, not %s", ErrStaleBillingDate, p.ID,
			p.NextBillingDate.Format("2006-01-02"), dateOnly(billedFor).Format("2006-01-02"))
	}
	return nil
}

// RecordBillingSuccess settles the cycle billed for billedFor and advances the plan
// by one cycle. A cycle settled late never leaves the next date in the past: cycles
// missed meanwhile are not billed and the plan moves to the first cycle after today.
// A repeated report for the same cycle returns ErrStaleBillingDate.
func (s *Service) RecordBillingSuccess(ctx context.Context, planID string, billedFor time.Time) (*models.UnlimitedPlan, error) {
	now := s.now().UTC()
	today := dateOnly(now)
	plan, err := s.plans.Update(ctx, planID, func(p *models.UnlimitedPlan) error {
		if err := checkTransition(ActionBill, p); err != nil {
			return err
		}
		if err := checkBilledFor(p, billedFor); err != nil {
			return err
		}
		next := nextCycle(p.NextBillingDate, p.BillingCycleDay)
		if !next.After(today) {
			next = firstCycleOnOrAfter(today.AddDate(0, 0, 1), p.BillingCycleDay)
		}
		p.NextBillingDate = next
		p.FailedBillingAttempts = 0
		p.LastBilledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, EventBillingOK)
	return plan, nil
}

// RecordBillingFailure counts a failed charge and applies the failure policy. The
// billing date is not advanced, so a retrying plan stays due.
func (s *Service) RecordBillingFailure(ctx context.Context, planID string, billedFor time.Time, cause error) (*models.UnlimitedPlan, error) {
	now := s.now().UTC()
	policy := s.cfg.FailurePolicy
	plan, err := s.plans.Update(ctx, planID, func(p *models.UnlimitedPlan) error {
		if err := checkTransition(ActionBill, p); err != nil {
			return err
		}
		if err := checkBilledFor(p, billedFor); err != nil {
			return err
		}
		p.FailedBillingAttempts++
		if policy.Mode == FailurePause || p.FailedBillingAttempts >= policy.MaxAttempts {
			p.Status = models.UnlimitedStatusPaused
			p.PausedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Warnf("[Unlimited] Billing failed for plan %s (attempt %d, status %s): %v", planID, plan.FailedBillingAttempts, plan.Status, cause)
	s.record(ctx, EventBillingFailed)
	return plan, nil
}

package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PawPantry/internal/pkg/billing"
	"github.com/ManuelReschke/PawPantry/internal/pkg/unlimited"
)

const (
	// BillingInflightKeyPrefix marks a plan cycle that already has a job in flight.
	BillingInflightKeyPrefix = "unlimited:billing:inflight:"
)

// BillingProcessor turns due plans into jobs and jobs into charges.
type BillingProcessor struct {
	queue     *Queue
	billing   *billing.Service
	batchSize int
	// retryBackoff is how long a failed cycle waits before the sweep may enqueue it again.
	retryBackoff time.Duration
}

func NewBillingProcessor(q *Queue, svc *billing.Service, batchSize int, retryBackoff time.Duration) *BillingProcessor {
	if batchSize <= 0 {
		batchSize = 100
	}
	if retryBackoff <= 0 {
		retryBackoff = 24 * time.Hour
	}
	p := &BillingProcessor{queue: q, billing: svc, batchSize: batchSize, retryBackoff: retryBackoff}
	q.RegisterHandler(JobTypeUnlimitedBilling, p.processBillingJob)
	return p
}

func inflightKey(planID, billedFor string) string {
	return BillingInflightKeyPrefix + planID + ":" + billedFor
}

// EnqueueDue enqueues one billing job per due plan cycle that is not already in
// flight. Returns the number of jobs enqueued.
func (p *BillingProcessor) EnqueueDue(ctx context.Context) (int, error) {
	plans, err := p.billing.DuePlans(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, plan := range plans {
		payload := UnlimitedBillingJobPayload{
			PlanID:    plan.ID,
			UserID:    plan.UserID,
			BilledFor: plan.NextBillingDate.UTC().Format("2006-01-02"),
		}
		key := inflightKey(payload.PlanID, payload.BilledFor)
		ok, err := p.queue.client.SetNX(ctx, key, "1", p.retryBackoff).Result()
		if err != nil {
			return enqueued, fmt.Errorf("failed to mark plan %s in flight: %w", plan.ID, err)
		}
		if !ok {
			continue
		}
		if _, err := p.queue.EnqueueJob(ctx, JobTypeUnlimitedBilling, payload.ToMap()); err != nil {
			p.queue.client.Del(ctx, key)
			return enqueued, err
		}
		enqueued++
	}
	if enqueued > 0 {
		log.Infof("[Billing] Enqueued %d billing jobs", enqueued)
	}
	return enqueued, nil
}

func (p *BillingProcessor) processBillingJob(ctx context.Context, job *Job) error {
	payload, err := UnlimitedBillingJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("%w: invalid payload: %v", ErrPermanent, err)
	}
	billedFor, err := payload.BilledForDate()
	if err != nil {
		return fmt.Errorf("%w: invalid billed_for %q", ErrPermanent, payload.BilledFor)
	}

	outcome, err := p.billing.BillPlan(ctx, payload.PlanID, billedFor)
	if err != nil {
		if errors.Is(err, unlimited.ErrPlanNotFound) {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return err
	}
	if outcome == billing.OutcomeCharged || outcome == billing.OutcomeSkipped {
		// a later cycle gets its own key; this one is settled
		p.queue.client.Del(ctx, inflightKey(payload.PlanID, payload.BilledFor))
	}
	return nil
}

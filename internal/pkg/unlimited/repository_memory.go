package unlimited

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ManuelReschke/PawPantry/app/models"
)

// MemoryPlanRepository is an in-process PlanRepository. A single mutex serializes
// all writers, which also satisfies the per-plan ordering contract.
type MemoryPlanRepository struct {
	mu    sync.Mutex
	plans map[string]*models.UnlimitedPlan
	now   func() time.Time
}

func NewMemoryPlanRepository() *MemoryPlanRepository {
	return &MemoryPlanRepository{
		plans: make(map[string]*models.UnlimitedPlan),
		now:   time.Now,
	}
}

func clonePlan(p *models.UnlimitedPlan) *models.UnlimitedPlan {
	out := *p
	out.Lines = make([]models.UnlimitedPlanLine, len(p.Lines))
	copy(out.Lines, p.Lines)
	if p.LastBilledAt != nil {
		t := *p.LastBilledAt
		out.LastBilledAt = &t
	}
	if p.PausedAt != nil {
		t := *p.PausedAt
		out.PausedAt = &t
	}
	if p.CancelledAt != nil {
		t := *p.CancelledAt
		out.CancelledAt = &t
	}
	return &out
}

func (r *MemoryPlanRepository) Create(_ context.Context, plan *models.UnlimitedPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plans[plan.ID]; ok {
		return fmt.Errorf("plan %s already exists", plan.ID)
	}
	now := r.now()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	if plan.Version == 0 {
		plan.Version = 1
	}
	r.plans[plan.ID] = clonePlan(plan)
	return nil
}

func (r *MemoryPlanRepository) GetByID(_ context.Context, id string) (*models.UnlimitedPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return clonePlan(p), nil
}

func (r *MemoryPlanRepository) ListByUser(_ context.Context, userID uint) ([]models.UnlimitedPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.UnlimitedPlan
	for _, p := range r.plans {
		if p.UserID == userID {
			out = append(out, *clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryPlanRepository) ListDue(_ context.Context, day time.Time, limit int) ([]models.UnlimitedPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	day = dateOnly(day)
	var out []models.UnlimitedPlan
	for _, p := range r.plans {
		if p.Status == models.UnlimitedStatusActive && !dateOnly(p.NextBillingDate).After(day) {
			out = append(out, *clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextBillingDate.Equal(out[j].NextBillingDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].NextBillingDate.Before(out[j].NextBillingDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryPlanRepository) Update(_ context.Context, id string, fn func(plan *models.UnlimitedPlan) error) (*models.UnlimitedPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	next := clonePlan(current)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	next.UpdatedAt = r.now()
	r.plans[id] = next
	return clonePlan(next), nil
}

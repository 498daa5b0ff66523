package unlimited

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/PawPantry/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanRepository persists committed plans. Update serializes writers per plan: fn
// runs against the latest stored plan while no other Update for that plan can
// commit, and the result is written only when fn returns nil.
type PlanRepository interface {
	Create(ctx context.Context, plan *models.UnlimitedPlan) error
	GetByID(ctx context.Context, id string) (*models.UnlimitedPlan, error)
	ListByUser(ctx context.Context, userID uint) ([]models.UnlimitedPlan, error)
	ListDue(ctx context.Context, day time.Time, limit int) ([]models.UnlimitedPlan, error)
	Update(ctx context.Context, id string, fn func(plan *models.UnlimitedPlan) error) (*models.UnlimitedPlan, error)
}

type gormPlanRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a plan repository backed by GORM.
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &gormPlanRepository{db: db}
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func (r *gormPlanRepository) Create(ctx context.Context, plan *models.UnlimitedPlan) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// lines are inserted by GORM's association handling
		return tx.Create(plan).Error
	})
}

func (r *gormPlanRepository) GetByID(ctx context.Context, id string) (*models.UnlimitedPlan, error) {
	var plan models.UnlimitedPlan
	err := r.db.WithContext(ctx).Preload("Lines", orderedLines).Where("id = ?", id).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *gormPlanRepository) ListByUser(ctx context.Context, userID uint) ([]models.UnlimitedPlan, error) {
	var plans []models.UnlimitedPlan
	err := r.db.WithContext(ctx).Preload("Lines", orderedLines).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&plans).Error
	return plans, err
}

func (r *gormPlanRepository) ListDue(ctx context.Context, day time.Time, limit int) ([]models.UnlimitedPlan, error) {
	var plans []models.UnlimitedPlan
	q := r.db.WithContext(ctx).Preload("Lines", orderedLines).
		Where("status = ? AND next_billing_date <= ?", models.UnlimitedStatusActive, dateOnly(day)).
		Order("next_billing_date ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&plans).Error
	return plans, err
}

func (r *gormPlanRepository) Update(ctx context.Context, id string, fn func(plan *models.UnlimitedPlan) error) (*models.UnlimitedPlan, error) {
	var out *models.UnlimitedPlan
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan models.UnlimitedPlan
		// SELECT ... FOR UPDATE holds the row until the transaction ends
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&plan).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlanNotFound
			}
			return err
		}
		if err := tx.Where("plan_id = ?", id).Order("id ASC").Find(&plan.Lines).Error; err != nil {
			return err
		}

		before := plan.SelectionLines()
		version := plan.Version
		if err := fn(&plan); err != nil {
			return err
		}
		plan.Version = version + 1

		res := tx.Model(&models.UnlimitedPlan{}).
			Where("id = ? AND version = ?", id, version).
			Updates(map[string]interface{}{
				"mode":                    plan.Mode,
				"pet_type":                plan.PetType,
				"budget":                  plan.Budget,
				"billing_cycle_day":       plan.BillingCycleDay,
				"next_billing_date":       plan.NextBillingDate,
				"status":                  plan.Status,
				"failed_billing_attempts": plan.FailedBillingAttempts,
				"last_billed_at":          plan.LastBilledAt,
				"paused_at":               plan.PausedAt,
				"cancelled_at":            plan.CancelledAt,
				"version":                 plan.Version,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentModification
		}

		if !sameLines(before, plan.SelectionLines()) {
			if err := tx.Where("plan_id = ?", id).Delete(&models.UnlimitedPlanLine{}).Error; err != nil {
				return fmt.Errorf("failed to clear plan lines: %w", err)
			}
			for i := range plan.Lines {
				plan.Lines[i].ID = 0
				plan.Lines[i].PlanID = id
			}
			if len(plan.Lines) > 0 {
				if err := tx.Create(&plan.Lines).Error; err != nil {
					return fmt.Errorf("failed to write plan lines: %w", err)
				}
			}
		}
		out = &plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sameLines(a, b []models.SelectionLine) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

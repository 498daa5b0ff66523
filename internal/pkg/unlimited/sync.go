package unlimited

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PawPantry/app/models"
)

// PromoteToPlan turns a fresh draft into a new active plan.
func (s *Service) PromoteToPlan(ctx context.Context, draftID string) (*models.UnlimitedPlan, error) {
	return s.Activate(ctx, draftID)
}

// ApplyDraftToPlan writes an edit draft's lines and budget into its source plan.
// The plan must still be active; the draft's budget replaces the plan's. Locked
// prices travel with the lines, so unchanged lines keep their original price.
func (s *Service) ApplyDraftToPlan(ctx context.Context, draftID string) (*models.UnlimitedPlan, error) {
	claimed, err := s.drafts.Update(ctx, draftID, func(d *Draft) error {
		if d.ConsumedBy != "" {
			return ErrDraftNotFound
		}
		if !d.IsEdit() {
			return ErrDraftMissingSourcePlan
		}
		if err := s.commitCheck(d); err != nil {
			return err
		}
		d.ConsumedBy = d.SourcePlanID
		return nil
	})
	if err != nil {
		return nil, err
	}

	plan, err := s.plans.Update(ctx, claimed.SourcePlanID, func(p *models.UnlimitedPlan) error {
		if p.UserID != claimed.UserID {
			return ErrPlanNotFound
		}
		if !CanApply(ActionEdit, p.Status) {
			return fmt.Errorf("%w: plan is %s", ErrPlanNotEditable, p.Status)
		}
		if p.Mode == models.UnlimitedModeBundle && len(claimed.Lines) < s.cfg.BundleMinLines {
			return fmt.Errorf("%w: have %d, need %d", ErrBundleMinimumNotMet, len(claimed.Lines), s.cfg.BundleMinLines)
		}
		p.Budget = claimed.Budget
		p.ReplaceLines(claimed.Lines)
		return nil
	})
	if err != nil {
		s.releaseClaim(ctx, draftID, claimed.SourcePlanID)
		return nil, err
	}
	s.finishCommit(ctx, draftID)

	log.Infof("[Unlimited] Plan %s updated from draft %s (%d lines)", plan.ID, draftID, len(plan.Lines))
	s.record(ctx, EventPlanEdited)
	return plan, nil
}

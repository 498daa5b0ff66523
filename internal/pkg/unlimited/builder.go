package unlimited

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ManuelReschke/PawPantry/app/models"
	"github.com/ManuelReschke/PawPantry/internal/pkg/catalog"
)

// CreateDraft opens an empty draft for a fresh subscription.
func (s *Service) CreateDraft(ctx context.Context, userID uint, budget int64, petType, mode string) (*Draft, error) {
	if budget <= 0 {
		return nil, ErrInvalidBudget
	}
	if !models.IsValidPetType(petType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPetType, petType)
	}
	if !models.IsValidUnlimitedMode(mode) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	d := &Draft{
		ID:        s.newID(),
		UserID:    userID,
		Mode:      mode,
		PetType:   petType,
		Budget:    budget,
		Lines:     []models.SelectionLine{},
		CreatedAt: s.now().UTC(),
	}
	if err := s.drafts.Create(ctx, d); err != nil {
		return nil, err
	}
	s.record(ctx, EventDraftCreated)
	return d, nil
}

// CreateDraftFromPlan opens an edit draft seeded with the plan's lines and locked
// prices. A positive budgetOverride replaces the plan budget for the draft.
func (s *Service) CreateDraftFromPlan(ctx context.Context, userID uint, planID string, budgetOverride int64) (*Draft, error) {
	if budgetOverride < 0 {
		return nil, ErrInvalidBudget
	}
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != userID {
		return nil, ErrPlanNotFound
	}
	if !CanApply(ActionEdit, plan.Status) {
		return nil, fmt.Errorf("%w: plan is %s", ErrPlanNotEditable, plan.Status)
	}

	budget := plan.Budget
	if budgetOverride > 0 {
		budget = budgetOverride
	}
	lines := plan.SelectionLines()
	if !Evaluate(budget, lines).Within() {
		return nil, fmt.Errorf("%w: current lines do not fit into %d", ErrBudgetExceeded, budget)
	}

	d := &Draft{
		ID:           s.newID(),
		UserID:       userID,
		Mode:         plan.Mode,
		PetType:      plan.PetType,
		Budget:       budget,
		Lines:        lines,
		SourcePlanID: plan.ID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.drafts.Create(ctx, d); err != nil {
		return nil, err
	}
	s.record(ctx, EventDraftCreated)
	return d, nil
}

// GetDraft returns a live draft. Drafts already committed into a plan are gone.
func (s *Service) GetDraft(ctx context.Context, draftID string) (*Draft, error) {
	d, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if d.ConsumedBy != "" {
		return nil, ErrDraftNotFound
	}
	return d, nil
}

// DiscardDraft drops a draft without touching any plan.
func (s *Service) DiscardDraft(ctx context.Context, draftID string) error {
	if _, err := s.GetDraft(ctx, draftID); err != nil {
		return err
	}
	return s.drafts.Delete(ctx, draftID)
}

// resolveVariant fetches the current catalog state of a variant and checks it
// belongs to productID.
func (s *Service) resolveVariant(ctx context.Context, productID, variantID uint) (*catalog.Variant, error) {
	v, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: variant %d", ErrVariantNotFound, variantID)
		}
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if v.ProductID != productID {
		return nil, fmt.Errorf("%w: variant %d does not belong to product %d", ErrVariantNotFound, variantID, productID)
	}
	return v, nil
}

// AddLine changes the quantity of (productID, variantID) by deltaQty. A new pair
// is priced from the catalog and the price is locked on the line; an existing pair
// keeps its locked price and never drops below quantity one. The change is rejected
// when the resulting selection no longer fits the budget.
func (s *Service) AddLine(ctx context.Context, draftID string, productID, variantID uint, deltaQty int) (*Draft, error) {
	if deltaQty == 0 {
		return nil, ErrInvalidQuantity
	}

	// catalog lookups run outside the draft's critical section
	var variant *catalog.Variant
	if deltaQty > 0 {
		v, err := s.resolveVariant(ctx, productID, variantID)
		if err != nil {
			return nil, err
		}
		if !v.InStock() {
			return nil, fmt.Errorf("%w: variant %d", ErrVariantOutOfStock, variantID)
		}
		variant = v
	}

	return s.drafts.Update(ctx, draftID, func(d *Draft) error {
		if d.ConsumedBy != "" {
			return ErrDraftNotFound
		}
		lines := cloneLines(d.Lines)
		if idx := d.lineIndex(productID, variantID); idx >= 0 {
			if deltaQty > 0 && lines[idx].Quantity > math.MaxInt-deltaQty {
				return fmt.Errorf("%w: quantity of variant %d overflows", ErrBudgetExceeded, variantID)
			}
			qty := lines[idx].Quantity + deltaQty
			if qty < 1 {
				qty = 1
			}
			if qty == lines[idx].Quantity {
				return errNoChange
			}
			lines[idx].Quantity = qty
		} else {
			if deltaQty < 1 {
				return fmt.Errorf("%w: got %d", ErrInvalidQuantity, deltaQty)
			}
			lines = append(lines, models.SelectionLine{
				ProductID:   productID,
				VariantID:   variantID,
				Quantity:    deltaQty,
				LockedPrice: variant.Price,
			})
		}

		w := Evaluate(d.Budget, lines)
		if !w.Within() {
			return fmt.Errorf("%w: spent %d of %d", ErrBudgetExceeded, w.Spent, d.Budget)
		}
		d.Lines = lines
		return nil
	})
}

// RemoveLine deletes the pair from the draft. Removing an absent pair succeeds
// and leaves the draft as it was.
func (s *Service) RemoveLine(ctx context.Context, draftID string, productID, variantID uint) (*Draft, error) {
	return s.drafts.Update(ctx, draftID, func(d *Draft) error {
		if d.ConsumedBy != "" {
			return ErrDraftNotFound
		}
		idx := d.lineIndex(productID, variantID)
		if idx < 0 {
			return errNoChange
		}
		d.Lines = append(d.Lines[:idx], d.Lines[idx+1:]...)
		return nil
	})
}

// VariantAffordability reports whether one unit of variantID at its current catalog
// price fits into the draft's remaining budget. The answer is advisory.
func (s *Service) VariantAffordability(ctx context.Context, draftID string, variantID uint) (bool, *catalog.Variant, Wallet, error) {
	d, err := s.GetDraft(ctx, draftID)
	if err != nil {
		return false, nil, Wallet{}, err
	}
	w := d.Wallet()
	v, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return false, nil, w, fmt.Errorf("%w: variant %d", ErrVariantNotFound, variantID)
		}
		return false, nil, w, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return v.InStock() && CanAfford(w.Remaining, v.Price, 1), v, w, nil
}

// ProductAffordability reports whether at least one in-stock variant of productID
// fits into the draft's remaining budget, together with the variants it looked at.
func (s *Service) ProductAffordability(ctx context.Context, draftID string, productID uint) (bool, []catalog.Variant, Wallet, error) {
	d, err := s.GetDraft(ctx, draftID)
	if err != nil {
		return false, nil, Wallet{}, err
	}
	w := d.Wallet()
	variants, err := s.catalog.ListVariants(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return false, nil, w, fmt.Errorf("%w: product %d has no variants", ErrVariantNotFound, productID)
		}
		return false, nil, w, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return ProductAffordable(w.Remaining, variants), variants, w, nil
}

// commitCheck validates a draft for promotion or merge.
func (s *Service) commitCheck(d *Draft) error {
	if len(d.Lines) == 0 {
		return ErrEmptySelection
	}
	if w := d.Wallet(); !w.Within() {
		return fmt.Errorf("%w: spent %d of %d", ErrBudgetExceeded, w.Spent, d.Budget)
	}
	if d.Mode == models.UnlimitedModeBundle && len(d.Lines) < s.cfg.BundleMinLines {
		return fmt.Errorf("%w: have %d, need %d", ErrBundleMinimumNotMet, len(d.Lines), s.cfg.BundleMinLines)
	}
	return nil
}

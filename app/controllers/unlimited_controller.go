package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PawPantry/app/models"
	"github.com/ManuelReschke/PawPantry/internal/pkg/unlimited"
	"github.com/ManuelReschke/PawPantry/internal/pkg/usercontext"
)

// UnlimitedController serves the subscription builder API.
type UnlimitedController struct {
	svc      *unlimited.Service
	validate *validator.Validate
}

// NewUnlimitedController creates the controller on top of the builder service.
func NewUnlimitedController(svc *unlimited.Service) *UnlimitedController {
	return &UnlimitedController{svc: svc, validate: validator.New()}
}

type createDraftRequest struct {
	Budget  *int64 `json:"budget" validate:"required"`
	PetType string `json:"petType" validate:"required"`
	Mode    string `json:"mode" validate:"required"`
}

type editDraftRequest struct {
	Budget *int64 `json:"budget"`
}

type addLineRequest struct {
	ProductID *uint `json:"productId" validate:"required,gt=0"`
	VariantID *uint `json:"variantId" validate:"required,gt=0"`
	Quantity  *int  `json:"quantity" validate:"required,ne=0,min=-10000,max=10000"`
}

type affordabilityResponse struct {
	VariantID  uint                 `json:"variantId"`
	ProductID  uint                 `json:"productId"`
	Price      int64                `json:"price"`
	InStock    bool                 `json:"inStock"`
	Affordable bool                 `json:"affordable"`
	Wallet     unlimited.WalletView `json:"wallet"`
}

type variantAffordability struct {
	VariantID  uint  `json:"variantId"`
	Price      int64 `json:"price"`
	InStock    bool  `json:"inStock"`
	Affordable bool  `json:"affordable"`
}

type productAffordabilityResponse struct {
	ProductID  uint                   `json:"productId"`
	Affordable bool                   `json:"affordable"`
	Variants   []variantAffordability `json:"variants"`
	Wallet     unlimited.WalletView   `json:"wallet"`
}

// decodeBody parses a JSON body strictly: unknown fields are rejected, then tags are validated.
func (uc *UnlimitedController) decodeBody(c *fiber.Ctx, out interface{}) error {
	body := c.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return uc.validate.Struct(out)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": message})
}

// statusForError maps builder rejections onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, unlimited.ErrDraftNotFound), errors.Is(err, unlimited.ErrPlanNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, unlimited.ErrInvalidTransition),
		errors.Is(err, unlimited.ErrPlanNotEditable),
		errors.Is(err, unlimited.ErrDraftHasSourcePlan),
		errors.Is(err, unlimited.ErrDraftMissingSourcePlan),
		errors.Is(err, unlimited.ErrConcurrentModification):
		return fiber.StatusConflict
	case errors.Is(err, unlimited.ErrBudgetExceeded),
		errors.Is(err, unlimited.ErrBundleMinimumNotMet),
		errors.Is(err, unlimited.ErrInvalidBudget),
		errors.Is(err, unlimited.ErrInvalidQuantity),
		errors.Is(err, unlimited.ErrInvalidMode),
		errors.Is(err, unlimited.ErrInvalidPetType),
		errors.Is(err, unlimited.ErrVariantNotFound),
		errors.Is(err, unlimited.ErrVariantOutOfStock),
		errors.Is(err, unlimited.ErrEmptySelection):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, unlimited.ErrCatalogUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	if status == fiber.StatusInternalServerError {
		log.Errorf("[Unlimited] %s %s failed: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal_error", "message": "Internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": unlimited.ErrorCode(err), "message": err.Error()})
}

// ownDraft loads a draft and hides drafts of other users behind not found.
func (uc *UnlimitedController) ownDraft(c *fiber.Ctx, draftID string) (*unlimited.Draft, error) {
	d, err := uc.svc.GetDraft(c.UserContext(), draftID)
	if err != nil {
		return nil, err
	}
	if d.UserID != usercontext.GetUserID(c) {
		return nil, unlimited.ErrDraftNotFound
	}
	return d, nil
}

func (uc *UnlimitedController) ownPlan(c *fiber.Ctx, planID string) (*models.UnlimitedPlan, error) {
	p, err := uc.svc.GetPlan(c.UserContext(), planID)
	if err != nil {
		return nil, err
	}
	if p.UserID != usercontext.GetUserID(c) {
		return nil, unlimited.ErrPlanNotFound
	}
	return p, nil
}

// HandleCreateDraft opens a fresh draft.
func (uc *UnlimitedController) HandleCreateDraft(c *fiber.Ctx) error {
	var req createDraftRequest
	if err := uc.decodeBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	d, err := uc.svc.CreateDraft(c.UserContext(), usercontext.GetUserID(c), *req.Budget, req.PetType, req.Mode)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(unlimited.NewDraftView(d))
}

// HandleCreateEditDraft opens an edit draft seeded from an existing plan.
func (uc *UnlimitedController) HandleCreateEditDraft(c *fiber.Ctx) error {
	var req editDraftRequest
	if err := uc.decodeBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	var override int64
	if req.Budget != nil {
		if *req.Budget <= 0 {
			return writeError(c, unlimited.ErrInvalidBudget)
		}
		override = *req.Budget
	}
	d, err := uc.svc.CreateDraftFromPlan(c.UserContext(), usercontext.GetUserID(c), c.Params("planId"), override)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(unlimited.NewDraftView(d))
}

// HandleGetDraft returns a draft with its wallet.
func (uc *UnlimitedController) HandleGetDraft(c *fiber.Ctx) error {
	d, err := uc.ownDraft(c, c.Params("draftId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(unlimited.NewDraftView(d))
}

// HandleDiscardDraft drops a draft.
func (uc *UnlimitedController) HandleDiscardDraft(c *fiber.Ctx) error {
	draftID := c.Params("draftId")
	if _, err := uc.ownDraft(c, draftID); err != nil {
		return writeError(c, err)
	}
	if err := uc.svc.DiscardDraft(c.UserContext(), draftID); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleAddLine adds or adjusts a line by a signed quantity delta.
func (uc *UnlimitedController) HandleAddLine(c *fiber.Ctx) error {
	draftID := c.Params("draftId")
	var req addLineRequest
	if err := uc.decodeBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if _, err := uc.ownDraft(c, draftID); err != nil {
		return writeError(c, err)
	}
	d, err := uc.svc.AddLine(c.UserContext(), draftID, *req.ProductID, *req.VariantID, *req.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(unlimited.NewDraftView(d))
}

// HandleRemoveLine drops a line; removing a missing line is not an error.
func (uc *UnlimitedController) HandleRemoveLine(c *fiber.Ctx) error {
	draftID := c.Params("draftId")
	productID, err1 := strconv.ParseUint(c.Params("productId"), 10, 64)
	variantID, err2 := strconv.ParseUint(c.Params("variantId"), 10, 64)
	if err1 != nil || err2 != nil {
		return badRequest(c, "productId and variantId must be numeric")
	}
	if _, err := uc.ownDraft(c, draftID); err != nil {
		return writeError(c, err)
	}
	d, err := uc.svc.RemoveLine(c.UserContext(), draftID, uint(productID), uint(variantID))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(unlimited.NewDraftView(d))
}

// HandleCheckout promotes a fresh draft into an active plan.
func (uc *UnlimitedController) HandleCheckout(c *fiber.Ctx) error {
	draftID := c.Params("draftId")
	if _, err := uc.ownDraft(c, draftID); err != nil {
		return writeError(c, err)
	}
	p, err := uc.svc.PromoteToPlan(c.UserContext(), draftID)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(unlimited.NewPlanView(p))
}

// HandleApplyDraft merges an edit draft into its source plan.
func (uc *UnlimitedController) HandleApplyDraft(c *fiber.Ctx) error {
	draftID := c.Params("draftId")
	if _, err := uc.ownDraft(c, draftID); err != nil {
		return writeError(c, err)
	}
	p, err := uc.svc.ApplyDraftToPlan(c.UserContext(), draftID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(unlimited.NewPlanView(p))
}

// HandleListPlans lists the caller's plans.
func (uc *UnlimitedController) HandleListPlans(c *fiber.Ctx) error {
	plans, err := uc.svc.ListPlans(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	views := make([]unlimited.PlanView, 0, len(plans))
	for i := range plans {
		views = append(views, unlimited.NewPlanView(&plans[i]))
	}
	return c.JSON(fiber.Map{"plans": views})
}

// HandleGetPlan returns one plan.
func (uc *UnlimitedController) HandleGetPlan(c *fiber.Ctx) error {
	p, err := uc.ownPlan(c, c.Params("planId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(unlimited.NewPlanView(p))
}

type planAction func(svc *unlimited.Service, c *fiber.Ctx, planID string) (*models.UnlimitedPlan, error)

func (uc *UnlimitedController) lifecycle(action planAction) fiber.Handler {
	return func(c *fiber.Ctx) error {
		planID := c.Params("planId")
		if _, err := uc.ownPlan(c, planID); err != nil {
			return writeError(c, err)
		}
		p, err := action(uc.svc, c, planID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(unlimited.NewPlanView(p))
	}
}

// HandlePausePlan pauses an active plan.
func (uc *UnlimitedController) HandlePausePlan(c *fiber.Ctx) error {
	return uc.lifecycle(func(svc *unlimited.Service, c *fiber.Ctx, id string) (*models.UnlimitedPlan, error) {
		return svc.Pause(c.UserContext(), id)
	})(c)
}

// HandleResumePlan resumes a paused plan.
func (uc *UnlimitedController) HandleResumePlan(c *fiber.Ctx) error {
	return uc.lifecycle(func(svc *unlimited.Service, c *fiber.Ctx, id string) (*models.UnlimitedPlan, error) {
		return svc.Resume(c.UserContext(), id)
	})(c)
}

// HandleSkipPlan skips the next cycle.
func (uc *UnlimitedController) HandleSkipPlan(c *fiber.Ctx) error {
	return uc.lifecycle(func(svc *unlimited.Service, c *fiber.Ctx, id string) (*models.UnlimitedPlan, error) {
		return svc.Skip(c.UserContext(), id)
	})(c)
}

// HandleCancelPlan cancels a plan for good.
func (uc *UnlimitedController) HandleCancelPlan(c *fiber.Ctx) error {
	return uc.lifecycle(func(svc *unlimited.Service, c *fiber.Ctx, id string) (*models.UnlimitedPlan, error) {
		return svc.Cancel(c.UserContext(), id)
	})(c)
}

// HandleVariantAffordability tells the catalog whether one unit of a variant still fits the draft.
func (uc *UnlimitedController) HandleVariantAffordability(c *fiber.Ctx) error {
	variantID, err := strconv.ParseUint(c.Params("variantId"), 10, 64)
	if err != nil || variantID == 0 {
		return badRequest(c, "variantId must be a positive number")
	}
	draftID := c.Query("draftId")
	if draftID == "" {
		return badRequest(c, "draftId is required")
	}
	if _, err := uc.ownDraft(c, draftID); err != nil {
		return writeError(c, err)
	}

	ok, v, w, err := uc.svc.VariantAffordability(c.UserContext(), draftID, uint(variantID))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(affordabilityResponse{
		VariantID:  v.ID,
		ProductID:  v.ProductID,
		Price:      v.Price,
		InStock:    v.InStock(),
		Affordable: ok,
		Wallet:     unlimited.WalletView{Spent: w.Spent, Remaining: w.Remaining},
	})
}

// HandleProductAffordability tells the catalog whether any variant of a product still fits the draft.
func (uc *UnlimitedController) HandleProductAffordability(c *fiber.Ctx) error {
	productID, err := strconv.ParseUint(c.Params("productId"), 10, 64)
	if err != nil || productID == 0 {
		return badRequest(c, "productId must be a positive number")
	}
	draftID := c.Query("draftId")
	if draftID == "" {
		return badRequest(c, "draftId is required")
	}
	if _, err := uc.ownDraft(c, draftID); err != nil {
		return writeError(c, err)
	}

	ok, variants, w, err := uc.svc.ProductAffordability(c.UserContext(), draftID, uint(productID))
	if err != nil {
		return writeError(c, err)
	}
	out := productAffordabilityResponse{
		ProductID:  uint(productID),
		Affordable: ok,
		Variants:   make([]variantAffordability, 0, len(variants)),
		Wallet:     unlimited.WalletView{Spent: w.Spent, Remaining: w.Remaining},
	}
	for _, v := range variants {
		out.Variants = append(out.Variants, variantAffordability{
			VariantID:  v.ID,
			Price:      v.Price,
			InStock:    v.InStock(),
			Affordable: v.InStock() && unlimited.CanAfford(w.Remaining, v.Price, 1),
		})
	}
	return c.JSON(out)
}

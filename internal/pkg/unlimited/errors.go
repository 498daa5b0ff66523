package unlimited

import "errors"

var (
	ErrInvalidBudget          = errors.New("budget must be greater than zero")
	ErrInvalidMode            = errors.New("unknown builder mode")
	ErrInvalidPetType         = errors.New("unknown pet type")
	ErrInvalidQuantity        = errors.New("quantity must be at least one for a new line")
	ErrDraftNotFound          = errors.New("draft not found")
	ErrPlanNotFound           = errors.New("plan not found")
	ErrPlanNotEditable        = errors.New("plan is not editable")
	ErrInvalidTransition      = errors.New("invalid plan status transition")
	ErrBudgetExceeded         = errors.New("selection exceeds budget")
	ErrBundleMinimumNotMet    = errors.New("bundle needs more distinct items")
	ErrCatalogUnavailable     = errors.New("catalog unavailable")
	ErrVariantNotFound        = errors.New("variant not found")
	ErrVariantOutOfStock      = errors.New("variant out of stock")
	ErrDraftHasSourcePlan     = errors.New("draft edits an existing plan")
	ErrDraftMissingSourcePlan = errors.New("draft is not linked to a plan")
	ErrConcurrentModification = errors.New("concurrent modification, retry")
	ErrEmptySelection         = errors.New("selection has no lines")
	ErrStaleBillingDate       = errors.New("billing date already settled")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidBudget, "invalid_budget"},
	{ErrInvalidMode, "invalid_mode"},
	{ErrInvalidPetType, "invalid_pet_type"},
	{ErrInvalidQuantity, "invalid_quantity"},
	{ErrDraftNotFound, "draft_not_found"},
	{ErrPlanNotFound, "plan_not_found"},
	{ErrPlanNotEditable, "plan_not_editable"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrBudgetExceeded, "budget_exceeded"},
	{ErrBundleMinimumNotMet, "bundle_minimum_not_met"},
	{ErrCatalogUnavailable, "catalog_unavailable"},
	{ErrVariantNotFound, "variant_not_found"},
	{ErrVariantOutOfStock, "variant_out_of_stock"},
	{ErrDraftHasSourcePlan, "draft_has_source_plan"},
	{ErrDraftMissingSourcePlan, "draft_missing_source_plan"},
	{ErrConcurrentModification, "concurrent_modification"},
	{ErrEmptySelection, "empty_selection"},
	{ErrStaleBillingDate, "stale_billing_date"},
}

// ErrorCode maps a rejection to a stable machine-readable code. Unknown errors map
// to "internal_error".
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal_error"
}

// IsRetryable reports whether the caller may retry the same request unchanged.
// Business-rule rejections are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCatalogUnavailable) || errors.Is(err, ErrConcurrentModification)
}

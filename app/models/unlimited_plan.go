package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	UnlimitedStatusActive    = "active"
	UnlimitedStatusPaused    = "paused"
	UnlimitedStatusCancelled = "cancelled"
)

const (
	UnlimitedModeMonthly = "monthly"
	UnlimitedModeBundle  = "bundle"
)

const (
	PetTypeDog   = "dog"
	PetTypeCat   = "cat"
	PetTypeBird  = "bird"
	PetTypeFish  = "fish"
	PetTypeSmall = "small_pet"
)

// SelectionLine is one product variant picked into a draft or plan. LockedPrice is
// captured from the catalog when the line is first added and never refreshed.
type SelectionLine struct {
	ProductID   uint  `gorm:"not null;uniqueIndex:ux_unlimited_plan_lines_pair,priority:2" json:"productId" validate:"required"`
	VariantID   uint  `gorm:"not null;uniqueIndex:ux_unlimited_plan_lines_pair,priority:3" json:"variantId" validate:"required"`
	Quantity    int   `gorm:"not null;default:1" json:"quantity" validate:"required,min=1"`
	LockedPrice int64 `gorm:"not null" json:"lockedPrice" validate:"min=0"`
}

// Subtotal returns LockedPrice * Quantity.
func (l SelectionLine) Subtotal() int64 {
	return l.LockedPrice * int64(l.Quantity)
}

// SameItem reports whether both lines point at the same product variant.
func (l SelectionLine) SameItem(productID, variantID uint) bool {
	return l.ProductID == productID && l.VariantID == variantID
}

// UnlimitedPlanLine persists a SelectionLine for a committed plan.
type UnlimitedPlanLine struct {
	ID            uint   `gorm:"primaryKey" json:"-"`
	PlanID        string `gorm:"type:varchar(36);not null;index;uniqueIndex:ux_unlimited_plan_lines_pair,priority:1" json:"-"`
	SelectionLine `gorm:"embedded"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"-"`
}

// UnlimitedPlan is a committed, billable "Unlimited" subscription. Plans are never
// deleted; cancellation is a terminal status so billing history stays readable.
type UnlimitedPlan struct {
	ID                    string              `gorm:"type:varchar(36);primaryKey" json:"planId"`
	UserID                uint                `gorm:"not null;index" json:"userId" validate:"required"`
	Mode                  string              `gorm:"type:varchar(16);not null;default:'monthly'" json:"mode" validate:"required,oneof=monthly bundle"`
	PetType               string              `gorm:"type:varchar(32);not null" json:"petType" validate:"required,oneof=dog cat bird fish small_pet"`
	Budget                int64               `gorm:"not null" json:"budget" validate:"required,gt=0"`
	Lines                 []UnlimitedPlanLine `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"-" validate:"dive"`
	BillingCycleDay       int                 `gorm:"not null" json:"billingCycleDay" validate:"min=1,max=31"`
	NextBillingDate       time.Time           `gorm:"type:date;not null;index:idx_unlimited_plans_due,priority:2" json:"nextBillingDate"`
	Status                string              `gorm:"type:varchar(16);not null;default:'active';index:idx_unlimited_plans_due,priority:1" json:"status" validate:"required,oneof=active paused cancelled"`
	FailedBillingAttempts int                 `gorm:"not null;default:0" json:"failedBillingAttempts"`
	LastBilledAt          *time.Time          `gorm:"type:timestamp;default:null" json:"lastBilledAt,omitempty"`
	PausedAt              *time.Time          `gorm:"type:timestamp;default:null" json:"pausedAt,omitempty"`
	CancelledAt           *time.Time          `gorm:"type:timestamp;default:null" json:"cancelledAt,omitempty"`
	SourceDraftID         string              `gorm:"type:varchar(36);index" json:"-"`
	Version               int64               `gorm:"not null;default:1" json:"-"`
	CreatedAt             time.Time           `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt             time.Time           `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (UnlimitedPlan) TableName() string {
	return "unlimited_plans"
}

func (UnlimitedPlanLine) TableName() string {
	return "unlimited_plan_lines"
}

func (p *UnlimitedPlan) Validate() error {
	v := validator.New()
	return v.Struct(p)
}

// SelectionLines returns the plan lines as plain selection lines in stored order.
func (p *UnlimitedPlan) SelectionLines() []SelectionLine {
	out := make([]SelectionLine, 0, len(p.Lines))
	for _, l := range p.Lines {
		out = append(out, l.SelectionLine)
	}
	return out
}

// ReplaceLines swaps the complete line set of the plan.
func (p *UnlimitedPlan) ReplaceLines(lines []SelectionLine) {
	p.Lines = make([]UnlimitedPlanLine, 0, len(lines))
	for _, l := range lines {
		p.Lines = append(p.Lines, UnlimitedPlanLine{PlanID: p.ID, SelectionLine: l})
	}
}

// IsTerminal reports whether no lifecycle transition can leave the current status.
func (p *UnlimitedPlan) IsTerminal() bool {
	return p.Status == UnlimitedStatusCancelled
}

// IsValidUnlimitedMode reports whether mode is a known builder mode.
func IsValidUnlimitedMode(mode string) bool {
	return mode == UnlimitedModeMonthly || mode == UnlimitedModeBundle
}

// IsValidPetType reports whether petType is one of the storefront's pet categories.
func IsValidPetType(petType string) bool {
	switch petType {
	case PetTypeDog, PetTypeCat, PetTypeBird, PetTypeFish, PetTypeSmall:
		return true
	default:
		return false
	}
}

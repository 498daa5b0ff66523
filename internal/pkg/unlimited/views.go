package unlimited

import (
	"time"

	"github.com/ManuelReschke/PawPantry/app/models"
)

// WalletView is the spent/remaining pair shown next to a selection.
type WalletView struct {
	Spent     int64 `json:"spent"`
	Remaining int64 `json:"remaining"`
}

type LineView struct {
	models.SelectionLine
	Subtotal   int64 `json:"subtotal"`
	Affordable bool  `json:"affordable"`
}

// DraftView is the outward shape of a draft.
type DraftView struct {
	DraftID      string     `json:"draftId"`
	Mode         string     `json:"mode"`
	PetType      string     `json:"petType"`
	Budget       int64      `json:"budget"`
	Lines        []LineView `json:"lines"`
	Wallet       WalletView `json:"wallet"`
	SourcePlanID string     `json:"sourcePlanId,omitempty"`
	ExpiresAt    time.Time  `json:"expiresAt"`
}

// PlanView is the outward shape of a plan.
type PlanView struct {
	PlanID                string     `json:"planId"`
	Status                string     `json:"status"`
	Mode                  string     `json:"mode"`
	PetType               string     `json:"petType"`
	Budget                int64      `json:"budget"`
	Lines                 []LineView `json:"lines"`
	Wallet                WalletView `json:"wallet"`
	BillingCycleDay       int        `json:"billingCycleDay"`
	NextBillingDate       string     `json:"nextBillingDate"`
	FailedBillingAttempts int        `json:"failedBillingAttempts"`
	LastBilledAt          *time.Time `json:"lastBilledAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
}

func lineViews(lines []models.SelectionLine, w Wallet) []LineView {
	out := make([]LineView, 0, len(lines))
	for i, l := range lines {
		out = append(out, LineView{
			SelectionLine: l,
			Subtotal:      l.Subtotal(),
			Affordable:    w.PerLineAffordable[i],
		})
	}
	return out
}

func NewDraftView(d *Draft) DraftView {
	w := d.Wallet()
	return DraftView{
		DraftID:      d.ID,
		Mode:         d.Mode,
		PetType:      d.PetType,
		Budget:       d.Budget,
		Lines:        lineViews(d.Lines, w),
		Wallet:       WalletView{Spent: w.Spent, Remaining: w.Remaining},
		SourcePlanID: d.SourcePlanID,
		ExpiresAt:    d.ExpiresAt,
	}
}

func NewPlanView(p *models.UnlimitedPlan) PlanView {
	lines := p.SelectionLines()
	w := Evaluate(p.Budget, lines)
	return PlanView{
		PlanID:                p.ID,
		Status:                p.Status,
		Mode:                  p.Mode,
		PetType:               p.PetType,
		Budget:                p.Budget,
		Lines:                 lineViews(lines, w),
		Wallet:                WalletView{Spent: w.Spent, Remaining: w.Remaining},
		BillingCycleDay:       p.BillingCycleDay,
		NextBillingDate:       dateOnly(p.NextBillingDate).Format("2006-01-02"),
		FailedBillingAttempts: p.FailedBillingAttempts,
		LastBilledAt:          p.LastBilledAt,
		CreatedAt:             p.CreatedAt,
	}
}

package billing

import "time"

// ChargeRequest is the provider-agnostic charge for one billing cycle of a plan.
type ChargeRequest struct {
	PlanID         string    `json:"planId"`
	UserID         uint      `json:"userId"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	BilledFor      string    `json:"billedFor"`
	IdempotencyKey string    `json:"idempotencyKey"`
	RequestedAt    time.Time `json:"requestedAt"`
}

// ChargeResponse is what the payment endpoint answers.
type ChargeResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Outcome summarizes a BillPlan call.
type Outcome string

const (
	OutcomeCharged Outcome = "charged"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

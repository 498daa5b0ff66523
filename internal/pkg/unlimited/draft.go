package unlimited

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/PawPantry/app/models"
)

// Draft is an in-progress, not yet billable selection bound to a budget. Drafts
// live in a TTL store and disappear when promoted, merged, discarded or expired.
type Draft struct {
	ID           string                 `json:"draftId"`
	UserID       uint                   `json:"userId"`
	Mode         string                 `json:"mode"`
	PetType      string                 `json:"petType"`
	Budget       int64                  `json:"budget"`
	Lines        []models.SelectionLine `json:"lines"`
	SourcePlanID string                 `json:"sourcePlanId,omitempty"`
	// ConsumedBy holds the plan id a draft was committed into while the commit runs.
	ConsumedBy string    `json:"consumedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Wallet evaluates the draft lines against its budget.
func (d *Draft) Wallet() Wallet {
	return Evaluate(d.Budget, d.Lines)
}

// IsEdit reports whether the draft was opened from an existing plan.
func (d *Draft) IsEdit() bool {
	return d.SourcePlanID != ""
}

func (d *Draft) lineIndex(productID, variantID uint) int {
	for i, l := range d.Lines {
		if l.SameItem(productID, variantID) {
			return i
		}
	}
	return -1
}

func (d *Draft) clone() *Draft {
	out := *d
	out.Lines = cloneLines(d.Lines)
	return &out
}

func cloneLines(lines []models.SelectionLine) []models.SelectionLine {
	out := make([]models.SelectionLine, len(lines))
	copy(out, lines)
	return out
}

// errNoChange lets an update callback tell the store to skip the write.
var errNoChange = errors.New("draft unchanged")

// DraftStore persists drafts. Update runs fn against a private copy of the stored
// draft and writes the result only when fn returns nil; concurrent updates to the
// same draft are serialized so fn always sees the latest committed state.
type DraftStore interface {
	Create(ctx context.Context, d *Draft) error
	Get(ctx context.Context, id string) (*Draft, error)
	Update(ctx context.Context, id string, fn func(d *Draft) error) (*Draft, error)
	Delete(ctx context.Context, id string) error
}

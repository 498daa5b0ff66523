package unlimited

import (
	"fmt"

	"github.com/ManuelReschke/PawPantry/app/models"
)

// Action names a lifecycle operation on a committed plan.
type Action string

const (
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionSkip   Action = "skip"
	ActionCancel Action = "cancel"
	ActionEdit   Action = "edit"
	ActionBill   Action = "bill"
)

// allowedFrom lists the source statuses each action may run from. cancelled appears
// nowhere: it is terminal.
var allowedFrom = map[Action][]string{
	ActionPause:  {models.UnlimitedStatusActive},
	ActionResume: {models.UnlimitedStatusPaused},
	ActionSkip:   {models.UnlimitedStatusActive},
	ActionCancel: {models.UnlimitedStatusActive, models.UnlimitedStatusPaused},
	ActionEdit:   {models.UnlimitedStatusActive},
	ActionBill:   {models.UnlimitedStatusActive},
}

// CanApply reports whether action may run on a plan in status.
func CanApply(action Action, status string) bool {
	for _, s := range allowedFrom[action] {
		if s == status {
			return true
		}
	}
	return false
}

func checkTransition(action Action, plan *models.UnlimitedPlan) error {
	if CanApply(action, plan.Status) {
		return nil
	}
	return fmt.Errorf("%w: cannot %s a %s plan", ErrInvalidTransition, action, plan.Status)
}

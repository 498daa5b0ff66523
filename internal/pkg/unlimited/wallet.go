package unlimited

import (
	"math"

	"github.com/ManuelReschke/PawPantry/app/models"
	"github.com/ManuelReschke/PawPantry/internal/pkg/catalog"
)

// Wallet is the spent/remaining view of a line set against a budget.
type Wallet struct {
	Budget    int64 `json:"budget"`
	Spent     int64 `json:"spent"`
	Remaining int64 `json:"remaining"`
	// PerLineAffordable[i] reports whether one more unit of lines[i] still fits.
	PerLineAffordable []bool `json:"perLineAffordable"`
}

// Within reports whether the evaluated lines respect the budget.
func (w Wallet) Within() bool {
	return w.Remaining >= 0
}

// Evaluate computes the wallet for lines against budget. It never mutates lines.
func Evaluate(budget int64, lines []models.SelectionLine) Wallet {
	var spent int64
	for _, l := range lines {
		spent = saturatingAdd(spent, saturatingMul(l.LockedPrice, int64(l.Quantity)))
	}
	w := Wallet{
		Budget:            budget,
		Spent:             spent,
		Remaining:         budget - spent,
		PerLineAffordable: make([]bool, len(lines)),
	}
	for i, l := range lines {
		w.PerLineAffordable[i] = CanAfford(w.Remaining, l.LockedPrice, 1)
	}
	return w
}

// CanAfford reports whether candidateQty units at candidatePrice fit into remaining.
func CanAfford(remaining, candidatePrice int64, candidateQty int) bool {
	if candidateQty <= 0 || candidatePrice < 0 {
		return false
	}
	if remaining < 0 {
		return false
	}
	if candidatePrice == 0 {
		return true
	}
	return int64(candidateQty) <= remaining/candidatePrice
}

// ProductAffordable reports whether at least one in-stock variant of a product fits
// into remaining. Used to grey out catalog tiles; callers must still re-validate
// through the draft store before mutating.
func ProductAffordable(remaining int64, variants []catalog.Variant) bool {
	for _, v := range variants {
		if !v.InStock() {
			continue
		}
		if CanAfford(remaining, v.Price, 1) {
			return true
		}
	}
	return false
}

func saturatingMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

func saturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

package unlimited

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/PawPantry/app/models"
	"github.com/ManuelReschke/PawPantry/internal/pkg/catalog"
)

func TestEvaluate(t *testing.T) {
	lines := []models.SelectionLine{
		{ProductID: 1, VariantID: 11, Quantity: 2, LockedPrice: 20000},
		{ProductID: 2, VariantID: 21, Quantity: 1, LockedPrice: 50000},
	}
	w := Evaluate(100000, lines)

	assert.Equal(t, int64(90000), w.Spent)
	assert.Equal(t, int64(10000), w.Remaining)
	assert.True(t, w.Within())
	assert.Equal(t, []bool{false, false}, w.PerLineAffordable)

	w = Evaluate(110000, lines)
	assert.Equal(t, []bool{true, false}, w.PerLineAffordable)

	w = Evaluate(50000, lines)
	assert.False(t, w.Within())
	assert.Equal(t, int64(-40000), w.Remaining)

	empty := Evaluate(1000, nil)
	assert.Equal(t, int64(0), empty.Spent)
	assert.Empty(t, empty.PerLineAffordable)
}

func TestEvaluate_SaturatesOnOverflow(t *testing.T) {
	w := Evaluate(1000, []models.SelectionLine{
		{ProductID: 1, VariantID: 1, Quantity: math.MaxInt32, LockedPrice: math.MaxInt64 / 2},
		{ProductID: 2, VariantID: 2, Quantity: 1, LockedPrice: math.MaxInt64},
	})
	assert.Equal(t, int64(math.MaxInt64), w.Spent)
	assert.False(t, w.Within())
}

func TestCanAfford(t *testing.T) {
	tests := []struct {
		remaining, price int64
		qty              int
		want             bool
	}{
		{60000, 50000, 1, true},
		{60000, 70000, 1, false},
		{60000, 30000, 2, true},
		{60000, 30000, 3, false},
		{0, 0, 5, true},
		{0, 1, 1, false},
		{-1, 0, 1, false},
		{100, 10, 0, false},
		{100, -10, 1, false},
		{math.MaxInt64, math.MaxInt64, 1, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d/%d", tt.remaining, tt.price, tt.qty), func(t *testing.T) {
			assert.Equal(t, tt.want, CanAfford(tt.remaining, tt.price, tt.qty))
		})
	}
}

func TestProductAffordable(t *testing.T) {
	variants := []catalog.Variant{
		{ID: 1, Price: 900, Stock: 0, Active: true},
		{ID: 2, Price: 1200, Stock: 3, Active: true},
	}
	assert.False(t, ProductAffordable(1000, variants), "cheapest variant is out of stock")
	assert.True(t, ProductAffordable(1200, variants))
	assert.False(t, ProductAffordable(1000, nil))
}

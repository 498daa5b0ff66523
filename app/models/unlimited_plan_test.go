package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPlan() *UnlimitedPlan {
	p := &UnlimitedPlan{
		ID:              "3b6f0f5e-8a63-4a4e-9d59-1b0c8c1f6a11",
		UserID:          7,
		Mode:            UnlimitedModeMonthly,
		PetType:         PetTypeDog,
		Budget:          100000,
		BillingCycleDay: 15,
		NextBillingDate: time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
		Status:          UnlimitedStatusActive,
	}
	p.ReplaceLines([]SelectionLine{{ProductID: 1, VariantID: 11, Quantity: 2, LockedPrice: 2500}})
	return p
}

func TestUnlimitedPlanValidate(t *testing.T) {
	require.NoError(t, validPlan().Validate())

	p := validPlan()
	p.Status = "archived"
	assert.Error(t, p.Validate())

	p = validPlan()
	p.Budget = 0
	assert.Error(t, p.Validate())

	p = validPlan()
	p.Lines[0].Quantity = 0
	assert.Error(t, p.Validate())
}

func TestUnlimitedPlanReplaceLines(t *testing.T) {
	p := validPlan()
	p.ReplaceLines([]SelectionLine{
		{ProductID: 2, VariantID: 21, Quantity: 1, LockedPrice: 900},
		{ProductID: 3, VariantID: 31, Quantity: 3, LockedPrice: 100},
	})

	require.Len(t, p.Lines, 2)
	for _, l := range p.Lines {
		assert.Equal(t, p.ID, l.PlanID)
	}
	assert.Equal(t, []SelectionLine{
		{ProductID: 2, VariantID: 21, Quantity: 1, LockedPrice: 900},
		{ProductID: 3, VariantID: 31, Quantity: 3, LockedPrice: 100},
	}, p.SelectionLines())
}

func TestSelectionLineSubtotal(t *testing.T) {
	l := SelectionLine{ProductID: 1, VariantID: 2, Quantity: 3, LockedPrice: 1250}
	assert.Equal(t, int64(3750), l.Subtotal())
	assert.True(t, l.SameItem(1, 2))
	assert.False(t, l.SameItem(1, 3))
}

func TestIsValidPetTypeAndMode(t *testing.T) {
	assert.True(t, IsValidPetType(PetTypeCat))
	assert.False(t, IsValidPetType("dragon"))
	assert.True(t, IsValidUnlimitedMode(UnlimitedModeBundle))
	assert.False(t, IsValidUnlimitedMode("weekly"))
}

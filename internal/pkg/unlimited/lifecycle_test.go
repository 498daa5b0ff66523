package unlimited

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PawPantry/app/models"
)

func TestActivate(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	d := env.draft(t, 100000, models.UnlimitedModeMonthly)
	env.add(t, d.ID, 1, 11, 1)

	plan, err := env.svc.Activate(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnlimitedStatusActive, plan.Status)
	assert.Equal(t, 15, plan.BillingCycleDay)
	assert.Equal(t, day("2024-02-15"), plan.NextBillingDate)
	assert.Equal(t, testUser, plan.UserID)
	assert.Equal(t, []models.SelectionLine{{ProductID: 1, VariantID: 11, Quantity: 1, LockedPrice: 40000}}, plan.SelectionLines())
	assert.Equal(t, 1, env.events.count(EventPlanActivated))

	// the draft is consumed
	_, err = env.svc.GetDraft(ctx, d.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)
	_, err = env.svc.Activate(ctx, d.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)

	plans, err := env.svc.ListPlans(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestActivate_Rejections(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()

	empty := env.draft(t, 100000, models.UnlimitedModeMonthly)
	_, err := env.svc.Activate(ctx, empty.ID)
	assert.ErrorIs(t, err, ErrEmptySelection)

	_, err = env.svc.Activate(ctx, "missing")
	assert.ErrorIs(t, err, ErrDraftNotFound)

	plan := env.activePlan(t)
	edit, err := env.svc.CreateDraftFromPlan(ctx, testUser, plan.ID, 0)
	require.NoError(t, err)
	_, err = env.svc.PromoteToPlan(ctx, edit.ID)
	assert.ErrorIs(t, err, ErrDraftHasSourcePlan)

	// the rejected edit draft is still usable
	_, err = env.svc.GetDraft(ctx, edit.ID)
	assert.NoError(t, err)
}

func TestActivate_BundleMinimum(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	d := env.draft(t, 100000, models.UnlimitedModeBundle)
	env.add(t, d.ID, 1, 11, 1)
	env.add(t, d.ID, 4, 41, 1)

	_, err := env.svc.PromoteToPlan(ctx, d.ID)
	assert.ErrorIs(t, err, ErrBundleMinimumNotMet)

	env.add(t, d.ID, 5, 51, 1)
	plan, err := env.svc.PromoteToPlan(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnlimitedModeBundle, plan.Mode)
	assert.Len(t, plan.Lines, 3)
}

func TestActivate_EndOfMonthClamp(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	env.clock.Set(time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC))
	d := env.draft(t, 100000, models.UnlimitedModeMonthly)
	env.add(t, d.ID, 4, 41, 1)

	plan, err := env.svc.Activate(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 31, plan.BillingCycleDay)
	assert.Equal(t, day("2024-02-29"), plan.NextBillingDate)

	plan, err = env.svc.Skip(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, day("2024-03-31"), plan.NextBillingDate)
}

func TestSkip(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	plan := env.activePlan(t)
	setPlan(t, env.plans, plan.ID, func(p *models.UnlimitedPlan) {
		p.BillingCycleDay = 1
		p.NextBillingDate = day("2024-03-01")
	})

	got, err := env.svc.Skip(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, day("2024-04-01"), got.NextBillingDate)
	assert.Equal(t, models.UnlimitedStatusActive, got.Status)

	_, err = env.svc.Pause(ctx, plan.ID)
	require.NoError(t, err)
	_, err = env.svc.Skip(ctx, plan.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPauseResume(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	plan := env.activePlan(t)

	paused, err := env.svc.Pause(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnlimitedStatusPaused, paused.Status)
	assert.Equal(t, plan.NextBillingDate, paused.NextBillingDate)
	assert.Equal(t, plan.SelectionLines(), paused.SelectionLines())
	assert.NotNil(t, paused.PausedAt)

	_, err = env.svc.Pause(ctx, plan.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// resumed before the billing date passed: date unchanged
	resumed, err := env.svc.Resume(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnlimitedStatusActive, resumed.Status)
	assert.Equal(t, day("2024-02-15"), resumed.NextBillingDate)
	assert.Nil(t, resumed.PausedAt)

	_, err = env.svc.Resume(ctx, plan.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResume_MissedCyclesAreNotBilled(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	plan := env.activePlan(t)
	_, err := env.svc.Pause(ctx, plan.ID)
	require.NoError(t, err)

	env.clock.Set(time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC))
	resumed, err := env.svc.Resume(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, day("2024-06-15"), resumed.NextBillingDate)

	due, err := env.svc.DueForBilling(ctx, env.clock.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, due)

	// resuming on the cycle day itself bills that same day
	_, err = env.svc.Pause(ctx, plan.ID)
	require.NoError(t, err)
	env.clock.Set(time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC))
	resumed, err = env.svc.Resume(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, day("2024-07-15"), resumed.NextBillingDate)
}

func TestCancelIsTerminal(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	plan := env.activePlan(t)

	cancelled, err := env.svc.Cancel(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnlimitedStatusCancelled, cancelled.Status)
	assert.True(t, cancelled.IsTerminal())

	for name, op := range map[string]func(context.Context, string) (*models.UnlimitedPlan, error){
		"pause":  env.svc.Pause,
		"resume": env.svc.Resume,
		"skip":   env.svc.Skip,
		"cancel": env.svc.Cancel,
	} {
		_, err := op(ctx, plan.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition, name)
	}

	// a paused plan can be cancelled too
	other := env.activePlan(t)
	_, err = env.svc.Pause(ctx, other.ID)
	require.NoError(t, err)
	_, err = env.svc.Cancel(ctx, other.ID)
	assert.NoError(t, err)

	_, err = env.svc.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestDueForBilling(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	due := env.activePlan(t)
	paused := env.activePlan(t)
	_, err := env.svc.Pause(ctx, paused.ID)
	require.NoError(t, err)
	later := env.activePlan(t)
	setPlan(t, env.plans, later.ID, func(p *models.UnlimitedPlan) {
		p.NextBillingDate = day("2024-03-15")
	})

	plans, err := env.svc.DueForBilling(ctx, time.Date(2024, 2, 15, 23, 59, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, due.ID, plans[0].ID)

	plans, err = env.svc.DueForBilling(ctx, day("2024-02-14"), 0)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestRecordBillingSuccess(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	plan := env.activePlan(t)

	got, err := env.svc.RecordBillingSuccess(ctx, plan.ID, day("2024-02-15"))
	require.NoError(t, err)
	assert.Equal(t, day("2024-03-15"), got.NextBillingDate)
	assert.NotNil(t, got.LastBilledAt)

	_, err = env.svc.RecordBillingSuccess(ctx, plan.ID, day("2024-02-15"))
	assert.ErrorIs(t, err, ErrStaleBillingDate)

	stored, err := env.svc.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, day("2024-03-15"), stored.NextBillingDate)
}

func TestRecordBillingSuccess_LateSettlementSkipsMissedCycles(t *testing.T) {
	tests := []struct {
		name  string
		today string
		want  string
	}{
		{"one day late", "2024-02-16", "2024-03-15"},
		{"months late", "2024-06-20", "2024-07-15"},
		{"late on a cycle day", "2024-06-15", "2024-07-15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, DefaultConfig())
			ctx := context.Background()
			plan := env.activePlan(t)
			require.Equal(t, day("2024-02-15"), plan.NextBillingDate)

			env.clock.Set(day(tt.today).Add(8 * time.Hour))
			got, err := env.svc.RecordBillingSuccess(ctx, plan.ID, plan.NextBillingDate)
			require.NoError(t, err)
			assert.Equal(t, day(tt.want), got.NextBillingDate)
			assert.True(t, got.NextBillingDate.After(day(tt.today)))

			due, err := env.svc.DueForBilling(ctx, env.clock.Now(), 0)
			require.NoError(t, err)
			assert.Empty(t, due)
		})
	}
}

func TestRecordBillingFailure_Policies(t *testing.T) {
	cause := errors.New("card declined")

	t.Run("retry", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.FailurePolicy = BillingFailurePolicy{Mode: FailureRetry, MaxAttempts: 3}
		env := newTestEnv(t, cfg)
		plan := env.activePlan(t)

		for i := 1; i <= 2; i++ {
			got, err := env.svc.RecordBillingFailure(context.Background(), plan.ID, plan.NextBillingDate, cause)
			require.NoError(t, err)
			assert.Equal(t, models.UnlimitedStatusActive, got.Status)
			assert.Equal(t, i, got.FailedBillingAttempts)
			assert.Equal(t, plan.NextBillingDate, got.NextBillingDate)
		}
		got, err := env.svc.RecordBillingFailure(context.Background(), plan.ID, plan.NextBillingDate, cause)
		require.NoError(t, err)
		assert.Equal(t, models.UnlimitedStatusPaused, got.Status)

		// a success after resuming clears the counter
		_, err = env.svc.Resume(context.Background(), plan.ID)
		require.NoError(t, err)
		got, err = env.svc.RecordBillingSuccess(context.Background(), plan.ID, plan.NextBillingDate)
		require.NoError(t, err)
		assert.Zero(t, got.FailedBillingAttempts)
	})

	t.Run("pause", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.FailurePolicy = BillingFailurePolicy{Mode: FailurePause}
		env := newTestEnv(t, cfg)
		plan := env.activePlan(t)

		got, err := env.svc.RecordBillingFailure(context.Background(), plan.ID, plan.NextBillingDate, cause)
		require.NoError(t, err)
		assert.Equal(t, models.UnlimitedStatusPaused, got.Status)
		assert.Equal(t, 1, env.events.count(EventBillingFailed))

		_, err = env.svc.RecordBillingFailure(context.Background(), plan.ID, plan.NextBillingDate, cause)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

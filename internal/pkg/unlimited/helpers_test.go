package unlimited

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PawPantry/app/models"
	"github.com/ManuelReschke/PawPantry/internal/pkg/catalog"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{t: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingEvents struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *recordingEvents) RecordEvent(_ context.Context, event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[event]++
}

func (r *recordingEvents) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[event]
}

type testEnv struct {
	svc     *Service
	drafts  *MemoryDraftStore
	plans   *MemoryPlanRepository
	catalog *catalog.StaticProvider
	clock   *testClock
	events  *recordingEvents
}

const testUser uint = 42

// Catalog used across tests: product 1 has variants A(11) and B(12), product 2 has
// C(21), product 3 has D(31) which is out of stock.
func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	clock := newTestClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	provider := catalog.NewStaticProvider(
		catalog.Variant{ID: 11, ProductID: 1, Price: 40000, Stock: 10, Active: true},
		catalog.Variant{ID: 12, ProductID: 1, Price: 70000, Stock: 10, Active: true},
		catalog.Variant{ID: 21, ProductID: 2, Price: 65000, Stock: 10, Active: true},
		catalog.Variant{ID: 31, ProductID: 3, Price: 1000, Stock: 0, Active: true},
		catalog.Variant{ID: 41, ProductID: 4, Price: 5000, Stock: 10, Active: true},
		catalog.Variant{ID: 51, ProductID: 5, Price: 3000, Stock: 10, Active: true},
	)
	cfg = cfg.normalized()
	drafts := NewMemoryDraftStore(cfg.DraftTTL, clock.Now)
	plans := NewMemoryPlanRepository()
	plans.now = clock.Now
	events := &recordingEvents{}

	var seq int
	var seqMu sync.Mutex
	svc := NewService(drafts, plans, provider, cfg,
		WithClock(clock.Now),
		WithEventRecorder(events),
		WithIDGenerator(func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
	)
	return &testEnv{svc: svc, drafts: drafts, plans: plans, catalog: provider, clock: clock, events: events}
}

func (e *testEnv) draft(t *testing.T, budget int64, mode string) *Draft {
	t.Helper()
	d, err := e.svc.CreateDraft(context.Background(), testUser, budget, models.PetTypeDog, mode)
	require.NoError(t, err)
	return d
}

func (e *testEnv) add(t *testing.T, draftID string, productID, variantID uint, qty int) *Draft {
	t.Helper()
	d, err := e.svc.AddLine(context.Background(), draftID, productID, variantID, qty)
	require.NoError(t, err)
	return d
}

// activePlan builds and activates a monthly plan with lines A x1 and D2(41) x2.
func (e *testEnv) activePlan(t *testing.T) *models.UnlimitedPlan {
	t.Helper()
	d := e.draft(t, 100000, models.UnlimitedModeMonthly)
	e.add(t, d.ID, 1, 11, 1)
	e.add(t, d.ID, 4, 41, 2)
	plan, err := e.svc.Activate(context.Background(), d.ID)
	require.NoError(t, err)
	return plan
}

func setPlan(t *testing.T, repo *MemoryPlanRepository, id string, fn func(p *models.UnlimitedPlan)) {
	t.Helper()
	_, err := repo.Update(context.Background(), id, func(p *models.UnlimitedPlan) error {
		fn(p)
		return nil
	})
	require.NoError(t, err)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

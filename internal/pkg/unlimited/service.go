package unlimited

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/PawPantry/internal/pkg/catalog"
)

// Lifecycle events reported to the EventRecorder.
const (
	EventDraftCreated  = "draft_created"
	EventPlanActivated = "plan_activated"
	EventPlanEdited    = "plan_edited"
	EventPlanPaused    = "plan_paused"
	EventPlanResumed   = "plan_resumed"
	EventPlanSkipped   = "plan_skipped"
	EventPlanCancelled = "plan_cancelled"
	EventBillingOK     = "billing_succeeded"
	EventBillingFailed = "billing_failed"
)

// EventRecorder counts lifecycle events. Recording is best effort.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event string)
}

type noopRecorder struct{}

func (noopRecorder) RecordEvent(context.Context, string) {}

// Service implements the draft builder, the plan lifecycle and draft/plan sync.
type Service struct {
	drafts  DraftStore
	plans   PlanRepository
	catalog catalog.Provider
	cfg     Config
	events  EventRecorder
	now     func() time.Time
	newID   func() string
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the uuid based id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithEventRecorder attaches a lifecycle event counter.
func WithEventRecorder(r EventRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.events = r
		}
	}
}

// NewService wires the stores and the catalog into a Service.
func NewService(drafts DraftStore, plans PlanRepository, provider catalog.Provider, cfg Config, opts ...Option) *Service {
	s := &Service{
		drafts:  drafts,
		plans:   plans,
		catalog: provider,
		cfg:     cfg.normalized(),
		events:  noopRecorder{},
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) record(ctx context.Context, event string) {
	s.events.RecordEvent(ctx, event)
}

// releaseClaim undoes a commit claim after the plan write failed.
func (s *Service) releaseClaim(ctx context.Context, draftID, claim string) {
	_, err := s.drafts.Update(ctx, draftID, func(d *Draft) error {
		if d.ConsumedBy != claim {
			return errNoChange
		}
		d.ConsumedBy = ""
		return nil
	})
	if err != nil {
		log.Errorf("[Unlimited] Failed to release claim on draft %s: %v", draftID, err)
	}
}

// finishCommit removes a draft whose content now lives in a plan. A failed delete
// leaves the claim in place, which already hides the draft, and the TTL reaps it.
func (s *Service) finishCommit(ctx context.Context, draftID string) {
	if err := s.drafts.Delete(ctx, draftID); err != nil {
		log.Warnf("[Unlimited] Failed to delete consumed draft %s: %v", draftID, err)
	}
}

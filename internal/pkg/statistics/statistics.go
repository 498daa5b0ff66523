package statistics

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PawPantry/app/models"
	"github.com/ManuelReschke/PawPantry/internal/pkg/cache"
)

const (
	CacheKeyPlansByStatus = "statistics:unlimited:plans_by_status"
	CacheExpiration       = 5 * time.Minute

	DefaultDays = 7
	MaxDays     = 90
)

// Source reads the raw numbers behind the admin overview.
type Source interface {
	CountPlansByStatus(ctx context.Context) (map[string]int64, error)
	EventStats(ctx context.Context, since time.Time) ([]models.UnlimitedEventStat, error)
}

// DailyEvent is one (day, event) counter row.
type DailyEvent struct {
	Day   string `json:"day"`
	Event string `json:"event"`
	Count int64  `json:"count"`
}

// Overview is the admin dashboard payload for the Unlimited program.
type Overview struct {
	PlansByStatus map[string]int64 `json:"plansByStatus"`
	Events        []DailyEvent     `json:"events"`
	Since         string           `json:"since"`
	GeneratedAt   time.Time        `json:"generatedAt"`
}

type Service struct {
	source Source
	now    func() time.Time
}

func NewService(source Source) *Service {
	return &Service{source: source, now: time.Now}
}

// Overview returns plan counts per status (cached) and the lifecycle event
// counters of the last days days, today included.
func (s *Service) Overview(ctx context.Context, days int) (*Overview, error) {
	if days <= 0 {
		days = DefaultDays
	}
	if days > MaxDays {
		days = MaxDays
	}

	byStatus, err := s.plansByStatus(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))
	stats, err := s.source.EventStats(ctx, since)
	if err != nil {
		return nil, err
	}

	events := make([]DailyEvent, 0, len(stats))
	for _, st := range stats {
		events = append(events, DailyEvent{Day: st.Day.UTC().Format("2006-01-02"), Event: st.Event, Count: st.Count})
	}
	return &Overview{
		PlansByStatus: byStatus,
		Events:        events,
		Since:         since.Format("2006-01-02"),
		GeneratedAt:   now,
	}, nil
}

func (s *Service) plansByStatus(ctx context.Context) (map[string]int64, error) {
	if raw, err := cache.Get(CacheKeyPlansByStatus); err == nil && raw != "" {
		var cached map[string]int64
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
	}

	counts, err := s.source.CountPlansByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range []string{models.UnlimitedStatusActive, models.UnlimitedStatusPaused, models.UnlimitedStatusCancelled} {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}

	if b, err := json.Marshal(counts); err == nil {
		if err := cache.Set(CacheKeyPlansByStatus, string(b), CacheExpiration); err != nil {
			log.Printf("Error caching plan counts: %v", err)
		}
	}
	return counts, nil
}

// Invalidate drops cached counts so the next overview reads fresh numbers.
func (s *Service) Invalidate() error {
	return cache.Delete(CacheKeyPlansByStatus)
}

type gormSource struct {
	db *gorm.DB
}

// NewGormSource reads plan and event numbers from MySQL.
func NewGormSource(db *gorm.DB) Source {
	return &gormSource{db: db}
}

func (g *gormSource) CountPlansByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	if err := g.db.WithContext(ctx).
		Model(&models.UnlimitedPlan{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}

func (g *gormSource) EventStats(ctx context.Context, since time.Time) ([]models.UnlimitedEventStat, error) {
	var stats []models.UnlimitedEventStat
	err := g.db.WithContext(ctx).
		Where("day >= ?", since.Format("2006-01-02")).
		Order("day ASC, event ASC").
		Find(&stats).Error
	return stats, err
}

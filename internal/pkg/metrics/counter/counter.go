package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PawPantry/app/models"
	"github.com/ManuelReschke/PawPantry/internal/pkg/cache"
	"github.com/ManuelReschke/PawPantry/internal/pkg/database"
)

const (
	eventsKey = "unlimited:counters:events"
	fieldSep  = "|"
)

// Events counts lifecycle events in a Redis hash keyed by "<day>|<event>".
type Events struct {
	client *redis.Client
	now    func() time.Time
}

// NewEvents creates an event counter on client; nil uses the shared cache client.
func NewEvents(client *redis.Client) *Events {
	if client == nil {
		client = cache.GetClient()
	}
	return &Events{client: client, now: time.Now}
}

// RecordEvent increments the pending counter for event. Failures are logged only.
func (e *Events) RecordEvent(ctx context.Context, event string) {
	field := e.now().UTC().Format("2006-01-02") + fieldSep + event
	if err := e.client.HIncrBy(ctx, eventsKey, field, 1).Err(); err != nil {
		log.Warnf("[Counter] Failed to record %s: %v", event, err)
	}
}

// Flush drains the pending counters into unlimited_event_stats.
func (e *Events) Flush(ctx context.Context) error {
	rows, err := e.drain(ctx)
	if err != nil || len(rows) == 0 {
		return err
	}
	return applyStats(database.GetDB().WithContext(ctx), rows)
}

// drain atomically moves the hash to a temporary key and parses it. Uses RENAME so
// increments arriving during the flush land in a fresh hash.
func (e *Events) drain(ctx context.Context) ([]models.UnlimitedEventStat, error) {
	tmpKey := fmt.Sprintf("%s:tmp:%d", eventsKey, time.Now().UnixNano())
	if err := e.client.Rename(ctx, eventsKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") || err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	// Ensure cleanup of tmpKey even if later steps fail
	defer e.client.Del(ctx, tmpKey)

	data, err := e.client.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return nil, err
	}
	return parseCounters(data), nil
}

func parseCounters(data map[string]string) []models.UnlimitedEventStat {
	rows := make([]models.UnlimitedEventStat, 0, len(data))
	for field, raw := range data {
		dayPart, event, ok := strings.Cut(field, fieldSep)
		if !ok || event == "" {
			continue
		}
		day, err := time.Parse("2006-01-02", dayPart)
		if err != nil {
			continue
		}
		inc, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || inc == 0 {
			continue
		}
		rows = append(rows, models.UnlimitedEventStat{Day: day, Event: event, Count: inc})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Day.Equal(rows[j].Day) {
			return rows[i].Event < rows[j].Event
		}
		return rows[i].Day.Before(rows[j].Day)
	})
	return rows
}

func applyStats(db *gorm.DB, rows []models.UnlimitedEventStat) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "day"},
			{Name: "event"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("count + VALUES(count)"),
			"updated_at": gorm.Expr("VALUES(updated_at)"),
		}),
	}).Create(&rows).Error
}

package models

import "time"

// UnlimitedEventStat aggregates lifecycle events (activated, skipped, cancelled, ...)
// per UTC day. Rows are fed from Redis counters by the job queue manager.
type UnlimitedEventStat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Day       time.Time `gorm:"type:date;not null;uniqueIndex:ux_unlimited_event_stats_day_event,priority:1" json:"day"`
	Event     string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_unlimited_event_stats_day_event,priority:2" json:"event"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UnlimitedEventStat) TableName() string {
	return "unlimited_event_stats"
}

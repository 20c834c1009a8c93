package models

import (
	"database/sql"
	"time"
)

// ScheduledTaskEntity is a persisted cron schedule bound to a feature.
// CronExpression is five-field cron; LastRun/NextRun mirror the live
// scheduler's plan table.
type ScheduledTaskEntity struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	FeatureID      uint         `gorm:"not null;index" json:"feature_id"`
	Name           string       `gorm:"type:varchar(64);not null" json:"name"`
	Description    string       `gorm:"type:varchar(256)" json:"description"`
	CronExpression string       `gorm:"type:varchar(64);not null" json:"cron_expression"`
	IsActive       bool         `gorm:"not null;default:false" json:"is_active"`
	LastRun        sql.NullTime `json:"last_run"`
	NextRun        sql.NullTime `json:"next_run"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`

	FeatureName string `gorm:"-" json:"feature_name,omitempty"`
}

func (ScheduledTaskEntity) TableName() string {
	return "scheduled_task"
}

type GetScheduledTaskParam struct {
	FeatureID *uint
	IsActive  *bool
}

package models

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

type ExecutionStatus string

const (
	ExecutionStatusRunning ExecutionStatus = "RUNNING"
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"
	ExecutionStatusFailure ExecutionStatus = "FAILURE"
	// ExecutionStatusError marks runs that never reached the plugin entry
	// point (load failure, missing entry point), as opposed to a plugin
	// that ran and reported failure.
	ExecutionStatusError      ExecutionStatus = "ERROR"
	ExecutionStatusTerminated ExecutionStatus = "TERMINATED"
)

type ExecutionKind string

const (
	ExecutionKindManual    ExecutionKind = "MANUAL"
	ExecutionKindScheduled ExecutionKind = "SCHEDULED"
)

// ExecutionLogEntity is the per-run header row. Inserted with status RUNNING
// before the plugin is touched, finalized exactly once with an end time and a
// terminal status.
type ExecutionLogEntity struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	FeatureID uint            `gorm:"not null;index" json:"feature_id"`
	RequestID string          `gorm:"type:varchar(32);index;not null" json:"request_id"`
	StartTime time.Time       `gorm:"not null" json:"start_time"`
	EndTime   sql.NullTime    `json:"end_time"`
	Status    ExecutionStatus `gorm:"type:varchar(16);not null" json:"status"`
	Kind      ExecutionKind   `gorm:"type:varchar(16);not null;default:'MANUAL'" json:"kind"`
	ClientID  string          `gorm:"type:varchar(128)" json:"client_id"`
	Result    datatypes.JSON  `json:"result"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (ExecutionLogEntity) TableName() string {
	return "feature_execution_log"
}

// ExecutionLogDetailEntity is one log line of a run. Append-only; RequestID
// is denormalized so detail lookups skip the header join.
type ExecutionLogDetailEntity struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LogID     uint      `gorm:"not null;index" json:"log_id"`
	Level     string    `gorm:"type:varchar(16);not null" json:"level"`
	Message   string    `gorm:"type:text" json:"message"`
	RequestID string    `gorm:"type:varchar(32);index" json:"request_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ExecutionLogDetailEntity) TableName() string {
	return "feature_execution_log_detail"
}

type GetExecutionLogParam struct {
	FeatureID *uint
	Status    *ExecutionStatus
	Kind      *ExecutionKind
	RequestID *string
	Limit     *int
}

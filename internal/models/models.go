package models

import (
	"time"

	"github.com/lib/pq"
)

// CustomerEntity is the business customer a feature is executed on behalf of.
type CustomerEntity struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:varchar(256)" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CustomerEntity) TableName() string {
	return "base_customer"
}

type CategoryEntity struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	Code        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Description string    `gorm:"type:varchar(256)" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CategoryEntity) TableName() string {
	return "base_category"
}

// FeatureEntity is one registered unit of executable logic. ScriptPath is
// relative to either the scan directory or the upload directory; an empty
// path means the feature has no runnable backing yet.
type FeatureEntity struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(64);not null" json:"name"`
	Description string         `gorm:"type:varchar(256)" json:"description"`
	CustomerID  uint           `gorm:"not null;default:0" json:"customer_id"`
	CategoryID  uint           `gorm:"not null;default:0" json:"category_id"`
	ScriptPath  string         `gorm:"type:varchar(512)" json:"script_path"`
	Tags        pq.StringArray `gorm:"type:text[]" json:"tags"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`

	// Populated by joins, not stored.
	CustomerName string `gorm:"-" json:"customer_name,omitempty"`
}

func (FeatureEntity) TableName() string {
	return "base_feature"
}

// ConfigEntity is one named configuration key. FeatureID 0 marks a
// system-wide key rather than a feature-scoped one. Value overrides
// DefaultValue when non-empty.
type ConfigEntity struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(64);not null" json:"name"`
	Value        *string   `gorm:"type:varchar(512)" json:"value"`
	DefaultValue *string   `gorm:"type:varchar(512)" json:"default_value"`
	Description  string    `gorm:"type:varchar(256)" json:"description"`
	FeatureID    uint      `gorm:"not null;default:0;index" json:"feature_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ConfigEntity) TableName() string {
	return "base_config"
}

// EffectiveValue resolves the value a plugin run actually consumes.
func (c *ConfigEntity) EffectiveValue() *string {
	if c.Value != nil && *c.Value != "" {
		return c.Value
	}
	return c.DefaultValue
}

type GetFeatureParam struct {
	IDs        []uint
	CustomerID *uint
	CategoryID *uint
	Name       *string
	Limit      *int
}

type GetConfigParam struct {
	FeatureID *uint
	Name      *string
}

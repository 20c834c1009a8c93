package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/utils"
)

type ExecutionLogRepository interface {
	CreateHeader(ctx context.Context, header *models.ExecutionLogEntity, opts ...utils.DBOption) error
	// Finalize stamps the terminal status, end time and result payload.
	// Callers guarantee at-most-once per header.
	Finalize(ctx context.Context, id uint, status models.ExecutionStatus, endTime time.Time, result datatypes.JSON, opts ...utils.DBOption) error
	MaxID(ctx context.Context, opts ...utils.DBOption) (uint, error)
	AppendDetail(ctx context.Context, detail *models.ExecutionLogDetailEntity, opts ...utils.DBOption) error
	GetHeaders(ctx context.Context, param *models.GetExecutionLogParam, opts ...utils.DBOption) ([]models.ExecutionLogEntity, error)
	GetDetailsByRequestID(ctx context.Context, requestID string, opts ...utils.DBOption) ([]models.ExecutionLogDetailEntity, error)
	// FailOrphanedRunning marks headers stuck at RUNNING from a previous
	// process lifetime as FAILURE; nothing else would ever finalize them.
	FailOrphanedRunning(ctx context.Context, before time.Time, opts ...utils.DBOption) (int64, error)
}

type executionLogRepository struct {
	db *gorm.DB
}

func NewExecutionLogRepository(db *gorm.DB) ExecutionLogRepository {
	return &executionLogRepository{db: db}
}

func (r *executionLogRepository) CreateHeader(ctx context.Context, header *models.ExecutionLogEntity, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Create(header).Error
}

func (r *executionLogRepository) Finalize(ctx context.Context, id uint, status models.ExecutionStatus, endTime time.Time, result datatypes.JSON, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	fields := map[string]interface{}{
		"status":   status,
		"end_time": endTime,
	}
	if result != nil {
		fields["result"] = result
	}
	return tx.Model(&models.ExecutionLogEntity{}).Where("id = ?", id).Updates(fields).Error
}

func (r *executionLogRepository) MaxID(ctx context.Context, opts ...utils.DBOption) (uint, error) {
	var maxID *uint
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	err := tx.Model(&models.ExecutionLogEntity{}).Select("MAX(id)").Scan(&maxID).Error
	if err != nil {
		return 0, err
	}
	if maxID == nil {
		return 0, nil
	}
	return *maxID, nil
}

func (r *executionLogRepository) AppendDetail(ctx context.Context, detail *models.ExecutionLogDetailEntity, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Create(detail).Error
}

func (r *executionLogRepository) GetHeaders(ctx context.Context, param *models.GetExecutionLogParam, opts ...utils.DBOption) ([]models.ExecutionLogEntity, error) {
	var headers []models.ExecutionLogEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if param.FeatureID != nil {
		db = db.Where("feature_id = ?", *param.FeatureID)
	}
	if param.Status != nil {
		db = db.Where("status = ?", *param.Status)
	}
	if param.Kind != nil {
		db = db.Where("kind = ?", *param.Kind)
	}
	if param.RequestID != nil {
		db = db.Where("request_id = ?", *param.RequestID)
	}
	db = db.Order("id DESC")
	if param.Limit != nil {
		db = db.Limit(*param.Limit)
	}
	result := db.Find(&headers)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return headers, nil
}

func (r *executionLogRepository) GetDetailsByRequestID(ctx context.Context, requestID string, opts ...utils.DBOption) ([]models.ExecutionLogDetailEntity, error) {
	var details []models.ExecutionLogDetailEntity
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := tx.Where("request_id = ?", requestID).Order("id ASC").Find(&details)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return details, nil
}

func (r *executionLogRepository) FailOrphanedRunning(ctx context.Context, before time.Time, opts ...utils.DBOption) (int64, error) {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := tx.Model(&models.ExecutionLogEntity{}).
		Where("status = ? AND start_time < ?", models.ExecutionStatusRunning, before).
		Updates(map[string]interface{}{
			"status":   models.ExecutionStatusFailure,
			"end_time": time.Now(),
		})
	return result.RowsAffected, result.Error
}

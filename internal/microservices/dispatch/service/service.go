package service

import "delivery-marketplace/internal/common/logger"

type Service struct {
	DispatchService *DispatchService
}

func New(policy Policy, orders OrderReader, assigner Assigner, lg *logger.Logger) *Service {
	return &Service{
		DispatchService: NewDispatchService(policy, orders, assigner, lg),
	}
}

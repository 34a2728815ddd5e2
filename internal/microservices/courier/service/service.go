package service

import (
	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/microservices/courier/repository"
)

type Service struct {
	CourierService *CourierService
}

func New(repo *repository.Repository, sink events.Sink, lg *logger.Logger) *Service {
	return &Service{
		CourierService: NewCourierService(repo.CourierRepo, sink, lg),
	}
}

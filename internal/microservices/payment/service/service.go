package service

import (
	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/microservices/payment/repository"
)

type Service struct {
	PaymentService *PaymentService
}

func New(repo *repository.Repository, orders OrderReader, gateway Gateway, settings Settings, sink events.Sink, lg *logger.Logger) *Service {
	return &Service{
		PaymentService: NewPaymentService(repo.PaymentRepo, orders, gateway, settings, sink, lg),
	}
}

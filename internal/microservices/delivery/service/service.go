package service

import (
	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/geo"
	"delivery-marketplace/internal/microservices/delivery/repository"
)

type Service struct {
	DeliveryService *DeliveryService
}

func New(
	repo *repository.Repository,
	orders OrderReader,
	couriers CourierFinder,
	geocoder geo.Geocoder,
	router Router,
	pricing geo.Pricing,
	sink events.Sink,
	lg *logger.Logger,
) *Service {
	return &Service{
		DeliveryService: NewDeliveryService(repo.DeliveryRepo, orders, couriers, geocoder, router, pricing, sink, lg),
	}
}

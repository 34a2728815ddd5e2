package service

import (
	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/geo"
	"delivery-marketplace/internal/microservices/order/repository"
)

type Service struct {
	OrderService   *OrderService
	ProductService *ProductService
}

func New(repo *repository.Repository, geocoder geo.Geocoder, sink events.Sink, lg *logger.Logger) *Service {
	return &Service{
		OrderService:   NewOrderService(repo.OrderRepo, geocoder, sink, lg),
		ProductService: NewProductService(repo.ProductRepo, lg),
	}
}

package handlers

import "delivery-marketplace/internal/microservices/order/service"

type Handler struct {
	OrderHandler   *OrderHandler
	ProductHandler *ProductHandler
}

func New(s *service.Service) *Handler {
	return &Handler{
		OrderHandler:   NewOrderHandler(s.OrderService),
		ProductHandler: NewProductHandler(s.ProductService),
	}
}

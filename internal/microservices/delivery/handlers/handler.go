package handlers

import "delivery-marketplace/internal/microservices/delivery/service"

type Handler struct {
	DeliveryHandler *DeliveryHandler
}

func New(s *service.Service) *Handler {
	return &Handler{
		DeliveryHandler: NewDeliveryHandler(s.DeliveryService),
	}
}

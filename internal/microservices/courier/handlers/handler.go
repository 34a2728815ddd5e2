package handlers

import "delivery-marketplace/internal/microservices/courier/service"

type Handler struct {
	CourierHandler *CourierHandler
}

func New(s *service.Service) *Handler {
	return &Handler{
		CourierHandler: NewCourierHandler(s.CourierService),
	}
}

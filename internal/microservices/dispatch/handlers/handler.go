package handlers

import "delivery-marketplace/internal/microservices/dispatch/service"

type Handler struct {
	DispatchHandler *DispatchHandler
}

func New(s *service.Service) *Handler {
	return &Handler{
		DispatchHandler: NewDispatchHandler(s.DispatchService),
	}
}

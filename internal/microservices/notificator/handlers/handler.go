package handlers

import "delivery-marketplace/internal/microservices/notificator/service"

type Handler struct {
	InboxHandler *InboxHandler
}

func New(s *service.Service, couriers CourierLookup) *Handler {
	return &Handler{
		InboxHandler: NewInboxHandler(s.InboxService, couriers),
	}
}

package service

import (
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/microservices/notificator/repository"
)

type Service struct {
	InboxService *InboxService
	Subscriber   *Subscriber
}

func New(repo *repository.Repository, pusher Pusher, lg *logger.Logger) *Service {
	return &Service{
		InboxService: NewInboxService(repo.NotificationRepo),
		Subscriber:   NewSubscriber(repo.NotificationRepo, pusher, lg),
	}
}

package service

import (
	"context"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/microservices/notificator/repository"
)

type InboxServiceInterface interface {
	List(ctx context.Context, topics []string, limit, offset int) ([]repository.Notification, error)
	MarkRead(ctx context.Context, id int64, topics []string) error
}

// InboxService reads stored notifications for the topics a caller may see.
type InboxService struct {
	repo repository.NotificationRepositoryInterface
}

func NewInboxService(repo repository.NotificationRepositoryInterface) *InboxService {
	return &InboxService{repo: repo}
}

func (s *InboxService) List(ctx context.Context, topics []string, limit, offset int) ([]repository.Notification, error) {
	if len(topics) == 0 {
		return nil, apperr.Forbidden("no notification topics for caller")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByTopics(ctx, topics, limit, offset)
}

func (s *InboxService) MarkRead(ctx context.Context, id int64, topics []string) error {
	ok, err := s.repo.MarkRead(ctx, id, topics)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("notification %d not found", id)
	}
	return nil
}

// TopicsFor lists the topics a user reads: their own, their courier topic and
// the admin topic for admins.
func TopicsFor(userID, courierID int64, admin bool) []string {
	topics := []string{events.UserTopic(userID)}
	if courierID != 0 {
		topics = append(topics, events.CourierTopic(courierID))
	}
	if admin {
		topics = append(topics, events.AdminsTopic)
	}
	return topics
}

package repository

import "database/sql"

type Repository struct {
	NotificationRepo NotificationRepositoryInterface
}

func New(db *sql.DB) *Repository {
	return &Repository{
		NotificationRepo: NewNotificationRepository(db),
	}
}

package repository

import "database/sql"

type Repository struct {
	CourierRepo CourierRepositoryInterface
}

func New(db *sql.DB) *Repository {
	return &Repository{
		CourierRepo: NewCourierRepository(db),
	}
}

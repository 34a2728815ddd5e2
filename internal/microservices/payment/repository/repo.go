package repository

import "database/sql"

type Repository struct {
	PaymentRepo PaymentRepositoryInterface
}

func New(db *sql.DB) *Repository {
	return &Repository{
		PaymentRepo: NewPaymentRepository(db),
	}
}

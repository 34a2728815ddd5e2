package repository

import "database/sql"

type Repository struct {
	OrderRepo   OrderRepositoryInterface
	ProductRepo ProductRepositoryInterface
}

func New(db *sql.DB) *Repository {
	return &Repository{
		OrderRepo:   NewOrderRepository(db),
		ProductRepo: NewProductRepository(db),
	}
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Archived products keep their row so that past
// order items still resolve, but they can no longer be ordered.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Unit          string          `json:"unit,omitempty"`
	ImageURL      string          `json:"image_url,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Available     bool            `json:"available"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type ProductInput struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description" validate:"max=2000"`
	Unit          string          `json:"unit" validate:"max=32"`
	ImageURL      string          `json:"image_url" validate:"omitempty,url"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
}

// ProductPatch changes only the fields that are set. Stock moves through
// Restock and order placement, never through a patch.
type ProductPatch struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	Unit        *string          `json:"unit" validate:"omitempty,max=32"`
	ImageURL    *string          `json:"image_url" validate:"omitempty,url"`
	Price       *decimal.Decimal `json:"price"`
	Available   *bool            `json:"available"`
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Unit == nil &&
		p.ImageURL == nil && p.Price == nil && p.Available == nil
}

type RestockRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0,lte=100000"`
}

type ProductFilter struct {
	Search          string
	IncludeArchived bool
	Limit           int
	Offset          int
}

package service

import (
	"context"
	"strings"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/microservices/order/domain"
	"delivery-marketplace/internal/microservices/order/repository"
)

const (
	defaultProductPage = 20
	maxProductPage     = 100
)

type ProductServiceInterface interface {
	Create(ctx context.Context, in domain.ProductInput) (domain.Product, error)
	// Get hides archived products unless includeArchived is set.
	Get(ctx context.Context, id int64, includeArchived bool) (domain.Product, error)
	List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error)
	Update(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error)
	Archive(ctx context.Context, id int64) (domain.Product, error)
	Restock(ctx context.Context, id int64, quantity int) (domain.Product, error)
}

type ProductService struct {
	repo repository.ProductRepositoryInterface
	lg   *logger.Logger
}

func NewProductService(repo repository.ProductRepositoryInterface, lg *logger.Logger) *ProductService {
	return &ProductService{repo: repo, lg: lg}
}

func (s *ProductService) Create(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return domain.Product{}, apperr.InvalidArgument("product name is required")
	}
	if in.Price.IsNegative() {
		return domain.Product{}, apperr.InvalidArgument("price must not be negative")
	}
	if in.StockQuantity < 0 {
		return domain.Product{}, apperr.InvalidArgument("stock must not be negative")
	}
	p, err := s.repo.Create(ctx, in)
	if err != nil {
		return domain.Product{}, err
	}
	s.lg.Info("product_created", map[string]any{"product_id": p.ID, "price": p.Price, "stock": p.StockQuantity})
	return p, nil
}

func (s *ProductService) Get(ctx context.Context, id int64, includeArchived bool) (domain.Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if !p.Available && !includeArchived {
		return domain.Product{}, apperr.NotFound("product %d not found", id)
	}
	return p, nil
}

func (s *ProductService) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	if f.Limit <= 0 {
		f.Limit = defaultProductPage
	}
	if f.Limit > maxProductPage {
		f.Limit = maxProductPage
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

func (s *ProductService) Update(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error) {
	if patch.Empty() {
		return domain.Product{}, apperr.InvalidArgument("nothing to update")
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Product{}, apperr.InvalidArgument("product name must not be blank")
		}
		patch.Name = &name
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return domain.Product{}, apperr.InvalidArgument("price must not be negative")
	}
	p, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return domain.Product{}, err
	}
	s.lg.Info("product_updated", map[string]any{"product_id": id, "available": p.Available})
	return p, nil
}

func (s *ProductService) Archive(ctx context.Context, id int64) (domain.Product, error) {
	p, err := s.repo.Archive(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	s.lg.Info("product_archived", map[string]any{"product_id": id})
	return p, nil
}

func (s *ProductService) Restock(ctx context.Context, id int64, quantity int) (domain.Product, error) {
	if quantity <= 0 {
		return domain.Product{}, apperr.InvalidArgument("restock quantity must be positive, got %d", quantity)
	}
	p, err := s.repo.Restock(ctx, id, quantity)
	if err != nil {
		return domain.Product{}, err
	}
	s.lg.Info("product_restocked", map[string]any{"product_id": id, "added": quantity, "stock": p.StockQuantity})
	return p, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"delivery-marketplace/internal/connections/database"
	"delivery-marketplace/internal/microservices/order/domain"
)

type ProductRepositoryInterface interface {
	Create(ctx context.Context, in domain.ProductInput) (domain.Product, error)
	Get(ctx context.Context, id int64) (domain.Product, error)
	List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error)
	Update(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error)
	// Archive withdraws the product from sale. Archiving twice is not an error.
	Archive(ctx context.Context, id int64) (domain.Product, error)
	Restock(ctx context.Context, id int64, quantity int) (domain.Product, error)
}

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductRepositoryInterface {
	return &ProductRepository{db: db}
}

const productColumns = `
	id, name, description, unit, COALESCE(image_url,''), price, stock_quantity, available, created_at, updated_at`

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Unit, &p.ImageURL,
		&p.Price, &p.StockQuantity, &p.Available, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *ProductRepository) Create(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, unit, image_url, price, stock_quantity)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, $6)
		RETURNING `+productColumns,
		in.Name, in.Description, in.Unit, in.ImageURL, in.Price, in.StockQuantity,
	)
	p, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, database.Translate(err, "product")
	}
	return p, nil
}

func (r *ProductRepository) Get(ctx context.Context, id int64) (domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return domain.Product{}, database.Translate(err, fmt.Sprintf("product %d", id))
	}
	return p, nil
}

func (r *ProductRepository) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if !f.IncludeArchived {
		where = append(where, "available")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(s))+"%")
		where = append(where, fmt.Sprintf("(lower(name) LIKE $%d OR lower(description) LIKE $%d)", len(args), len(args)))
	}
	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *ProductRepository) Update(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE products SET
			name        = COALESCE($2, name),
			description = COALESCE($3, description),
			unit        = COALESCE($4, unit),
			image_url   = COALESCE(NULLIF($5,''), image_url),
			price       = COALESCE($6, price),
			available   = COALESCE($7, available),
			updated_at  = now()
		WHERE id = $1
		RETURNING `+productColumns,
		id, patch.Name, patch.Description, patch.Unit, patch.ImageURL, patch.Price, patch.Available,
	)
	p, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, database.Translate(err, fmt.Sprintf("product %d", id))
	}
	return p, nil
}

func (r *ProductRepository) Archive(ctx context.Context, id int64) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE products SET available = false, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns, id)
	p, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, database.Translate(err, fmt.Sprintf("product %d", id))
	}
	return p, nil
}

func (r *ProductRepository) Restock(ctx context.Context, id int64, quantity int) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns, id, quantity)
	p, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, database.Translate(err, fmt.Sprintf("product %d", id))
	}
	return p, nil
}

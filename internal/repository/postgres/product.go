package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wovenmarket/catalog/internal/domain"
	"github.com/wovenmarket/catalog/internal/repository"
	"github.com/wovenmarket/catalog/pkg/database"
	apperrors "github.com/wovenmarket/catalog/pkg/errors"
)

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a new product and its images atomically within a transaction.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var dimensionsJSON []byte

	if p.Dimensions != nil {
		dimensionsJSON, err = json.Marshal(p.Dimensions)
		if err != nil {
			return fmt.Errorf("marshal dimensions: %w", err)
		}
	}

	productQuery := `
		INSERT INTO products (id, name, description, category, price, status, stock_quantity, materials, dimensions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.Exec(ctx, productQuery,
		p.ID,
		p.Name,
		p.Description,
		p.Category,
		p.Price,
		p.Status,
		p.StockQuantity,
		p.Materials,
		dimensionsJSON,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	imageQuery := `
		INSERT INTO product_images (id, product_id, url, file_name, position, show_on_home, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, img := range p.Images {
		_, err = tx.Exec(ctx, imageQuery,
			img.ID,
			img.ProductID,
			img.URL,
			img.FileName,
			img.Position,
			img.ShowOnHome,
			img.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert product image: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a product by its ID, eagerly loading its images.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	// Fetch product and images in a single query using LEFT JOIN + JSONB_AGG
	// to avoid a second round trip per product.
	query := `
		SELECT
			p.id, p.name, p.description, p.category, p.price, p.status,
			p.stock_quantity, p.materials, p.dimensions, p.created_at, p.updated_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'id', pi.id,
						'product_id', pi.product_id,
						'url', pi.url,
						'file_name', pi.file_name,
						'position', pi.position,
						'show_on_home', pi.show_on_home,
						'created_at', pi.created_at
					) ORDER BY pi.position
				) FILTER (WHERE pi.id IS NOT NULL),
				'[]'::jsonb
			) AS images
		FROM products p
		LEFT JOIN product_images pi ON p.id = pi.product_id
		WHERE p.id = $1
		GROUP BY p.id, p.name, p.description, p.category, p.price, p.status,
			p.stock_quantity, p.materials, p.dimensions, p.created_at, p.updated_at`

	var (
		p              domain.Product
		dimensionsJSON []byte
		imagesJSON     []byte
	)

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.Price,
		&p.Status,
		&p.StockQuantity,
		&p.Materials,
		&dimensionsJSON,
		&p.CreatedAt,
		&p.UpdatedAt,
		&imagesJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	if len(dimensionsJSON) > 0 && string(dimensionsJSON) != "null" {
		var dims domain.Dimensions
		if err := json.Unmarshal(dimensionsJSON, &dims); err != nil {
			return nil, fmt.Errorf("unmarshal dimensions: %w", err)
		}
		p.Dimensions = &dims
	}

	if len(imagesJSON) > 0 && string(imagesJSON) != "null" && string(imagesJSON) != "[]" {
		if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
			return nil, fmt.Errorf("unmarshal product images: %w", err)
		}
	} else {
		p.Images = []domain.ProductImage{}
	}

	return &p, nil
}

// List returns products matching the given filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   int = 1
	)

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, *filter.Category)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// count(*) OVER() delivers the total count in the same query.
	query := fmt.Sprintf(`
		SELECT id, name, description, category, price, status, stock_quantity, materials, dimensions, created_at, updated_at,
			   count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var totalCount int
	products := make([]domain.Product, 0)

	for rows.Next() {
		var (
			p              domain.Product
			dimensionsJSON []byte
		)

		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.Category,
			&p.Price,
			&p.Status,
			&p.StockQuantity,
			&p.Materials,
			&dimensionsJSON,
			&p.CreatedAt,
			&p.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}

		if len(dimensionsJSON) > 0 && string(dimensionsJSON) != "null" {
			var dims domain.Dimensions
			if err := json.Unmarshal(dimensionsJSON, &dims); err != nil {
				return nil, 0, fmt.Errorf("unmarshal dimensions: %w", err)
			}
			p.Dimensions = &dims
		}

		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	// Batch-load images for the page in a single query.
	if len(products) > 0 {
		productIDs := make([]string, len(products))
		for i := range products {
			productIDs[i] = products[i].ID
		}

		imagesQuery := `
			SELECT id, product_id, url, file_name, position, show_on_home, created_at
			FROM product_images
			WHERE product_id = ANY($1)
			ORDER BY position`

		imageRows, err := r.pool.Query(ctx, imagesQuery, productIDs)
		if err != nil {
			return nil, 0, fmt.Errorf("batch load product images: %w", err)
		}
		defer imageRows.Close()

		imagesByProductID := make(map[string][]domain.ProductImage, len(products))
		for imageRows.Next() {
			var img domain.ProductImage
			if err := imageRows.Scan(
				&img.ID,
				&img.ProductID,
				&img.URL,
				&img.FileName,
				&img.Position,
				&img.ShowOnHome,
				&img.CreatedAt,
			); err != nil {
				return nil, 0, fmt.Errorf("scan product image: %w", err)
			}
			imagesByProductID[img.ProductID] = append(imagesByProductID[img.ProductID], img)
		}
		if err := imageRows.Err(); err != nil {
			return nil, 0, fmt.Errorf("iterate product image rows: %w", err)
		}

		for i := range products {
			if images, ok := imagesByProductID[products[i].ID]; ok {
				products[i].Images = images
			} else {
				products[i].Images = []domain.ProductImage{}
			}
		}
	}

	return products, totalCount, nil
}

// Delete removes a product by ID. Image rows go with it via ON DELETE CASCADE.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM products WHERE id = $1`

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

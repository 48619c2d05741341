package repository

import (
	"context"

	"github.com/wovenmarket/catalog/internal/domain"
)

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	Category *string
	Status   *string
	Page     int
	PerPage  int
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create inserts a new product and its image rows into the store
	// atomically. Either the product and every image land, or nothing does.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by its unique identifier, including images.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// List returns products matching the given filter along with the total count.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	// Delete removes a product and, via cascade, its image rows.
	Delete(ctx context.Context, id string) error
}

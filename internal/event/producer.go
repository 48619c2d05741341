package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wovenmarket/catalog/internal/domain"
	pkgkafka "github.com/wovenmarket/catalog/pkg/kafka"
)

// Kafka topic constants for catalog domain events.
const (
	TopicProductCreated = "catalog.product.created"
	TopicProductDeleted = "catalog.product.deleted"
)

// Aggregate type constant.
const AggregateTypeProduct = "product"

// Source identifier for events originating from the catalog service.
const SourceCatalogService = "catalog-service"

// ProductCreatedData is the payload for a product.created event (full snapshot).
type ProductCreatedData struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Category      string             `json:"category"`
	Price         float64            `json:"price"`
	Status        string             `json:"status"`
	StockQuantity int                `json:"stock_quantity"`
	Dimensions    *domain.Dimensions `json:"dimensions,omitempty"`
	Images        []ProductImageData `json:"images"`
}

// ProductImageData is the event payload for one product image.
type ProductImageData struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Position   int    `json:"position"`
	ShowOnHome bool   `json:"show_on_home"`
}

// ProductDeletedData is the payload for a product.deleted event.
type ProductDeletedData struct {
	ProductID string `json:"product_id"`
}

// Producer publishes catalog domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the catalog service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishProductCreated publishes a product.created event with the full snapshot.
func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	images := make([]ProductImageData, len(product.Images))
	for i, img := range product.Images {
		images[i] = ProductImageData{
			ID:         img.ID,
			URL:        img.URL,
			Position:   img.Position,
			ShowOnHome: img.ShowOnHome,
		}
	}

	data := ProductCreatedData{
		ID:            product.ID,
		Name:          product.Name,
		Category:      product.Category,
		Price:         product.Price,
		Status:        product.Status,
		StockQuantity: product.StockQuantity,
		Dimensions:    product.Dimensions,
		Images:        images,
	}

	event, err := pkgkafka.NewEvent(TopicProductCreated, product.ID, AggregateTypeProduct, SourceCatalogService, data)
	if err != nil {
		return fmt.Errorf("create product.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicProductCreated, event); err != nil {
		return fmt.Errorf("publish product.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published product.created event",
		slog.String("product_id", product.ID),
		slog.Int("image_count", len(product.Images)),
	)

	return nil
}

// PublishProductDeleted publishes a product.deleted event.
func (p *Producer) PublishProductDeleted(ctx context.Context, productID string) error {
	data := ProductDeletedData{ProductID: productID}

	event, err := pkgkafka.NewEvent(TopicProductDeleted, productID, AggregateTypeProduct, SourceCatalogService, data)
	if err != nil {
		return fmt.Errorf("create product.deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicProductDeleted, event); err != nil {
		return fmt.Errorf("publish product.deleted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published product.deleted event",
		slog.String("product_id", productID),
	)

	return nil
}

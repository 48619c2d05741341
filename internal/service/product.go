package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/wovenmarket/catalog/internal/domain"
	"github.com/wovenmarket/catalog/internal/event"
	"github.com/wovenmarket/catalog/internal/repository"
	"github.com/wovenmarket/catalog/internal/storage"
	"github.com/wovenmarket/catalog/internal/upload"
	apperrors "github.com/wovenmarket/catalog/pkg/errors"
)

// ProductCache caches product snapshots between detail reads. A miss is
// reported as apperrors.ErrNotFound.
type ProductCache interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
	Set(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
}

// ProductService implements the business logic for catalog operations.
type ProductService struct {
	repo     repository.ProductRepository
	storage  storage.Storage
	cache    ProductCache
	producer *event.Producer
	logger   *slog.Logger
}

// NewProductService creates a new product service.
func NewProductService(
	repo repository.ProductRepository,
	store storage.Storage,
	cache ProductCache,
	producer *event.Producer,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		repo:     repo,
		storage:  store,
		cache:    cache,
		producer: producer,
		logger:   logger,
	}
}

// ListProductsInput holds the parameters for listing products.
type ListProductsInput struct {
	Category string
	Status   string
	Page     int
	PerPage  int
}

// CreateWithImages validates the form fields and image batch, writes the
// files to storage, and persists the product with its image rows atomically.
// Validation runs entirely before the first disk write, so a rejected request
// leaves no trace. If storage or the database fails midway, every file
// written so far is deleted before the error is returned.
func (s *ProductService) CreateWithImages(ctx context.Context, form url.Values, files []upload.File) (*domain.Product, error) {
	fieldErrs := upload.NewFieldErrors()

	input, err := upload.DecodeFields(form)
	if err != nil {
		var fe *upload.FieldErrors
		if !errors.As(err, &fe) {
			return nil, fmt.Errorf("decode product fields: %w", err)
		}
		fieldErrs.Merge(fe.Fields())
	}

	staged, err := upload.ValidateFiles(files)
	if err != nil {
		var fe *upload.FieldErrors
		if !errors.As(err, &fe) {
			return nil, fmt.Errorf("validate image files: %w", err)
		}
		fieldErrs.Merge(fe.Fields())
	}

	if !fieldErrs.Empty() {
		return nil, fieldErrs
	}

	now := time.Now().UTC()
	productID := uuid.New().String()

	// Write files one by one, remembering each stored name so a later failure
	// can undo everything written so far.
	written := make([]string, 0, len(staged))
	images := make([]domain.ProductImage, 0, len(staged))

	for i, sf := range staged {
		stored, err := s.writeFile(ctx, sf)
		if err != nil {
			s.compensate(ctx, written)
			return nil, fmt.Errorf("store image %q: %w", sf.OriginalName, err)
		}
		written = append(written, stored.FileName)

		showOnHome := false
		if i < len(input.ShowOnHome) {
			showOnHome = input.ShowOnHome[i]
		}

		images = append(images, domain.ProductImage{
			ID:         uuid.New().String(),
			ProductID:  productID,
			URL:        stored.URL,
			FileName:   stored.FileName,
			Position:   i,
			ShowOnHome: showOnHome,
			CreatedAt:  now,
		})
	}

	product := &domain.Product{
		ID:            productID,
		Name:          input.Name,
		Description:   input.Description,
		Category:      input.Category,
		Price:         input.Price,
		Status:        input.Status,
		StockQuantity: input.StockQuantity,
		Materials:     input.Materials,
		Dimensions:    input.Dimensions,
		Images:        images,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		s.compensate(ctx, written)
		return nil, fmt.Errorf("create product: %w", err)
	}

	// Publish event; errors are logged but do not fail the operation.
	if err := s.producer.PublishProductCreated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("category", product.Category),
		slog.Int("image_count", len(product.Images)),
	)

	return product, nil
}

// writeFile streams one staged upload into storage.
func (s *ProductService) writeFile(ctx context.Context, sf upload.StagedFile) (*storage.StoredFile, error) {
	reader, err := sf.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer reader.Close()

	return s.storage.Write(ctx, &storage.WriteInput{
		OriginalName: sf.OriginalName,
		Extension:    sf.Extension,
		ContentType:  sf.ContentType,
		Size:         sf.Size,
		Data:         reader,
	})
}

// compensate removes files written during a failed create. Cleanup failures
// are logged and never replace the error that triggered the rollback.
func (s *ProductService) compensate(ctx context.Context, written []string) {
	for _, name := range written {
		if err := s.storage.Delete(ctx, name); err != nil {
			s.logger.ErrorContext(ctx, "failed to clean up stored file after create failure",
				slog.String("file_name", name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// GetProduct retrieves a product by its ID, serving from cache when possible.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	cached, err := s.cache.Get(ctx, id)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		s.logger.WarnContext(ctx, "product cache read failed",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	if err := s.cache.Set(ctx, product); err != nil {
		s.logger.WarnContext(ctx, "product cache write failed",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}

	return product, nil
}

// ListProducts returns a paginated list of products matching the filter.
func (s *ProductService) ListProducts(ctx context.Context, input ListProductsInput) ([]domain.Product, int, error) {
	if input.Category != "" && !domain.IsValidCategory(input.Category) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("category %q is not valid", input.Category))
	}
	if input.Status != "" && !domain.IsValidStatus(input.Status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("status %q is not valid", input.Status))
	}

	page := input.Page
	if page <= 0 {
		page = 1
	}
	perPage := input.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	filter := repository.ProductFilter{Page: page, PerPage: perPage}
	if input.Category != "" {
		filter.Category = &input.Category
	}
	if input.Status != "" {
		filter.Status = &input.Status
	}

	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	return products, total, nil
}

// DeleteProduct removes a product, its image rows, and then its stored files.
// The database row is the source of truth, so it goes first; file removal
// afterwards is best effort.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get product for delete: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	for _, img := range product.Images {
		if err := s.storage.Delete(ctx, img.FileName); err != nil {
			s.logger.ErrorContext(ctx, "failed to delete stored file",
				slog.String("product_id", id),
				slog.String("file_name", img.FileName),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "product cache invalidation failed",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}

	// Publish event; errors are logged but do not fail the operation.
	if err := s.producer.PublishProductDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.deleted event",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", id),
		slog.Int("image_count", len(product.Images)),
	)

	return nil
}

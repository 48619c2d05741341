package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wovenmarket/catalog/internal/domain"
	"github.com/wovenmarket/catalog/internal/service"
	"github.com/wovenmarket/catalog/internal/upload"
	"github.com/wovenmarket/catalog/pkg/httputil"
)

// ProductHandler handles HTTP requests for catalog endpoints.
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Response DTOs ---

// productResponse is the wire representation of a product. Images are exposed
// as an ordered list of public URLs.
type productResponse struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	Category      string             `json:"category"`
	Price         float64            `json:"price"`
	Status        string             `json:"status"`
	StockQuantity int                `json:"stock_quantity"`
	Materials     string             `json:"materials,omitempty"`
	Dimensions    *domain.Dimensions `json:"dimensions,omitempty"`
	Images        []string           `json:"images"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func toProductResponse(p *domain.Product) productResponse {
	images := make([]string, len(p.Images))
	for i, img := range p.Images {
		images[i] = img.URL
	}

	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.Category,
		Price:         p.Price,
		Status:        p.Status,
		StockQuantity: p.StockQuantity,
		Materials:     p.Materials,
		Dimensions:    p.Dimensions,
		Images:        images,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// --- Handlers ---

// CreateWithUpload handles POST /api/v1/products/with-upload (multipart/form-data).
func (h *ProductHandler) CreateWithUpload(w http.ResponseWriter, r *http.Request) {
	// Cap the request body at the worst-case batch size plus form field overhead.
	maxSize := int64(domain.MaxImagesPerProduct)*domain.MaxImageSize + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(domain.MaxImageSize); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "failed to parse multipart form: " + err.Error()},
		})
		return
	}

	files := upload.FilesFromMultipart(r.MultipartForm.File["images"])

	product, err := h.service.CreateWithImages(r.Context(), url.Values(r.MultipartForm.Value), files)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: toProductResponse(product)})
}

// GetProduct handles GET /api/v1/products/{id}.
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := httputil.ParseUUID(w, id); !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toProductResponse(product)})
}

// ListProducts handles GET /api/v1/products.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	input := service.ListProductsInput{
		Category: r.URL.Query().Get("category"),
		Status:   r.URL.Query().Get("status"),
		Page:     1,
		PerPage:  20,
	}

	if v := r.URL.Query().Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "page must be a valid positive integer"},
			})
			return
		}
		input.Page = p
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		pp, err := strconv.Atoi(v)
		if err != nil || pp < 1 || pp > 100 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "per_page must be a valid integer between 1 and 100"},
			})
			return
		}
		input.PerPage = pp
	}

	products, total, err := h.service.ListProducts(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	responses := make([]productResponse, len(products))
	for i := range products {
		responses[i] = toProductResponse(&products[i])
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(responses, total, input.Page, input.PerPage))
}

// DeleteProduct handles DELETE /api/v1/products/{id}.
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := httputil.ParseUUID(w, id); !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "deleted"}})
}

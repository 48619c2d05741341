package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wovenmarket/catalog/internal/domain"
	"github.com/wovenmarket/catalog/internal/event"
	"github.com/wovenmarket/catalog/internal/repository"
	"github.com/wovenmarket/catalog/internal/service"
	"github.com/wovenmarket/catalog/internal/storage/disk"
	apperrors "github.com/wovenmarket/catalog/pkg/errors"
	"github.com/wovenmarket/catalog/pkg/health"
	"github.com/wovenmarket/catalog/pkg/httputil"
	pkgkafka "github.com/wovenmarket/catalog/pkg/kafka"
	"github.com/wovenmarket/catalog/pkg/middleware"
)

// Ensure the mock satisfies the interface at compile time.
var _ repository.ProductRepository = (*mockProductRepository)(nil)

// --- Mock ProductRepository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Stub cache (always misses) ---

type stubCache struct{}

func (stubCache) Get(ctx context.Context, id string) (*domain.Product, error) {
	return nil, apperrors.NotFound("product", id)
}

func (stubCache) Set(context.Context, *domain.Product) error { return nil }

func (stubCache) Delete(context.Context, string) error { return nil }

// --- Test Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEventProducer() *event.Producer {
	logger := testLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}

// newTestRouter wires the full router with a real disk store so filesystem
// effects can be asserted directly.
func newTestRouter(t *testing.T, repo *mockProductRepository) (http.Handler, string) {
	t.Helper()

	uploadDir := t.TempDir()
	store, err := disk.New(uploadDir, "http://localhost:8080")
	require.NoError(t, err)

	svc := service.NewProductService(repo, store, stubCache{}, testEventProducer(), testLogger())
	router := NewRouter(svc, health.NewHandler(), uploadDir, middleware.DefaultCORSConfig(), testLogger())
	return router, uploadDir
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

func decodeProductData(t *testing.T, resp httputil.Response) map[string]any {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var data map[string]any
	require.NoError(t, json.Unmarshal(raw, &data))
	return data
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

type uploadPart struct {
	fieldName   string
	fileName    string
	contentType string
	data        []byte
}

// createProductUpload builds a multipart form body with the given file parts
// and text fields. Parts use CreatePart with an explicit Content-Type because
// CreateFormFile defaults to application/octet-stream.
func createProductUpload(parts []uploadPart, fields map[string]string) (*bytes.Buffer, string) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, p.fieldName, p.fileName))
		h.Set("Content-Type", p.contentType)
		part, _ := writer.CreatePart(h)
		_, _ = part.Write(p.data)
	}

	for k, v := range fields {
		_ = writer.WriteField(k, v)
	}

	_ = writer.Close()
	return body, writer.FormDataContentType()
}

func validUploadParts() []uploadPart {
	return []uploadPart{
		{fieldName: "images", fileName: "front.jpg", contentType: "image/jpeg", data: []byte("jpeg data")},
		{fieldName: "images", fileName: "detail.png", contentType: "image/png", data: []byte("png data")},
	}
}

func validUploadFields() map[string]string {
	return map[string]string{
		"name":     "Anatolian Kilim",
		"category": "rug",
		"price":    "149.90",
		"status":   "available",
	}
}

func doUpload(router http.Handler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/with-upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const testProductID = "550e8400-e29b-41d4-a716-446655440001"

// ============================================================================
// POST /api/v1/products/with-upload
// ============================================================================

func TestCreateWithUpload_Success(t *testing.T) {
	repo := new(mockProductRepository)
	router, uploadDir := newTestRouter(t, repo)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)

	body, contentType := createProductUpload(validUploadParts(), validUploadFields())
	rec := doUpload(router, body, contentType)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)

	data := decodeProductData(t, resp)
	assert.Equal(t, "Anatolian Kilim", data["name"])
	images, ok := data["images"].([]any)
	require.True(t, ok)
	require.Len(t, images, 2)
	assert.Contains(t, images[0].(string), "http://localhost:8080/uploads/products/")

	// Both files landed on disk.
	assert.Equal(t, 2, countFiles(t, uploadDir))
	repo.AssertExpectations(t)
}

func TestCreateWithUpload_InvalidFileLeavesDirUntouched(t *testing.T) {
	repo := new(mockProductRepository)
	router, uploadDir := newTestRouter(t, repo)

	parts := []uploadPart{
		{fieldName: "images", fileName: "ok.jpg", contentType: "image/jpeg", data: []byte("jpeg data")},
		{fieldName: "images", fileName: "doc.pdf", contentType: "application/pdf", data: []byte("pdf data")},
	}

	body, contentType := createProductUpload(parts, validUploadFields())
	rec := doUpload(router, body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "images[1]")

	// Nothing was written, not even for the valid file.
	assert.Equal(t, 0, countFiles(t, uploadDir))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateWithUpload_NoFiles(t *testing.T) {
	repo := new(mockProductRepository)
	router, uploadDir := newTestRouter(t, repo)

	body, contentType := createProductUpload(nil, validUploadFields())
	rec := doUpload(router, body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Fields, "images")
	assert.Equal(t, 0, countFiles(t, uploadDir))
}

func TestCreateWithUpload_BadFieldAndBadFileReportedTogether(t *testing.T) {
	repo := new(mockProductRepository)
	router, _ := newTestRouter(t, repo)

	parts := []uploadPart{
		{fieldName: "images", fileName: "bad.gif", contentType: "image/gif", data: []byte("gif data")},
	}
	fields := validUploadFields()
	fields["price"] = "abc"

	body, contentType := createProductUpload(parts, fields)
	rec := doUpload(router, body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Fields, "price")
	assert.Contains(t, resp.Error.Fields, "images[0]")
}

func TestCreateWithUpload_MalformedDimensions(t *testing.T) {
	repo := new(mockProductRepository)
	router, uploadDir := newTestRouter(t, repo)

	fields := validUploadFields()
	fields["dimensions"] = "50x70"

	body, contentType := createProductUpload(validUploadParts(), fields)
	rec := doUpload(router, body, contentType)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Fields, "dimensions")
	assert.Equal(t, 0, countFiles(t, uploadDir))
}

func TestCreateWithUpload_DBFailureRemovesWrittenFiles(t *testing.T) {
	repo := new(mockProductRepository)
	router, uploadDir := newTestRouter(t, repo)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Product")).
		Return(errors.New("connection refused"))

	body, contentType := createProductUpload(validUploadParts(), validUploadFields())
	rec := doUpload(router, body, contentType)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	// The client never sees the database error detail.
	assert.NotContains(t, resp.Error.Message, "connection refused")

	// Every file written before the failure was compensated away.
	assert.Equal(t, 0, countFiles(t, uploadDir))
}

func TestCreateWithUpload_NotMultipart(t *testing.T) {
	repo := new(mockProductRepository)
	router, _ := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/with-upload", bytes.NewBufferString(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

// ============================================================================
// GET /api/v1/products/{id}
// ============================================================================

func TestGetProduct_Success(t *testing.T) {
	repo := new(mockProductRepository)
	router, _ := newTestRouter(t, repo)

	now := time.Now().UTC()
	repo.On("GetByID", mock.Anything, testProductID).Return(&domain.Product{
		ID:        testProductID,
		Name:      "Kilim",
		Category:  "rug",
		Price:     149.90,
		Status:    "available",
		Images:    []domain.ProductImage{{URL: "http://localhost:8080/uploads/products/a.jpg"}},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+testProductID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := decodeProductData(t, resp)
	assert.Equal(t, "Kilim", data["name"])
	images := data["images"].([]any)
	require.Len(t, images, 1)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := new(mockProductRepository)
	router, _ := newTestRouter(t, repo)

	repo.On("GetByID", mock.Anything, testProductID).
		Return(nil, apperrors.NotFound("product", testProductID))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+testProductID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestGetProduct_InvalidID(t *testing.T) {
	repo := new(mockProductRepository)
	router, _ := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

// ============================================================================
// GET /api/v1/products
// ============================================================================

func TestListProducts_Success(t *testing.T) {
	repo := new(mockProductRepository)
	router, _ := newTestRouter(t, repo)

	repo.On("List", mock.Anything, mock.AnythingOfType("repository.ProductFilter")).
		Return([]domain.Product{{ID: "p1"}, {ID: "p2"}}, 2, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=rug", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httputil.PaginatedResponse[json.RawMessage]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.TotalCount)
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 1, resp.Page)
}

func TestListProducts_BadPage(t *testing.T) {
	repo := new(mockProductRepository)
	router, _ := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?page=zero", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

// ============================================================================
// DELETE /api/v1/products/{id}
// ============================================================================

func TestDeleteProduct_Success(t *testing.T) {
	repo := new(mockProductRepository)
	router, _ := newTestRouter(t, repo)

	repo.On("GetByID", mock.Anything, testProductID).Return(&domain.Product{
		ID:     testProductID,
		Images: []domain.ProductImage{},
	}, nil)
	repo.On("Delete", mock.Anything, testProductID).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+testProductID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	repo.AssertExpectations(t)
}

// ============================================================================
// GET /uploads/products/{fileName}
// ============================================================================

func TestServeUploadedFile(t *testing.T) {
	repo := new(mockProductRepository)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)
	router, uploadDir := newTestRouter(t, repo)

	body, contentType := createProductUpload(validUploadParts(), validUploadFields())
	rec := doUpload(router, body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code)

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	req := httptest.NewRequest(http.MethodGet, "/uploads/products/"+entries[0].Name(), nil)
	fileRec := httptest.NewRecorder()
	router.ServeHTTP(fileRec, req)

	assert.Equal(t, http.StatusOK, fileRec.Code)
	assert.NotEmpty(t, fileRec.Body.Bytes())
	assert.Contains(t, fileRec.Header().Get("Cache-Control"), "max-age")
}

func TestServeUploadedFile_NotFound(t *testing.T) {
	repo := new(mockProductRepository)
	router, _ := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/uploads/products/missing.jpg", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeUploadedFile_NoDirectoryListing(t *testing.T) {
	repo := new(mockProductRepository)
	router, _ := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/uploads/products/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// Middleware
// ============================================================================

func TestContentTypeJSON_RejectsUnsupported(t *testing.T) {
	repo := new(mockProductRepository)
	router, _ := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/with-upload", bytes.NewBufferString("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	repo := new(mockProductRepository)
	router, _ := newTestRouter(t, repo)

	// Scrape twice; the shared promhttp handler serves every request.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
	}
}

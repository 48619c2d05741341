package domain

import (
	"time"
)

// Product category constants.
const (
	CategoryWallHanging = "wall-hanging"
	CategoryRug         = "rug"
)

// Product status constants.
const (
	StatusAvailable = "available"
	StatusSold      = "sold"
	StatusDraft     = "draft"
)

// Dimension unit constants.
const (
	UnitCentimeters = "cm"
	UnitInches      = "in"
)

// Image upload policy.
const (
	MinImagesPerProduct = 1
	MaxImagesPerProduct = 5
	MaxImageSize        int64 = 5 * 1024 * 1024
)

// AllowedImageTypes is the set of accepted image content types.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// typeExtensions maps each allowed content type to its valid file extensions.
var typeExtensions = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/jpg":  {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/webp": {".webp"},
}

// Dimensions describes the physical size of a piece.
type Dimensions struct {
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
	Unit   string  `json:"unit" validate:"oneof=cm in"`
}

// Product represents a catalog entry.
type Product struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Category      string         `json:"category"`
	Price         float64        `json:"price"`
	Status        string         `json:"status"`
	StockQuantity int            `json:"stock_quantity"`
	Materials     string         `json:"materials,omitempty"`
	Dimensions    *Dimensions    `json:"dimensions,omitempty"`
	Images        []ProductImage `json:"images"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ProductImage represents one stored image attached to a product.
// Position 0 is the primary image; order follows submission order.
type ProductImage struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	URL        string    `json:"url"`
	FileName   string    `json:"file_name"`
	Position   int       `json:"position"`
	ShowOnHome bool      `json:"show_on_home"`
	CreatedAt  time.Time `json:"created_at"`
}

// ValidCategories returns the set of valid product categories.
func ValidCategories() []string {
	return []string{CategoryWallHanging, CategoryRug}
}

// IsValidCategory checks whether the given category string is valid.
func IsValidCategory(category string) bool {
	for _, c := range ValidCategories() {
		if c == category {
			return true
		}
	}
	return false
}

// ValidStatuses returns the set of valid product statuses.
func ValidStatuses() []string {
	return []string{StatusAvailable, StatusSold, StatusDraft}
}

// IsValidStatus checks whether the given status string is valid.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsAllowedImageType checks whether the given content type is accepted for upload.
func IsAllowedImageType(contentType string) bool {
	return AllowedImageTypes[contentType]
}

// ExtensionMatchesType reports whether the file extension is consistent with
// the declared content type. This blunts simple spoofing; it is not a
// content-sniffing guarantee.
func ExtensionMatchesType(contentType, ext string) bool {
	for _, e := range typeExtensions[contentType] {
		if e == ext {
			return true
		}
	}
	return false
}

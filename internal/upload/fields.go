package upload

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"

	"github.com/wovenmarket/catalog/internal/domain"
	pkgvalidator "github.com/wovenmarket/catalog/pkg/validator"
)

// CreateProductInput is the typed form of the multipart text fields.
type CreateProductInput struct {
	Name          string             `json:"name" validate:"required,max=255"`
	Description   string             `json:"description" validate:"omitempty,max=500"`
	Category      string             `json:"category" validate:"required,oneof=wall-hanging rug"`
	Price         float64            `json:"price" validate:"required,gt=0"`
	Status        string             `json:"status" validate:"oneof=available sold draft"`
	StockQuantity int                `json:"stockQuantity" validate:"gte=0"`
	Materials     string             `json:"materials"`
	Dimensions    *domain.Dimensions `json:"dimensions"`
	ShowOnHome    []bool             `json:"showOnHome"`
}

// DecodeFields converts the raw string form fields into a CreateProductInput,
// collecting an error for every malformed field rather than stopping at the
// first. Like file validation, this runs before any disk write. A malformed
// dimensions payload is rejected rather than silently dropped.
func DecodeFields(form url.Values) (*CreateProductInput, error) {
	errs := NewFieldErrors()

	input := &CreateProductInput{
		Name:        form.Get("name"),
		Description: form.Get("description"),
		Category:    form.Get("category"),
		Status:      form.Get("status"),
		Materials:   form.Get("materials"),
	}

	if input.Status == "" {
		input.Status = domain.StatusDraft
	}

	if raw := form.Get("price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs.Add("price", "must be a valid decimal number")
		} else {
			input.Price = price
		}
	}

	if raw := form.Get("stockQuantity"); raw != "" {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			errs.Add("stockQuantity", "must be a valid integer")
		} else {
			input.StockQuantity = qty
		}
	}

	if raw := form.Get("dimensions"); raw != "" {
		var dims domain.Dimensions
		if err := json.Unmarshal([]byte(raw), &dims); err != nil {
			errs.Add("dimensions", `must be a JSON object like {"width":50,"height":70,"unit":"cm"}`)
		} else {
			input.Dimensions = &dims
		}
	}

	if raw := form.Get("showOnHome"); raw != "" {
		var flags []bool
		if err := json.Unmarshal([]byte(raw), &flags); err != nil {
			errs.Add("showOnHome", "must be a JSON array of booleans")
		} else {
			input.ShowOnHome = flags
		}
	}

	// Constraint checks run on whatever parsed; parse errors recorded above
	// take precedence for the same field.
	if err := pkgvalidator.Validate(input); err != nil {
		var valErr *pkgvalidator.ValidationError
		if errors.As(err, &valErr) {
			errs.Merge(valErr.Fields())
		} else {
			return nil, err
		}
	}

	if !errs.Empty() {
		return nil, errs
	}

	return input, nil
}

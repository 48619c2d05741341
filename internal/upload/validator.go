package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/wovenmarket/catalog/internal/domain"
)

// File is one submitted file before validation. Open defers reading the
// content until the storage layer needs it; validation itself touches only
// the metadata.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// StagedFile is a validated file descriptor, ready to be written to storage.
// The original name is untrusted and used for display only; the storage layer
// generates its own name from the extension.
type StagedFile struct {
	OriginalName string
	ContentType  string
	Extension    string
	Size         int64
	Open         func() (io.ReadCloser, error)
}

// FilesFromMultipart adapts parsed multipart file headers into Files.
func FilesFromMultipart(headers []*multipart.FileHeader) []File {
	files := make([]File, 0, len(headers))
	for _, h := range headers {
		header := h
		files = append(files, File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Open: func() (io.ReadCloser, error) {
				return header.Open()
			},
		})
	}
	return files
}

// ValidateFiles checks the submitted batch against the upload policy and
// returns staged descriptors in submission order, or a FieldErrors listing
// every violation. No bytes are read and nothing is written to disk here;
// failures at this stage leave no state to clean up.
func ValidateFiles(files []File) ([]StagedFile, error) {
	errs := NewFieldErrors()

	// The batch size is a property of the whole product, so an invalid count
	// rejects the request before any file is inspected.
	if len(files) < domain.MinImagesPerProduct || len(files) > domain.MaxImagesPerProduct {
		errs.Add("images", fmt.Sprintf("expected between %d and %d images, got %d",
			domain.MinImagesPerProduct, domain.MaxImagesPerProduct, len(files)))
		return nil, errs
	}

	staged := make([]StagedFile, 0, len(files))

	for i, f := range files {
		field := fmt.Sprintf("images[%d]", i)
		ext := strings.ToLower(filepath.Ext(f.Name))

		switch {
		case f.Size <= 0:
			errs.Add(field, fmt.Sprintf("file %q is empty", f.Name))
		case f.Size > domain.MaxImageSize:
			errs.Add(field, fmt.Sprintf("file %q is %d bytes, exceeding the 5 MB limit", f.Name, f.Size))
		case !domain.IsAllowedImageType(f.ContentType):
			errs.Add(field, fmt.Sprintf("content type %q is not allowed (jpeg, jpg, png, webp)", f.ContentType))
		case !domain.ExtensionMatchesType(f.ContentType, ext):
			errs.Add(field, fmt.Sprintf("extension %q does not match declared content type %q", ext, f.ContentType))
		default:
			staged = append(staged, StagedFile{
				OriginalName: f.Name,
				ContentType:  f.ContentType,
				Extension:    ext,
				Size:         f.Size,
				Open:         f.Open,
			})
		}
	}

	if !errs.Empty() {
		return nil, errs
	}

	return staged, nil
}

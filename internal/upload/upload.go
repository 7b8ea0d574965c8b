// Package upload validates image files posted by users and admins before
// they are forwarded to the backend.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
)

var (
	ErrNotImage = errors.New("please upload an image file")
	ErrTooLarge = errors.New("image is too large")
	ErrEmpty    = errors.New("uploaded file is empty")
)

const DefaultMaxBytes = 5 << 20

type Validator struct {
	MaxBytes int64
}

func (v Validator) max() int64 {
	if v.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return v.MaxBytes
}

// Image checks the declared type, reads at most MaxBytes+1 bytes and then
// checks the sniffed type. The returned file is ready to be sent on.
func (v Validator) Image(field string, fh *multipart.FileHeader) (*apiclient.File, error) {
	declared := fh.Header.Get("Content-Type")
	if declared != "" && !strings.HasPrefix(declared, "image/") {
		return nil, ErrNotImage
	}
	if fh.Size > v.max() {
		return nil, fmt.Errorf("%s is %d bytes, limit %d: %w", fh.Filename, fh.Size, v.max(), ErrTooLarge)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return v.Read(field, fh.Filename, declared, f)
}

func (v Validator) Read(field, name, declared string, r io.Reader) (*apiclient.File, error) {
	data, err := io.ReadAll(io.LimitReader(r, v.max()+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if int64(len(data)) > v.max() {
		return nil, fmt.Errorf("%s exceeds %d bytes: %w", name, v.max(), ErrTooLarge)
	}

	sniffed := http.DetectContentType(data)
	if !strings.HasPrefix(sniffed, "image/") {
		return nil, ErrNotImage
	}
	if declared == "" {
		declared = sniffed
	}
	return &apiclient.File{Field: field, Name: name, ContentType: declared, Data: data}, nil
}

// Optional returns nil when the form has no file under field.
func (v Validator) Optional(form *multipart.Form, field string) (*apiclient.File, error) {
	if form == nil || len(form.File[field]) == 0 {
		return nil, nil
	}
	return v.Image(field, form.File[field][0])
}

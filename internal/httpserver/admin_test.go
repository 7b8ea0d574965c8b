package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/grocery_web/internal/upload"
)

func TestProductImage(t *testing.T) {
	t.Parallel()

	const boundary = "b0undary"
	part := "--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"name\"\r\n\r\nRice\r\n"

	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     error
	}{
		{name: "json body has no image", contentType: echo.MIMEApplicationJSON, body: `{"name":"Rice"}`},
		{name: "form without file", contentType: "multipart/form-data; boundary=" + boundary, body: part + "--" + boundary + "--\r\n"},
		{
			name:        "truncated upload",
			contentType: "multipart/form-data; boundary=" + boundary,
			body: part + "--" + boundary + "\r\n" +
				"Content-Disposition: form-data; name=\"image\"; filename=\"a.png\"\r\n" +
				"Content-Type: image/png\r\n\r\n\x89PNG",
			wantErr: errValidation,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/admin/products", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, tt.contentType)
			c := echo.New().NewContext(req, httptest.NewRecorder())

			h := &AdminHTTP{Uploads: upload.Validator{MaxBytes: 1 << 20}}
			file, err := h.productImage(c)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Nil(t, file)
		})
	}
}

func TestProductImage_TooLarge(t *testing.T) {
	t.Parallel()

	body := "--b\r\nContent-Disposition: form-data; name=\"image\"; filename=\"a.png\"\r\n\r\n" +
		strings.Repeat("x", 4096) + "\r\n--b--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/admin/products", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, "multipart/form-data; boundary=b")
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 1024)
	c := echo.New().NewContext(req, rec)

	h := &AdminHTTP{Uploads: upload.Validator{MaxBytes: 1 << 20}}
	_, err := h.productImage(c)
	require.ErrorIs(t, err, upload.ErrTooLarge)
}

package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEcho() *echo.Echo {
	cfg := DefaultConfig()
	cfg.SkipPaths = []string{"/health/*", "/payment/confirm"}

	e := echo.New()
	e.Use(Middleware(cfg))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/cart", ok)
	e.POST("/cart/items", ok)
	e.POST("/health/ready", ok)
	return e
}

func TestMiddleware_IssuesTokenOnSafeMethod(t *testing.T) {
	t.Parallel()

	e := newEcho()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Header().Get("X-CSRF-Token")
	require.NotEmpty(t, token)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "XSRF-TOKEN", cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)
}

func TestMiddleware_UnsafeMethods(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		origin string
		want   int
	}{
		{name: "matching token", header: "tok", origin: "http://example.com", want: http.StatusOK},
		{name: "missing token", header: "", origin: "http://example.com", want: http.StatusForbidden},
		{name: "wrong token", header: "other", origin: "http://example.com", want: http.StatusForbidden},
		{name: "foreign origin", header: "tok", origin: "http://evil.test", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEcho()
			req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
			req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: "tok"})
			req.Header.Set("Origin", tt.origin)
			if tt.header != "" {
				req.Header.Set("X-CSRF-Token", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMiddleware_SkipPrefix(t *testing.T) {
	t.Parallel()

	e := newEcho()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

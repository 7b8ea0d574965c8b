package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/logging"
	"github.com/Skotchmaster/grocery_web/internal/reviews"
	"github.com/Skotchmaster/grocery_web/internal/search"
)

type CatalogHTTP struct {
	API     *apiclient.Client
	Search  search.Searcher
	Reviews *reviews.Service
}

var sorts = map[string]bool{
	"":                      true,
	apiclient.SortNewest:    true,
	apiclient.SortPriceHigh: true,
	apiclient.SortPriceLow:  true,
	apiclient.SortPopular:   true,
}

func (h *CatalogHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.list")

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	q := search.Query{
		Text:     strings.TrimSpace(c.QueryParam("q")),
		Category: strings.TrimSpace(c.QueryParam("category")),
		Sort:     c.QueryParam("sort"),
		Page:     page,
		Size:     size,
	}
	if !sorts[q.Sort] {
		q.Sort = apiclient.SortNewest
	}

	res, err := h.Search.Search(ctx, q)
	if err != nil {
		return fail(c, l, "catalog_list_error", err, "Failed to load products")
	}
	return ok(c, http.StatusOK, res)
}

type productView struct {
	Product *apiclient.Product `json:"product"`
	Reviews []apiclient.Review `json:"reviews"`
}

// Get returns the product with its reviews. A failed review listing only
// leaves the list empty.
func (h *CatalogHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get")
	id := c.Param("id")

	p, err := h.API.Product(ctx, id)
	if err != nil {
		return fail(c, l, "catalog_get_error", err, "Failed to load product")
	}

	list, err := h.Reviews.ForProduct(ctx, id)
	if err != nil {
		l.Warn("catalog_reviews_error", "product_id", id, "error", err)
		list = []apiclient.Review{}
	}
	return ok(c, http.StatusOK, productView{Product: p, Reviews: list})
}

func (h *CatalogHTTP) Categories(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.categories")

	cats, err := h.API.Categories(ctx)
	if err != nil {
		return fail(c, l, "catalog_categories_error", err, "Failed to load categories")
	}
	if cats == nil {
		cats = []apiclient.Category{}
	}
	return ok(c, http.StatusOK, cats)
}

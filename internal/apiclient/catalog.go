package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	SortNewest    = "newest"
	SortPriceHigh = "price-high"
	SortPriceLow  = "price-low"
	SortPopular   = "popular"
)

type ProductQuery struct {
	Category string
	Sort     string
	Search   string
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Category    string
	Stock       int
	Unit        string
}

func (p ProductInput) fields() map[string]string {
	return map[string]string{
		"name":        p.Name,
		"description": p.Description,
		"price":       strconv.FormatFloat(p.Price, 'f', -1, 64),
		"category":    p.Category,
		"stock":       strconv.Itoa(p.Stock),
		"unit":        p.Unit,
	}
}

type productsResponse struct {
	Products []Product `json:"products"`
}

type productResponse struct {
	Product Product `json:"product"`
}

func (c *Client) assetURL(path string) string {
	if path == "" || c.AssetURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(c.AssetURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) withAssets(list []Product) []Product {
	for i := range list {
		list[i].Image = c.assetURL(list[i].Image)
	}
	return list
}

func (c *Client) SearchProducts(ctx context.Context, q ProductQuery) ([]Product, error) {
	var resp productsResponse
	if err := c.getJSON(ctx, Credentials{}, "/product/search", q.values(), &resp); err != nil {
		return nil, err
	}
	return c.withAssets(resp.Products), nil
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var resp struct {
		Categories []Category `json:"categories"`
	}
	if err := c.getJSON(ctx, Credentials{}, "/product/category", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

func (c *Client) Product(ctx context.Context, id string) (*Product, error) {
	var resp productResponse
	if err := c.getJSON(ctx, Credentials{}, pathID("/product/", id, ""), nil, &resp); err != nil {
		return nil, err
	}
	resp.Product.Image = c.assetURL(resp.Product.Image)
	return &resp.Product, nil
}

func (c *Client) AllProducts(ctx context.Context, cred Credentials) ([]Product, error) {
	var resp productsResponse
	if err := c.getJSON(ctx, cred, "/product/all", nil, &resp); err != nil {
		return nil, err
	}
	return c.withAssets(resp.Products), nil
}

func (c *Client) CreateProduct(ctx context.Context, cred Credentials, p ProductInput, image *File) (*Product, error) {
	if image != nil {
		image.Field = "image"
	}
	var resp productResponse
	if err := c.sendMultipart(ctx, cred, http.MethodPost, "/product/create", p.fields(), &resp, image); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

func (c *Client) UpdateProduct(ctx context.Context, cred Credentials, id string, p ProductInput, image *File) (*Product, error) {
	if image != nil {
		image.Field = "image"
	}
	var resp productResponse
	if err := c.sendMultipart(ctx, cred, http.MethodPut, pathID("/product/", id, ""), p.fields(), &resp, image); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

func (c *Client) DeleteProduct(ctx context.Context, cred Credentials, id string) error {
	return c.sendJSON(ctx, cred, http.MethodDelete, pathID("/product/", id, ""), nil, nil)
}

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/util"
)

// NewClient connects and checks the cluster answers before returning.
func NewClient(ctx context.Context, url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}
	return client, nil
}

// document is the indexed form of a product. The id lives in the document
// metadata, not in the source.
type document struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Price        float64   `json:"price"`
	CategoryID   string    `json:"category_id,omitempty"`
	CategoryName string    `json:"category_name,omitempty"`
	Stock        int       `json:"stock"`
	Unit         string    `json:"unit,omitempty"`
	Image        string    `json:"image,omitempty"`
	Rating       float64   `json:"rating"`
	CreatedAt    time.Time `json:"created_at"`
}

func toDocument(p apiclient.Product) document {
	return document{
		ID: p.ID, Name: p.Name, Description: p.Description, Price: p.Price,
		CategoryID: p.Category.ID, CategoryName: p.Category.Name,
		Stock: p.Stock, Unit: p.Unit, Image: p.Image, Rating: p.Rating, CreatedAt: p.CreatedAt,
	}
}

func (d document) product() apiclient.Product {
	return apiclient.Product{
		ID: d.ID, Name: d.Name, Description: d.Description, Price: d.Price,
		Category: apiclient.Category{ID: d.CategoryID, Name: d.CategoryName},
		Stock:    d.Stock, Unit: d.Unit, Image: d.Image, Rating: d.Rating, CreatedAt: d.CreatedAt,
	}
}

type ElasticSearcher struct {
	Client *elasticsearch.Client
	Index  string
}

func sortClause(sort string) []map[string]any {
	switch sort {
	case apiclient.SortPriceHigh:
		return []map[string]any{{"price": "desc"}}
	case apiclient.SortPriceLow:
		return []map[string]any{{"price": "asc"}}
	case apiclient.SortPopular:
		return []map[string]any{{"rating": "desc"}, {"created_at": "desc"}}
	case apiclient.SortNewest:
		return []map[string]any{{"created_at": "desc"}}
	default:
		return nil
	}
}

func buildQuery(q Query) map[string]any {
	from, size := util.Calculate(q.Page, q.Size)

	var must any = map[string]any{"match_all": map[string]any{}}
	if text := strings.TrimSpace(q.Text); text != "" {
		must = map[string]any{
			"multi_match": map[string]any{
				"query":     text,
				"fields":    []string{"name^2", "description"},
				"fuzziness": "AUTO",
			},
		}
	}
	boolQ := map[string]any{"must": must}
	if q.Category != "" {
		boolQ["filter"] = []any{map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{"term": map[string]any{"category_id": q.Category}},
					map[string]any{"term": map[string]any{"category_name": q.Category}},
				},
				"minimum_should_match": 1,
			},
		}}
	}

	body := map[string]any{
		"query":            map[string]any{"bool": boolQ},
		"from":             from,
		"size":             size,
		"track_total_hits": true,
	}
	if s := sortClause(q.Sort); s != nil {
		body["sort"] = s
	}
	return body
}

func (e ElasticSearcher) Search(ctx context.Context, q Query) (Result, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildQuery(q)); err != nil {
		return Result{}, fmt.Errorf("encode search: %w", err)
	}

	res, err := e.Client.Search(
		e.Client.Search.WithContext(ctx),
		e.Client.Search.WithIndex(e.Index),
		e.Client.Search.WithBody(&buf),
	)
	if err != nil {
		return Result{}, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return Result{}, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return Result{}, fmt.Errorf("decode search: %w", err)
	}

	prods := make([]apiclient.Product, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		prods[i] = hit.Source.product()
	}
	_, size := util.Calculate(q.Page, q.Size)
	return Result{
		Products: prods,
		Total:    r.Hits.Total.Value,
		Page:     max(q.Page, 1),
		Pages:    util.Pages(r.Hits.Total.Value, size),
		Source:   "elasticsearch",
	}, nil
}

// Package search answers product listing queries, from Elasticsearch when
// it is configured and from the backend's own search endpoint otherwise.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/logging"
	"github.com/Skotchmaster/grocery_web/internal/util"
)

type Query struct {
	Text     string
	Category string
	Sort     string
	Page     int
	Size     int
}

type Result struct {
	Products []apiclient.Product `json:"products"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	Pages    int                 `json:"pages"`
	Source   string              `json:"source"`
}

type Searcher interface {
	Search(ctx context.Context, q Query) (Result, error)
}

type ProductSource interface {
	SearchProducts(ctx context.Context, q apiclient.ProductQuery) ([]apiclient.Product, error)
}

// BackendSearcher pages the backend search result in memory.
type BackendSearcher struct {
	API ProductSource
}

func (b BackendSearcher) Search(ctx context.Context, q Query) (Result, error) {
	list, err := b.API.SearchProducts(ctx, apiclient.ProductQuery{Category: q.Category, Sort: q.Sort, Search: q.Text})
	if err != nil {
		return Result{}, fmt.Errorf("backend search: %w", err)
	}
	_, size := util.Calculate(q.Page, q.Size)
	return Result{
		Products: util.Window(list, q.Page, q.Size),
		Total:    int64(len(list)),
		Page:     max(q.Page, 1),
		Pages:    util.Pages(int64(len(list)), size),
		Source:   "backend",
	}, nil
}

// Fallback tries Primary and answers from Secondary when it fails.
type Fallback struct {
	Primary   Searcher
	Secondary Searcher
	Log       *slog.Logger
}

func (f Fallback) Search(ctx context.Context, q Query) (Result, error) {
	if f.Primary != nil {
		res, err := f.Primary.Search(ctx, q)
		if err == nil {
			return res, nil
		}
		l := f.Log
		if l == nil {
			l = logging.FromContext(ctx)
		}
		l.Warn("search_primary_error", "error", err)
	}
	return f.Secondary.Search(ctx, q)
}

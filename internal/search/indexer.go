package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esutil"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/logging"
)

// ProductIndexer keeps the search index in step with admin product changes.
type ProductIndexer interface {
	Put(ctx context.Context, p apiclient.Product) error
	Remove(ctx context.Context, id string) error
	Sync(ctx context.Context, products []apiclient.Product) (SyncStats, error)
}

type SyncStats struct {
	Indexed uint64 `json:"indexed"`
	Failed  uint64 `json:"failed"`
}

type Indexer struct {
	Client *elasticsearch.Client
	Index  string
	Log    *slog.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log *slog.Logger) *Indexer {
	if log == nil {
		log = logging.Discard()
	}
	return &Indexer{Client: client, Index: index, Log: log.With("component", "indexer")}
}

func (i *Indexer) Put(ctx context.Context, p apiclient.Product) error {
	if p.ID == "" {
		return fmt.Errorf("index product: empty id")
	}
	b, err := json.Marshal(toDocument(p))
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}
	res, err := i.Client.Index(i.Index, bytes.NewReader(b),
		i.Client.Index.WithContext(ctx),
		i.Client.Index.WithDocumentID(p.ID),
	)
	if err != nil {
		return fmt.Errorf("index product %s: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index product %s: %s", p.ID, res.Status())
	}
	return nil
}

func (i *Indexer) Remove(ctx context.Context, id string) error {
	res, err := i.Client.Delete(i.Index, id, i.Client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete product %s: %s", id, res.Status())
	}
	return nil
}

// Sync bulk indexes every product; individual failures are counted, not
// returned.
func (i *Indexer) Sync(ctx context.Context, products []apiclient.Product) (SyncStats, error) {
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     i.Client,
		Index:      i.Index,
		NumWorkers: 2,
	})
	if err != nil {
		return SyncStats{}, fmt.Errorf("bulk indexer: %w", err)
	}

	var failed atomic.Uint64
	for _, p := range products {
		b, err := json.Marshal(toDocument(p))
		if err != nil {
			failed.Add(1)
			continue
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: p.ID,
			Body:       bytes.NewReader(b),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, _ esutil.BulkIndexerResponseItem, err error) {
				i.Log.Warn("bulk_index_item_error", "product_id", item.DocumentID, "error", err)
			},
		})
		if err != nil {
			failed.Add(1)
			i.Log.Warn("bulk_index_add_error", "product_id", p.ID, "error", err)
		}
	}
	if err := bi.Close(ctx); err != nil {
		return SyncStats{}, fmt.Errorf("bulk index close: %w", err)
	}

	st := bi.Stats()
	out := SyncStats{Indexed: st.NumIndexed, Failed: st.NumFailed + failed.Load()}
	i.Log.Info("products reindexed", "indexed", out.Indexed, "failed", out.Failed)
	return out, nil
}

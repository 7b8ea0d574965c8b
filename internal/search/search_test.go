package search

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
)

type fakeES struct {
	mu       sync.Mutex
	paths    []string
	bodies   []string
	searchSt int
}

func (f *fakeES) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, string(body))
	status := f.searchSt
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		if status != 0 {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":"boom"}`)
			return
		}
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":13},"hits":[
			{"_id":"p1","_source":{"id":"p1","name":"Apple","price":50,"category_name":"fruit"}},
			{"_id":"p2","_source":{"id":"p2","name":"Apricot","price":80,"category_name":"fruit"}}]}}`)
	case strings.HasSuffix(r.URL.Path, "/_bulk"):
		var items []string
		sc := bufio.NewScanner(strings.NewReader(string(body)))
		for sc.Scan() {
			line := sc.Text()
			if strings.HasPrefix(line, `{"index"`) {
				var meta struct {
					Index struct {
						ID string `json:"_id"`
					} `json:"index"`
				}
				_ = json.Unmarshal([]byte(line), &meta)
				items = append(items, `{"index":{"_id":"`+meta.Index.ID+`","status":201}}`)
			}
		}
		_, _ = io.WriteString(w, `{"took":1,"errors":false,"items":[`+strings.Join(items, ",")+`]}`)
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"result":"not_found"}`)
	default:
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	}
}

func newES(t *testing.T) (*fakeES, *elasticsearch.Client) {
	t.Helper()
	f := &fakeES{}
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), srv.URL, "", "")
	require.NoError(t, err)
	return f, client
}

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	body := buildQuery(Query{Text: "aple", Category: "fruit", Sort: apiclient.SortPriceLow, Page: 2, Size: 5})
	b, err := json.Marshal(body)
	require.NoError(t, err)
	s := string(b)

	assert.Contains(t, s, `"multi_match"`)
	assert.Contains(t, s, `"fuzziness":"AUTO"`)
	assert.Contains(t, s, `"name^2"`)
	assert.Contains(t, s, `"category_name":"fruit"`)
	assert.Contains(t, s, `{"price":"asc"}`)
	assert.Equal(t, 5, body["from"])
	assert.Equal(t, 5, body["size"])

	empty, err := json.Marshal(buildQuery(Query{}))
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"match_all"`)
	assert.NotContains(t, string(empty), `"sort"`)
}

func TestElasticSearcher(t *testing.T) {
	t.Parallel()
	f, client := newES(t)

	res, err := ElasticSearcher{Client: client, Index: "products"}.Search(context.Background(), Query{Text: "ap", Size: 2})
	require.NoError(t, err)

	assert.Equal(t, "elasticsearch", res.Source)
	assert.EqualValues(t, 13, res.Total)
	assert.Equal(t, 7, res.Pages)
	require.Len(t, res.Products, 2)
	assert.Equal(t, "p1", res.Products[0].ID)
	assert.Equal(t, "fruit", res.Products[0].Category.Name)
	assert.Contains(t, f.paths, "POST /products/_search")
}

type stubSource struct {
	products []apiclient.Product
	err      error
	got      apiclient.ProductQuery
}

func (s *stubSource) SearchProducts(_ context.Context, q apiclient.ProductQuery) ([]apiclient.Product, error) {
	s.got = q
	return s.products, s.err
}

func TestBackendSearcher_Pages(t *testing.T) {
	t.Parallel()
	src := &stubSource{products: []apiclient.Product{{ID: "a"}, {ID: "b"}, {ID: "c"}}}

	res, err := BackendSearcher{API: src}.Search(context.Background(), Query{Text: "x", Category: "veg", Sort: "newest", Page: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, apiclient.ProductQuery{Category: "veg", Sort: "newest", Search: "x"}, src.got)
	assert.EqualValues(t, 3, res.Total)
	assert.Equal(t, 2, res.Pages)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "c", res.Products[0].ID)
}

func TestFallback(t *testing.T) {
	t.Parallel()
	f, client := newES(t)
	f.mu.Lock()
	f.searchSt = http.StatusServiceUnavailable
	f.mu.Unlock()

	src := &stubSource{products: []apiclient.Product{{ID: "a"}}}
	s := Fallback{Primary: ElasticSearcher{Client: client, Index: "products"}, Secondary: BackendSearcher{API: src}}

	res, err := s.Search(context.Background(), Query{Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, "backend", res.Source)

	src.err = errors.New("down")
	_, err = s.Search(context.Background(), Query{Text: "a"})
	require.Error(t, err)
}

func TestIndexer(t *testing.T) {
	t.Parallel()
	f, client := newES(t)
	ix := NewIndexer(client, "products", nil)
	ctx := context.Background()

	require.NoError(t, ix.Put(ctx, apiclient.Product{ID: "p1", Name: "Apple"}))
	require.Error(t, ix.Put(ctx, apiclient.Product{}))
	require.NoError(t, ix.Remove(ctx, "gone"), "missing documents are not an error")

	st, err := ix.Sync(ctx, []apiclient.Product{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.Indexed)
	assert.Zero(t, st.Failed)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Contains(t, f.paths, "PUT /products/_doc/p1")
	assert.Contains(t, f.paths, "DELETE /products/_doc/gone")
	for i, p := range f.paths {
		if p == "PUT /products/_doc/p1" {
			assert.NotContains(t, f.bodies[i], `"_id"`)
		}
	}
}

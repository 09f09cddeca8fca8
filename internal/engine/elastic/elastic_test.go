package elastic

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
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
)

// fakeCluster is a minimal stand-in for the Elasticsearch REST API.
type fakeCluster struct {
	mu         sync.Mutex
	exists     bool
	createBody map[string]any
	bulkIDs    []string
	updates    map[string]map[string]int64
	searchBody map[string]any
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodHead && path == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead && path == "recetas":
		if f.exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && path == "recetas":
		if f.exists {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":{"type":"resource_already_exists_exception","reason":"index [recetas] already exists"},"status":400}`)
			return
		}
		json.NewDecoder(r.Body).Decode(&f.createBody)
		f.exists = true
		io.WriteString(w, `{"acknowledged":true}`)
	case r.Method == http.MethodDelete && path == "recetas":
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`)
			return
		}
		f.exists = false
		io.WriteString(w, `{"acknowledged":true}`)
	case path == "recetas/_bulk":
		f.handleBulk(w, r)
	case strings.HasPrefix(path, "recetas/_update/"):
		id := strings.TrimPrefix(path, "recetas/_update/")
		if id == "missing" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"type":"document_missing_exception","reason":"document missing"},"status":404}`)
			return
		}
		var body struct {
			Doc map[string]int64 `json:"doc"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.updates[id] = body.Doc
		io.WriteString(w, `{"result":"updated"}`)
	case path == "recetas/_search":
		json.NewDecoder(r.Body).Decode(&f.searchBody)
		io.WriteString(w, `{"hits":{"total":{"value":1},"hits":[{"_id":"r1","_score":4.2,"_source":{"titulo":"pollo al ajo","likes":3,"display":{"titulo":"Pollo al ajo","ingredientes":["Pollo","Ajo"]}}}]}}`)
	case path == "recetas/_count":
		io.WriteString(w, `{"count":7}`)
	case path == "overloaded/_count":
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":{"type":"unavailable","reason":"busy"},"status":503}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"type":"index_not_found_exception","reason":"`+path+`"},"status":404}`)
	}
}

func (f *fakeCluster) handleBulk(w http.ResponseWriter, r *http.Request) {
	sc := bufio.NewScanner(r.Body)
	var items []string
	for sc.Scan() {
		var action map[string]map[string]string
		if err := json.Unmarshal(sc.Bytes(), &action); err != nil || action["index"] == nil {
			continue
		}
		id := action["index"]["_id"]
		f.bulkIDs = append(f.bulkIDs, id)
		if id == "bad" {
			items = append(items, `{"index":{"_id":"bad","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}}`)
			continue
		}
		items = append(items, `{"index":{"_id":"`+id+`","status":201}}`)
	}
	io.WriteString(w, `{"errors":true,"items":[`+strings.Join(items, ",")+`]}`)
}

func newTestClient(t *testing.T) (*Client, *fakeCluster) {
	t.Helper()
	fake := &fakeCluster{updates: map[string]map[string]int64{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := New(config.SearchConfig{Addresses: []string{srv.URL}, Index: "recetas", RequestTimeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, fake
}

func TestIndexLifecycle(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	exists, err := c.IndexExists(ctx, "recetas")
	if err != nil || exists {
		t.Fatalf("IndexExists = %v, %v; want false", exists, err)
	}
	if err := c.CreateIndex(ctx, "recetas", schema.Build([]string{"pollo, gallina, ave"})); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if _, ok := fake.createBody["settings"]; !ok {
		t.Errorf("create body = %v, want settings", fake.createBody)
	}
	err = c.CreateIndex(ctx, "recetas", schema.Build(nil))
	if !errors.Is(err, apperrors.ErrIndexExists) {
		t.Fatalf("second CreateIndex err = %v, want ErrIndexExists", err)
	}
	if err := c.DeleteIndex(ctx, "recetas"); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
	if err := c.DeleteIndex(ctx, "recetas"); !errors.Is(err, apperrors.ErrIndexNotFound) {
		t.Fatalf("DeleteIndex on missing index err = %v, want ErrIndexNotFound", err)
	}
}

func TestBulkIndexKeyedBySourceID(t *testing.T) {
	c, fake := newTestClient(t)
	docs := []schema.RecipeDocument{{ID: "r1", Title: "pollo"}, {ID: "bad"}, {ID: "r2"}}
	res, err := c.BulkIndex(context.Background(), "recetas", docs)
	if err != nil {
		t.Fatalf("BulkIndex: %v", err)
	}
	if res.Indexed != 2 || len(res.Failed) != 1 || res.Failed[0].ID != "bad" {
		t.Errorf("BulkIndex = %+v", res)
	}
	if strings.Join(fake.bulkIDs, ",") != "r1,bad,r2" {
		t.Errorf("bulk ids = %v", fake.bulkIDs)
	}
}

func TestUpdateCounters(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	if err := c.UpdateCounters(ctx, "recetas", "r1", map[string]int64{"likes": 4}); err != nil {
		t.Fatalf("UpdateCounters: %v", err)
	}
	if fake.updates["r1"]["likes"] != 4 {
		t.Errorf("updates = %v", fake.updates)
	}
	err := c.UpdateCounters(ctx, "recetas", "missing", map[string]int64{"likes": 1})
	if !errors.Is(err, apperrors.ErrRecipeNotFound) {
		t.Errorf("err = %v, want ErrRecipeNotFound", err)
	}
}

func TestSearch(t *testing.T) {
	c, fake := newTestClient(t)
	req := &query.Request{Query: &query.MatchAll{}, Size: 5}
	res, err := c.Search(context.Background(), "recetas", req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 || len(res.Hits) != 1 {
		t.Fatalf("result = %+v", res)
	}
	hit := res.Hits[0]
	if hit.ID != "r1" || hit.Document.ID != "r1" || hit.Document.Likes != 3 || hit.Document.Display.Title != "Pollo al ajo" {
		t.Errorf("hit = %+v", hit)
	}
	if fake.searchBody["size"] != 5.0 {
		t.Errorf("search body = %v", fake.searchBody)
	}
}

func TestCountAndUnavailable(t *testing.T) {
	c, _ := newTestClient(t)
	n, err := c.Count(context.Background(), "recetas")
	if err != nil || n != 7 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	_, err = c.Count(context.Background(), "overloaded")
	if !errors.Is(err, apperrors.ErrEngineUnavailable) {
		t.Errorf("err = %v, want ErrEngineUnavailable", err)
	}
}

func TestTransportFailure(t *testing.T) {
	c, err := New(config.SearchConfig{Addresses: []string{"http://127.0.0.1:1"}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.IndexExists(context.Background(), "recetas")
	if !apperrors.IsEngineFailure(err) {
		t.Errorf("err = %v, want engine failure", err)
	}
}

package service

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/engine/memory"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/etl"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/synonyms"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/resilience"
)

const testIndex = "recetas"

func queryConfig() config.QueryConfig {
	return config.QueryConfig{
		DefaultPageSize:    10,
		MaxPageSize:        20,
		RescoreWindow:      50,
		PhraseSlop:         3,
		QueryWeight:        0.7,
		RescoreQueryWeight: 1.8,
		LikesFactor:        1,
		ClicksFactor:       0.5,
		FallbackPlain:      true,
	}
}

func recipe(id, title string, likes int64, ingredients ...string) catalog.Recipe {
	r := catalog.Recipe{ID: id, Title: title, Likes: likes}
	for _, i := range ingredients {
		r.Ingredients = append(r.Ingredients, catalog.Ingredient{Name: i})
	}
	r.Steps = []catalog.Step{{Description: "Mezclar y cocinar."}}
	return r
}

func corpus() []catalog.Recipe {
	return []catalog.Recipe{
		recipe("r1", "Pollo al horno", 0, "pollo", "ajo", "sal"),
		recipe("r2", "Ensalada fresca", 0, "tomate", "lechuga"),
		recipe("r3", "Flan casero", 0, "azúcar", "huevo", "leche"),
		recipe("r4", "Sopa de verduras", 0, "zanahoria", "apio"),
	}
}

func newEngine(t *testing.T, recipes []catalog.Recipe) *memory.Engine {
	t.Helper()
	ctx := context.Background()
	var vocab []string
	docs := make([]schema.RecipeDocument, 0, len(recipes))
	for _, r := range recipes {
		vocab = append(vocab, r.IngredientNames()...)
		docs = append(docs, etl.BuildDocument(r))
	}
	rules := synonyms.Rules(synonyms.Default().ExpandVocabulary(vocab))
	eng := memory.New(memory.Options{})
	if err := eng.CreateIndex(ctx, testIndex, schema.Build(rules)); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.BulkIndex(ctx, testIndex, docs); err != nil {
		t.Fatal(err)
	}
	return eng
}

func newService(eng *memory.Engine, c *Cache) *Service {
	return New(testIndex, queryConfig(), Deps{
		Engine:   eng,
		Synonyms: synonyms.Default(),
		Cache:    c,
		Breaker:  resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour},
	})
}

func ids(r *Response) []string {
	out := make([]string, 0, len(r.Results))
	for _, it := range r.Results {
		out = append(out, it.ID)
	}
	return out
}

func TestSearchSynonymsAndAccents(t *testing.T) {
	svc := newService(newEngine(t, corpus()), nil)
	tests := []struct {
		query string
		first string
	}{
		{"gallina", "r1"},
		{"pollo", "r1"},
		{"Pollo al HORNO!", "r1"},
		{"jitomate", "r2"},
		{"azucar", "r3"},
		{"azúcar", "r3"},
		{"dulce", "r3"},
		{"sopa de verduras", "r4"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := svc.Search(context.Background(), tt.query, 0)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if resp.Degraded {
				t.Fatalf("degraded: %s", resp.Error)
			}
			got := ids(resp)
			if len(got) == 0 || got[0] != tt.first {
				t.Errorf("results = %v, want %s first", got, tt.first)
			}
			if resp.Query != tt.query {
				t.Errorf("Query = %q", resp.Query)
			}
		})
	}
}

func TestSearchResponseFields(t *testing.T) {
	recipes := corpus()
	recipes[0].PopupClicks = 4
	recipes[0].Likes = 2
	svc := newService(newEngine(t, recipes), nil)
	resp, err := svc.Search(context.Background(), "pollo", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("results = %v", ids(resp))
	}
	it := resp.Results[0]
	if it.Title != "Pollo al horno" || it.Likes != 2 || it.ViewClicks != 4 {
		t.Errorf("item = %+v", it)
	}
	if len(it.Ingredients) != 3 || it.Ingredients[0] != "pollo" || len(it.Steps) != 1 {
		t.Errorf("ingredients=%v steps=%v", it.Ingredients, it.Steps)
	}
}

func TestSearchAllTermsRequired(t *testing.T) {
	svc := newService(newEngine(t, corpus()), nil)
	resp, err := svc.Search(context.Background(), "pollo lechuga", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("results = %v, want none", ids(resp))
	}
}

func TestSearchPopularityBreaksTies(t *testing.T) {
	recipes := []catalog.Recipe{
		recipe("a", "Arroz con leche", 0, "arroz", "leche"),
		recipe("b", "Arroz con leche", 100, "arroz", "leche"),
	}
	svc := newService(newEngine(t, recipes), nil)
	resp, err := svc.Search(context.Background(), "arroz", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(resp); len(got) != 2 || got[0] != "b" {
		t.Errorf("results = %v, want b first", got)
	}
}

func TestSearchValidation(t *testing.T) {
	svc := newService(newEngine(t, corpus()), nil)
	ctx := context.Background()
	for _, q := range []string{"", "   ", "¿?!", string(make([]byte, 600))} {
		if _, err := svc.Search(ctx, q, 0); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("Search(%q) err = %v, want ErrValidation", q, err)
		}
	}
	if _, err := svc.Search(ctx, "pollo", -1); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("negative page size err = %v", err)
	}
	// Stopword-only queries still search.
	if _, err := svc.Search(ctx, "de la", 0); err != nil {
		t.Errorf("stopword query: %v", err)
	}
}

func TestSearchPageSize(t *testing.T) {
	var recipes []catalog.Recipe
	for i := 0; i < 30; i++ {
		recipes = append(recipes, recipe(string(rune('a'+i%26))+string(rune('a'+i/26)), "Pan", 0, "harina"))
	}
	svc := newService(newEngine(t, recipes), nil)
	ctx := context.Background()
	for _, tt := range []struct{ size, want int }{{0, 10}, {5, 5}, {500, 20}} {
		resp, err := svc.Search(ctx, "pan", tt.size)
		if err != nil {
			t.Fatal(err)
		}
		if len(resp.Results) != tt.want {
			t.Errorf("size %d: got %d results, want %d", tt.size, len(resp.Results), tt.want)
		}
		if resp.Total != 30 {
			t.Errorf("Total = %d, want 30", resp.Total)
		}
	}
}

func TestSearchDegradesWhenEngineDown(t *testing.T) {
	eng := newEngine(t, corpus())
	svc := newService(eng, nil)
	eng.SetFault(func(string) error { return apperrors.ErrEngineUnavailable })

	for i := 0; i < 3; i++ {
		resp, err := svc.Search(context.Background(), "pollo", 0)
		if err != nil {
			t.Fatalf("Search returned error: %v", err)
		}
		if !resp.Degraded || resp.Error == "" || resp.Results == nil || len(resp.Results) != 0 {
			t.Fatalf("resp = %+v, want degraded empty", resp)
		}
	}
	if svc.BreakerState() != resilience.StateOpen {
		t.Errorf("breaker = %v, want open", svc.BreakerState())
	}
}

func TestSearchMissingIndexDegrades(t *testing.T) {
	eng := newEngine(t, corpus())
	if err := eng.DeleteIndex(context.Background(), testIndex); err != nil {
		t.Fatal(err)
	}
	svc := newService(eng, nil)
	resp, err := svc.Search(context.Background(), "pollo", 0)
	if err != nil || !resp.Degraded {
		t.Fatalf("resp=%+v err=%v", resp, err)
	}
	if svc.BreakerState() != resilience.StateClosed {
		t.Error("missing index must not trip the breaker")
	}
}

func TestSearchFallsBackToPlainQuery(t *testing.T) {
	eng := newEngine(t, corpus())
	svc := newService(eng, nil)
	var calls atomic.Int32
	eng.SetFault(func(op string) error {
		if op == "search" && calls.Add(1) == 1 {
			return apperrors.Validationf("unknown field [function_score]")
		}
		return nil
	})
	resp, err := svc.Search(context.Background(), "pollo", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Fallback || resp.Degraded {
		t.Fatalf("resp = %+v, want fallback", resp)
	}
	if got := ids(resp); len(got) == 0 || got[0] != "r1" {
		t.Errorf("results = %v", got)
	}
}

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestSearchCache(t *testing.T) {
	eng := newEngine(t, corpus())
	store := &memStore{data: map[string]string{}}
	c := NewCache(store, time.Minute, nil)
	svc := newService(eng, c)
	ctx := context.Background()

	if _, err := svc.Search(ctx, "pollo", 0); err != nil {
		t.Fatal(err)
	}
	// Served from cache even with the engine down; stopwords and case do
	// not change the key.
	eng.SetFault(func(string) error { return apperrors.ErrEngineUnavailable })
	resp, err := svc.Search(ctx, "el POLLO", 0)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Degraded || len(resp.Results) == 0 || resp.Query != "el POLLO" {
		t.Fatalf("resp = %+v, want cached results", resp)
	}
	if hits, _ := c.Stats(); hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}

	// Degraded responses are not cached.
	if resp, _ := svc.Search(ctx, "tomate", 0); !resp.Degraded {
		t.Fatal("expected degraded response")
	}
	eng.SetFault(nil)
	if resp, _ := svc.Search(ctx, "tomate", 0); resp.Degraded {
		t.Error("degraded response was served from cache")
	}
}

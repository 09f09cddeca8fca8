package rebuild

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/engine/memory"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/etl"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/synonyms"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
)

const testIndex = "recetas"

type fakeCatalog struct {
	recipes []catalog.Recipe
	gate    chan struct{}
}

func (f *fakeCatalog) IngredientVocabulary(ctx context.Context) ([]string, error) {
	if f.gate != nil {
		<-f.gate
	}
	var out []string
	for _, r := range f.recipes {
		out = append(out, r.IngredientNames()...)
	}
	return out, nil
}

func (f *fakeCatalog) Stream(ctx context.Context, batchSize int, fn func([]catalog.Recipe) error) error {
	for i := 0; i < len(f.recipes); i += batchSize {
		if err := fn(f.recipes[i:min(i+batchSize, len(f.recipes))]); err != nil {
			return err
		}
	}
	return nil
}

type countingInvalidator struct{ calls atomic.Int32 }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls.Add(1)
	return nil
}

func testRecipes() []catalog.Recipe {
	return []catalog.Recipe{
		{ID: "r1", Title: "Pollo al horno", Ingredients: []catalog.Ingredient{{Name: "pollo"}, {Name: "ajo"}}},
		{ID: "r2", Title: "Ensalada", Ingredients: []catalog.Ingredient{{Name: "tomate"}, {Name: "lechuga"}}},
		{ID: "r3", Title: "Flan", Ingredients: []catalog.Ingredient{{Name: "azúcar"}, {Name: "huevo"}}},
	}
}

func testConfig() config.RebuildConfig {
	return config.RebuildConfig{
		ConfirmAttempts: 5,
		ConfirmInterval: time.Millisecond,
		BatchSize:       2,
		RetryAttempts:   3,
	}
}

func newCoordinator(eng *memory.Engine, src *fakeCatalog, inv Invalidator) *Coordinator {
	cfg := testConfig()
	return NewCoordinator(testIndex, cfg, Deps{
		Engine:      eng,
		Vocabulary:  src,
		Exporter:    etl.NewLoader(src, eng, testIndex, cfg.BatchSize, nil),
		Synonyms:    synonyms.Default(),
		Invalidator: inv,
	})
}

func search(t *testing.T, eng *memory.Engine, text string) []string {
	t.Helper()
	res, err := eng.Search(context.Background(), testIndex, &query.Request{
		Query: &query.MultiMatch{
			Query:    text,
			Fields:   []query.Field{{Name: schema.FieldContent}},
			Type:     query.TypeBestFields,
			Operator: query.OperatorOr,
		},
		Size: 10,
	})
	if err != nil {
		t.Fatalf("Search(%q): %v", text, err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestRebuildFromScratch(t *testing.T) {
	eng := memory.New(memory.Options{})
	src := &fakeCatalog{recipes: testRecipes()}
	inv := &countingInvalidator{}
	c := newCoordinator(eng, src, inv)

	res, err := c.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if res.DocumentsIndexed != 3 {
		t.Errorf("DocumentsIndexed = %d, want 3", res.DocumentsIndexed)
	}
	// pollo, ajo, tomate and azúcar appear in the corpus.
	if res.SynonymRules != 4 {
		t.Errorf("SynonymRules = %d, want 4", res.SynonymRules)
	}
	if n, _ := eng.Count(context.Background(), testIndex); n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
	if ids := search(t, eng, "gallina"); len(ids) != 1 || ids[0] != "r1" {
		t.Errorf("search gallina = %v, want [r1]", ids)
	}
	if inv.calls.Load() != 1 {
		t.Errorf("invalidations = %d, want 1", inv.calls.Load())
	}
	st := c.Status()
	if st.Running || st.LastResult == nil || st.LastResult.DocumentsIndexed != 3 || st.LastError != "" {
		t.Errorf("status = %+v", st)
	}
}

func TestRebuildReplacesStaleDocuments(t *testing.T) {
	eng := memory.New(memory.Options{DeleteLag: 2})
	src := &fakeCatalog{recipes: testRecipes()}
	c := newCoordinator(eng, src, nil)
	if _, err := c.Rebuild(context.Background()); err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}

	src.recipes = src.recipes[:1]
	res, err := c.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}
	if res.DocumentsIndexed != 1 {
		t.Errorf("DocumentsIndexed = %d, want 1", res.DocumentsIndexed)
	}
	if n, _ := eng.Count(context.Background(), testIndex); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestRebuildConfirmDeletedExhausted(t *testing.T) {
	eng := memory.New(memory.Options{DeleteLag: 100})
	src := &fakeCatalog{recipes: testRecipes()}
	c := newCoordinator(eng, src, nil)
	if _, err := c.Rebuild(context.Background()); err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}

	_, err := c.Rebuild(context.Background())
	var rerr *RebuildError
	if !errors.As(err, &rerr) || rerr.Step != StepConfirmDeleted {
		t.Fatalf("err = %v, want RebuildError at %s", err, StepConfirmDeleted)
	}
	if !errors.Is(err, apperrors.ErrRebuildInconsistency) {
		t.Errorf("err = %v, want ErrRebuildInconsistency", err)
	}
	if st := c.Status(); st.LastError == "" {
		t.Error("status should carry the last error")
	}
}

func TestRebuildRetriesTransientEngineFailures(t *testing.T) {
	eng := memory.New(memory.Options{})
	var failures atomic.Int32
	failures.Store(2)
	eng.SetFault(func(op string) error {
		if op == "create_index" && failures.Add(-1) >= 0 {
			return apperrors.ErrEngineUnavailable
		}
		return nil
	})
	c := newCoordinator(eng, &fakeCatalog{recipes: testRecipes()}, nil)
	if _, err := c.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
}

func TestRebuildEngineDown(t *testing.T) {
	eng := memory.New(memory.Options{})
	eng.SetFault(func(string) error { return apperrors.ErrEngineUnavailable })
	c := newCoordinator(eng, &fakeCatalog{recipes: testRecipes()}, nil)

	_, err := c.Rebuild(context.Background())
	var rerr *RebuildError
	if !errors.As(err, &rerr) || rerr.Step != StepCheckExists {
		t.Fatalf("err = %v, want RebuildError at %s", err, StepCheckExists)
	}
	if !apperrors.IsEngineFailure(err) {
		t.Errorf("err = %v, want engine failure in chain", err)
	}
}

func TestRebuildLoadFailureReportsPartialCount(t *testing.T) {
	eng := memory.New(memory.Options{})
	var bulks atomic.Int32
	eng.SetFault(func(op string) error {
		if op == "bulk_index" && bulks.Add(1) > 1 {
			return apperrors.ErrEngineUnavailable
		}
		return nil
	})
	c := newCoordinator(eng, &fakeCatalog{recipes: testRecipes()}, nil)

	res, err := c.Rebuild(context.Background())
	var rerr *RebuildError
	if !errors.As(err, &rerr) || rerr.Step != StepLoad {
		t.Fatalf("err = %v, want RebuildError at %s", err, StepLoad)
	}
	if res.DocumentsIndexed != 2 {
		t.Errorf("DocumentsIndexed = %d, want 2", res.DocumentsIndexed)
	}
}

func TestRebuildRejectsConcurrentRun(t *testing.T) {
	eng := memory.New(memory.Options{})
	src := &fakeCatalog{recipes: testRecipes(), gate: make(chan struct{})}
	c := newCoordinator(eng, src, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = c.Rebuild(context.Background())
	}()

	deadline := time.Now().Add(time.Second)
	for !c.Status().Running && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	_, err := c.Rebuild(context.Background())
	close(src.gate)
	wg.Wait()

	if !errors.Is(err, apperrors.ErrRebuildInProgress) {
		t.Errorf("second Rebuild err = %v, want ErrRebuildInProgress", err)
	}
	if firstErr != nil {
		t.Errorf("first Rebuild: %v", firstErr)
	}
}

type fakeLeases struct {
	mu       sync.Mutex
	owners   map[string]string
	renewals atomic.Int32
}

func (f *fakeLeases) AcquireLease(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.owners[key]; held {
		return false, nil
	}
	f.owners[key] = token
	return true, nil
}

func (f *fakeLeases) RenewLease(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owners[key] != token {
		return false, nil
	}
	f.renewals.Add(1)
	return true, nil
}

func (f *fakeLeases) ReleaseLease(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owners[key] == token {
		delete(f.owners, key)
	}
	return nil
}

func TestRedisLocker(t *testing.T) {
	store := &fakeLeases{owners: make(map[string]string)}
	l := NewRedisLocker(store, time.Minute)

	release, err := l.Acquire(context.Background(), "rebuild:recetas")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := l.Acquire(context.Background(), "rebuild:recetas"); !errors.Is(err, apperrors.ErrRebuildInProgress) {
		t.Fatalf("second Acquire err = %v, want ErrRebuildInProgress", err)
	}
	release()
	release2, err := l.Acquire(context.Background(), "rebuild:recetas")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

func TestRedisLockerRenewsWhileHeld(t *testing.T) {
	store := &fakeLeases{owners: make(map[string]string)}
	l := NewRedisLocker(store, 30*time.Millisecond)

	release, err := l.Acquire(context.Background(), "rebuild:recetas")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for store.renewals.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := store.renewals.Load(); n < 2 {
		t.Fatalf("renewals = %d, want at least 2", n)
	}

	release()
	release()
	after := store.renewals.Load()
	time.Sleep(60 * time.Millisecond)
	if n := store.renewals.Load(); n != after {
		t.Errorf("renewals continued after release: %d then %d", after, n)
	}
	if len(store.owners) != 0 {
		t.Errorf("owners = %v, want lease released", store.owners)
	}
}

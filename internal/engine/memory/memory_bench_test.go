package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/query"
)

var benchTitles = []string{
	"pollo al ajo", "arroz con pollo", "sopa de verduras", "tarta de manzana",
	"ensalada de tomate", "pan de ajo", "flan de vainilla", "caldo de gallina",
}

func loadBench(b *testing.B, numDocs int) *Engine {
	b.Helper()
	e := New(Options{})
	ctx := context.Background()
	if err := e.CreateIndex(ctx, "recetas", schema.Build([]string{"pollo, gallina, ave", "tomate, jitomate"})); err != nil {
		b.Fatal(err)
	}
	docs := make([]schema.RecipeDocument, numDocs)
	for i := range docs {
		title := benchTitles[i%len(benchTitles)]
		docs[i] = doc(fmt.Sprintf("r%d", i), title, "sal aceite "+title, "cocinar "+title+" a fuego lento")
		docs[i].Likes = int64(i % 50)
	}
	if _, err := e.BulkIndex(ctx, "recetas", docs); err != nil {
		b.Fatal(err)
	}
	return e
}

// BenchmarkSearch measures ranked search latency for growing index sizes.
func BenchmarkSearch(b *testing.B) {
	for _, numDocs := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("docs_%d", numDocs), func(b *testing.B) {
			e := loadBench(b, numDocs)
			req := &query.Request{Query: match("gallina ajo"), Size: 10}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := e.Search(context.Background(), "recetas", req); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSearchParallel measures concurrent search throughput.
func BenchmarkSearchParallel(b *testing.B) {
	e := loadBench(b, 1000)
	req := &query.Request{Query: match("arroz pollo"), Size: 10}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := e.Search(context.Background(), "recetas", req); err != nil {
				b.Fatal(err)
			}
		}
	})
}

package parser

import "testing"

// BenchmarkParse measures query parsing latency for queries of varying
// complexity.
func BenchmarkParse(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"single", "pollo"},
		{"stopwords", "sopa de verduras con arroz"},
		{"accents", "azúcar morena y piña"},
		{"punctuation", "¡pollo, ajo & limón!"},
		{"long", "arroz con pollo ajo cebolla tomate pimiento caldo de gallina y especias"},
	}
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = Parse(q.query)
			}
		})
	}
}

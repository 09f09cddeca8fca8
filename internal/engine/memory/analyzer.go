package memory

import (
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
)

// Token is one analyzed term at a position. Synonyms share the position of
// the term they were expanded from.
type Token struct {
	Term     string
	Position int
}

// synonymFilter injects every equivalent of a token at the same position.
// Only single-word rule members take part; multi-word members such as
// "diente de ajo" are skipped.
type synonymFilter struct {
	groups map[string][]string
}

func newSynonymFilter(rules []string) *synonymFilter {
	f := &synonymFilter{groups: make(map[string][]string)}
	for _, rule := range rules {
		var members []string
		for _, m := range strings.Split(rule, ",") {
			m = strings.ToLower(strings.TrimSpace(m))
			if m == "" || strings.ContainsAny(m, " \t") {
				continue
			}
			members = append(members, m)
		}
		for _, a := range members {
			for _, b := range members {
				if a != b && !containsString(f.groups[a], b) {
					f.groups[a] = append(f.groups[a], b)
				}
			}
		}
	}
	return f
}

// Filter implements analysis.TokenFilter.
func (f *synonymFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	if len(f.groups) == 0 {
		return input
	}
	out := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		out = append(out, tok)
		for _, syn := range f.groups[string(tok.Term)] {
			out = append(out, &analysis.Token{
				Term:     []byte(syn),
				Start:    tok.Start,
				End:      tok.End,
				Position: tok.Position,
				Type:     tok.Type,
			})
		}
	}
	return out
}

// newAnalyzer mirrors the engine-side recipe analyzer: unicode word
// tokenizer, lowercase, synonyms, light Spanish stemmer.
func newAnalyzer(def *schema.Definition) analysis.Analyzer {
	return &analysis.DefaultAnalyzer{
		Tokenizer: unicode.NewUnicodeTokenizer(),
		TokenFilters: []analysis.TokenFilter{
			lowercase.NewLowerCaseFilter(),
			newSynonymFilter(def.SynonymRules),
			es.NewSpanishLightStemmerFilter(),
		},
	}
}

// analyze runs a over text and returns its tokens.
func analyze(a analysis.Analyzer, text string) []Token {
	if text == "" {
		return nil
	}
	stream := a.Analyze([]byte(text))
	tokens := make([]Token, 0, len(stream))
	for _, t := range stream {
		tokens = append(tokens, Token{Term: string(t.Term), Position: t.Position})
	}
	return tokens
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Package parser cleans free-text recipe queries: it normalizes the text and
// drops Spanish filler words ("quiero una receta con ...") so only the
// meaningful terms reach the expander.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/normalizer"
)

// MaxQueryLength caps the raw query accepted by Parse, in bytes.
const MaxQueryLength = 512

// stopWords holds normalized filler words. Accented forms fold onto these
// through the normalizer ("después" -> "despues").
var stopWords = toSet(`
	quiero una unas un unos que ke
	tenga tengo tienes tiene tener reseta receta
	el la los las y o u
	de del en con para por se al a mi tu su
	como mas menos sin pero si
	me te le lo nos os les
	este esta estos estas es son fue era ser
	hoy ahora durante desde hasta antes despues luego tambien
	algo mucho muchos poco pocos cada todos todas
	donde cuando cual cuales porque
`)

func toSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

// QueryPlan is the parsed form of a user query.
type QueryPlan struct {
	RawQuery string
	// Terms are the normalized terms left after stopword removal. When every
	// term is a stopword the full normalized term list is kept instead.
	Terms []string
	// Cleaned is Terms joined by single spaces; it feeds the phrase rescore.
	Cleaned string
}

// IsStopWord reports whether the normalized term is filler.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}

// Parse builds the QueryPlan for query.
func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		RawQuery: query,
		Terms:    make([]string, 0),
	}
	all := normalizer.Terms(query)
	if len(all) == 0 {
		return plan
	}
	for _, t := range all {
		if !IsStopWord(t) {
			plan.Terms = append(plan.Terms, t)
		}
	}
	if len(plan.Terms) == 0 {
		plan.Terms = all
	}
	plan.Cleaned = strings.Join(plan.Terms, " ")
	return plan
}

// Empty reports whether the plan has nothing to search for.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Package expander turns cleaned query terms into the synonym-aware boolean
// query: one multi_match per term (term OR its synonyms, fuzzy), all terms
// required.
package expander

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/synonyms"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/query"
)

// maxPhraseTerms bounds how many consecutive terms may form one synonym key
// such as "diente de ajo".
const maxPhraseTerms = 3

// SearchFields are the boosted fields every recipe match runs against.
func SearchFields() []query.Field {
	return []query.Field{
		{Name: schema.FieldTitle, Boost: 3},
		{Name: schema.FieldIngredients, Boost: 2},
		{Name: schema.FieldDescription, Boost: 1},
		{Name: schema.FieldSteps, Boost: 1},
		{Name: schema.FieldContent, Boost: 1},
	}
}

// Expander builds expanded queries from a synonym table.
type Expander struct {
	table  *synonyms.Table
	fields []query.Field
}

// New creates an Expander backed by table.
func New(table *synonyms.Table) *Expander {
	return &Expander{table: table, fields: SearchFields()}
}

// Units groups terms into expansion units. Consecutive terms that together
// form a known multi-word synonym key are kept as one unit.
func (e *Expander) Units(terms []string) []string {
	units := make([]string, 0, len(terms))
	for i := 0; i < len(terms); {
		n := 1
		for size := min(maxPhraseTerms, len(terms)-i); size > 1; size-- {
			if len(e.table.SynonymsOf(strings.Join(terms[i:i+size], " "))) > 0 {
				n = size
				break
			}
		}
		units = append(units, strings.Join(terms[i:i+n], " "))
		i += n
	}
	return units
}

// Expand returns bool{must: [...]} with one multi_match per unit. Within a
// unit the term and its synonyms are alternatives (operator or, fuzziness
// AUTO); across units every clause must match.
func (e *Expander) Expand(terms []string) query.Query {
	units := e.Units(terms)
	must := make([]query.Query, 0, len(units))
	for _, unit := range units {
		alternatives := append([]string{unit}, e.table.SynonymsOf(unit)...)
		must = append(must, &query.MultiMatch{
			Query:     strings.Join(alternatives, " "),
			Fields:    e.fields,
			Type:      query.TypeBestFields,
			Fuzziness: query.FuzzinessAuto,
			Operator:  query.OperatorOr,
		})
	}
	return &query.Bool{Must: must}
}

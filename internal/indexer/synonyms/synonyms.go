// Package synonyms holds the ingredient synonym table shared by the index
// schema (analyzer-level folding) and the query expander. A Table is
// immutable once built; keys and values are stored normalized.
package synonyms

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/normalizer"
	"gopkg.in/yaml.v3"
)

// defaultEntries is the curated ingredient table. Every pair is listed in
// both directions.
var defaultEntries = map[string][]string{
	"pollo":   {"gallina", "ave"},
	"gallina": {"pollo", "ave"},
	"ave":     {"pollo", "gallina"},

	"ajo":           {"diente de ajo", "ajo fresco"},
	"diente de ajo": {"ajo", "ajo fresco"},
	"ajo fresco":    {"ajo", "diente de ajo"},

	"azúcar":          {"azucar", "dulce", "azúcar refinado"},
	"azucar":          {"azúcar", "dulce", "azúcar refinado"},
	"dulce":           {"azúcar", "azucar"},
	"azúcar refinado": {"azúcar", "azucar"},

	"tomate":      {"jitomate", "tomate rojo"},
	"jitomate":    {"tomate", "tomate rojo"},
	"tomate rojo": {"tomate", "jitomate"},
}

// Table maps a normalized term to its ordered, de-duplicated synonyms.
type Table struct {
	entries map[string][]string
}

// Pair is a one-way synonym relation whose reverse is missing.
type Pair struct {
	From string
	To   string
}

// fileFormat is the on-disk YAML layout accepted by Load.
type fileFormat struct {
	Synonyms map[string][]string `yaml:"synonyms"`
}

// New builds a Table from raw entries. Keys and values are normalized; keys
// that collide after normalization are merged, and a term is never listed as
// its own synonym.
func New(raw map[string][]string) *Table {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make(map[string][]string, len(raw))
	for _, k := range keys {
		key := normalizer.Normalize(k)
		if key == "" {
			continue
		}
		for _, v := range raw[k] {
			val := normalizer.Normalize(v)
			if val == "" || val == key || contains(entries[key], val) {
				continue
			}
			entries[key] = append(entries[key], val)
		}
		if _, ok := entries[key]; !ok {
			entries[key] = nil
		}
	}
	return &Table{entries: entries}
}

// Default returns the built-in ingredient table.
func Default() *Table {
	return New(defaultEntries)
}

// Load reads a YAML synonym file of the form
//
//	synonyms:
//	  pollo: [gallina, ave]
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading synonym file %s: %w", path, err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing synonym file %s: %w", path, err)
	}
	if len(f.Synonyms) == 0 {
		return nil, fmt.Errorf("synonym file %s has no entries", path)
	}
	return New(f.Synonyms), nil
}

// Open loads the table at path, or the built-in table when path is empty,
// and logs every one-way relation it contains.
func Open(path string) (*Table, error) {
	t := Default()
	source := "built-in"
	if path != "" {
		var err error
		if t, err = Load(path); err != nil {
			return nil, err
		}
		source = path
	}
	logger := slog.Default().With("component", "synonyms")
	for _, p := range t.Asymmetries() {
		logger.Warn("one-way synonym", "from", p.From, "to", p.To)
	}
	logger.Info("synonym table loaded", "source", source, "terms", t.Len())
	return t, nil
}

// SynonymsOf returns the synonyms of term, or an empty slice when the term is
// unknown. The lookup normalizes term first.
func (t *Table) SynonymsOf(term string) []string {
	syns := t.entries[normalizer.Normalize(term)]
	out := make([]string, len(syns))
	copy(out, syns)
	return out
}

// Len returns the number of canonical terms.
func (t *Table) Len() int {
	return len(t.entries)
}

// ExpandVocabulary returns the synonym mapping restricted to the given terms.
// Terms without synonyms are omitted.
func (t *Table) ExpandVocabulary(terms []string) map[string][]string {
	out := make(map[string][]string)
	for _, term := range terms {
		key := normalizer.Normalize(term)
		if syns := t.entries[key]; len(syns) > 0 {
			out[key] = t.SynonymsOf(key)
		}
	}
	return out
}

// Rules renders a mapping as engine synonym rules, one
// "canonical, syn1, syn2" line per key, sorted by key.
func Rules(mapping map[string][]string) []string {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rules := make([]string, 0, len(keys))
	for _, k := range keys {
		if len(mapping[k]) == 0 {
			continue
		}
		rules = append(rules, strings.Join(append([]string{k}, mapping[k]...), ", "))
	}
	return rules
}

// Asymmetries lists every relation a -> b for which b -> a is missing,
// sorted for stable output.
func (t *Table) Asymmetries() []Pair {
	var pairs []Pair
	for from, syns := range t.entries {
		for _, to := range syns {
			if !contains(t.entries[to], from) {
				pairs = append(pairs, Pair{From: from, To: to})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].From != pairs[j].From {
			return pairs[i].From < pairs[j].From
		}
		return pairs[i].To < pairs[j].To
	})
	return pairs
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

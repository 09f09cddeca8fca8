// Package schema describes the recipe index: its analysis chain, field
// mappings, and the document shape written into it.
package schema

import (
	"encoding/json"
)

// Field names of the indexed recipe document.
const (
	FieldTitle          = "titulo"
	FieldIngredients    = "ingredientes_texto"
	FieldDescription    = "descripcion"
	FieldSteps          = "pasos"
	FieldContent        = "contenido_total"
	FieldCalories       = "calorias"
	FieldServings       = "porciones"
	FieldPrepTime       = "tiempo_preparacion_min"
	FieldLikes          = "likes"
	FieldPopupClicks    = "popup_clicks"
	FieldDisplay        = "display"
	SynonymFilterName   = "recipe_synonyms"
	StemmerFilterName   = "spanish_light_stemmer"
	StemmerLanguage     = "light_spanish"
	AnalyzerName        = "recipe_analyzer"
	StandardTokenizer   = "standard"
	LowercaseFilterName = "lowercase"
)

// FieldType is the engine mapping type of a field.
type FieldType string

const (
	TypeText    FieldType = "text"
	TypeInteger FieldType = "integer"
	TypeObject  FieldType = "object"
)

// Field is a single mapping entry.
type Field struct {
	Name     string
	Type     FieldType
	Analyzer string
	Boost    float64
	// Disabled marks an object stored in _source but never parsed or indexed.
	Disabled bool
}

// Definition is the full index definition. It is rebuilt wholesale whenever
// the synonym vocabulary changes; SynonymRules is a snapshot taken at build
// time.
type Definition struct {
	SynonymRules []string
	Tokenizer    string
	// Filters is the ordered token filter chain of the recipe analyzer.
	Filters []string
	Fields  []Field
}

// Build returns the recipe index definition with the given synonym rules
// (each "canonical, syn1, syn2").
func Build(rules []string) *Definition {
	snapshot := make([]string, len(rules))
	copy(snapshot, rules)
	return &Definition{
		SynonymRules: snapshot,
		Tokenizer:    StandardTokenizer,
		Filters:      []string{LowercaseFilterName, SynonymFilterName, StemmerFilterName},
		Fields: []Field{
			{Name: FieldTitle, Type: TypeText, Analyzer: AnalyzerName, Boost: 3},
			{Name: FieldIngredients, Type: TypeText, Analyzer: AnalyzerName, Boost: 2},
			{Name: FieldDescription, Type: TypeText, Analyzer: AnalyzerName, Boost: 1.5},
			{Name: FieldSteps, Type: TypeText, Analyzer: AnalyzerName, Boost: 1},
			{Name: FieldContent, Type: TypeText, Analyzer: AnalyzerName, Boost: 1},
			{Name: FieldCalories, Type: TypeInteger},
			{Name: FieldServings, Type: TypeInteger},
			{Name: FieldPrepTime, Type: TypeInteger},
			{Name: FieldLikes, Type: TypeInteger},
			{Name: FieldPopupClicks, Type: TypeInteger},
			{Name: FieldDisplay, Type: TypeObject, Disabled: true},
		},
	}
}

// Field returns the mapping for name.
func (d *Definition) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// TextFields returns the analyzed text fields in mapping order.
func (d *Definition) TextFields() []Field {
	var out []Field
	for _, f := range d.Fields {
		if f.Type == TypeText {
			out = append(out, f)
		}
	}
	return out
}

type mappingProperty struct {
	Type     FieldType `json:"type"`
	Analyzer string    `json:"analyzer,omitempty"`
	Boost    float64   `json:"boost,omitempty"`
	Enabled  *bool     `json:"enabled,omitempty"`
}

// MarshalJSON renders the create-index request body.
func (d *Definition) MarshalJSON() ([]byte, error) {
	rules := d.SynonymRules
	if rules == nil {
		rules = []string{}
	}
	props := make(map[string]mappingProperty, len(d.Fields))
	for _, f := range d.Fields {
		p := mappingProperty{Type: f.Type, Analyzer: f.Analyzer}
		if f.Type == TypeText && f.Boost != 1 {
			p.Boost = f.Boost
		}
		if f.Disabled {
			disabled := false
			p.Enabled = &disabled
		}
		props[f.Name] = p
	}
	body := map[string]any{
		"settings": map[string]any{
			"analysis": map[string]any{
				"filter": map[string]any{
					SynonymFilterName: map[string]any{
						"type":     "synonym",
						"synonyms": rules,
					},
					StemmerFilterName: map[string]any{
						"type":     "stemmer",
						"language": StemmerLanguage,
					},
				},
				"analyzer": map[string]any{
					AnalyzerName: map[string]any{
						"type":      "custom",
						"tokenizer": d.Tokenizer,
						"filter":    d.Filters,
					},
				},
			},
		},
		"mappings": map[string]any{
			"properties": props,
		},
	}
	return json.Marshal(body)
}

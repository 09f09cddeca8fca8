// Package query is a small typed subset of the search engine query DSL. Each
// node marshals to the engine's JSON form and can be walked by the in-process
// engine with a type switch.
package query

import (
	"encoding/json"
	"strconv"
)

// Operators, multi_match types, and function_score modes used by the recipe
// query path.
const (
	OperatorOr  = "or"
	OperatorAnd = "and"

	TypeBestFields = "best_fields"
	TypePhrase     = "phrase"

	FuzzinessAuto = "AUTO"

	ModeSum       = "sum"
	ModifierLog1p = "log1p"
	ModifierNone  = "none"
)

// Query is any node of the DSL.
type Query interface {
	json.Marshaler
	isQuery()
}

// Field is a field reference with an optional boost.
type Field struct {
	Name  string
	Boost float64
}

// String renders the field as "name^boost", omitting a unit boost.
func (f Field) String() string {
	if f.Boost == 0 || f.Boost == 1 {
		return f.Name
	}
	return f.Name + "^" + strconv.FormatFloat(f.Boost, 'f', -1, 64)
}

// EffectiveBoost returns the boost, treating zero as 1.
func (f Field) EffectiveBoost() float64 {
	if f.Boost == 0 {
		return 1
	}
	return f.Boost
}

// MultiMatch runs a match over several boosted fields.
type MultiMatch struct {
	Query     string
	Fields    []Field
	Type      string
	Fuzziness string
	Operator  string
	Slop      int
}

func (*MultiMatch) isQuery() {}

// MarshalJSON implements json.Marshaler.
func (m *MultiMatch) MarshalJSON() ([]byte, error) {
	fields := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		fields[i] = f.String()
	}
	body := map[string]any{
		"query":  m.Query,
		"fields": fields,
	}
	if m.Type != "" {
		body["type"] = m.Type
	}
	if m.Fuzziness != "" {
		body["fuzziness"] = m.Fuzziness
	}
	if m.Operator != "" {
		body["operator"] = m.Operator
	}
	if m.Slop > 0 {
		body["slop"] = m.Slop
	}
	return json.Marshal(map[string]any{"multi_match": body})
}

// Bool combines clauses: every Must clause has to match; Should clauses only
// add score.
type Bool struct {
	Must   []Query
	Should []Query
}

func (*Bool) isQuery() {}

// MarshalJSON implements json.Marshaler.
func (b *Bool) MarshalJSON() ([]byte, error) {
	body := map[string]any{}
	if len(b.Must) > 0 {
		body["must"] = b.Must
	}
	if len(b.Should) > 0 {
		body["should"] = b.Should
	}
	return json.Marshal(map[string]any{"bool": body})
}

// MatchAll matches every document with a constant score of 1.
type MatchAll struct{}

func (*MatchAll) isQuery() {}

// MarshalJSON implements json.Marshaler.
func (*MatchAll) MarshalJSON() ([]byte, error) {
	return []byte(`{"match_all":{}}`), nil
}

// FieldValueFactor scores a document by one of its numeric fields:
// modifier(factor * value), with Missing used when the field is absent.
type FieldValueFactor struct {
	Field    string
	Factor   float64
	Modifier string
	Missing  float64
}

// MarshalJSON implements json.Marshaler.
func (f FieldValueFactor) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"field_value_factor": map[string]any{
			"field":    f.Field,
			"factor":   f.Factor,
			"modifier": f.Modifier,
			"missing":  f.Missing,
		},
	})
}

// FunctionScore adds popularity functions to the score of an inner query.
type FunctionScore struct {
	Query     Query
	Functions []FieldValueFactor
	ScoreMode string
	BoostMode string
}

func (*FunctionScore) isQuery() {}

// MarshalJSON implements json.Marshaler.
func (f *FunctionScore) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"function_score": map[string]any{
			"query":      f.Query,
			"functions":  f.Functions,
			"score_mode": f.ScoreMode,
			"boost_mode": f.BoostMode,
		},
	})
}

// Rescore re-ranks the top WindowSize hits:
// score = QueryWeight*primary + RescoreQueryWeight*secondary.
type Rescore struct {
	WindowSize         int
	Query              Query
	QueryWeight        float64
	RescoreQueryWeight float64
}

// MarshalJSON implements json.Marshaler.
func (r *Rescore) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"window_size": r.WindowSize,
		"query": map[string]any{
			"rescore_query":        r.Query,
			"query_weight":         r.QueryWeight,
			"rescore_query_weight": r.RescoreQueryWeight,
		},
	})
}

// Request is a complete search request body.
type Request struct {
	Query   Query
	Rescore *Rescore
	Size    int
}

// MarshalJSON implements json.Marshaler.
func (r *Request) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"query": r.Query,
		"size":  r.Size,
	}
	if r.Rescore != nil {
		body["rescore"] = r.Rescore
	}
	return json.Marshal(body)
}

// Package relevance composes the final recipe search request: the expanded
// match query wrapped in popularity scoring, followed by a phrase rescore
// over the top window.
package relevance

import (
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/expander"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/config"
)

// Options tunes the composed request.
type Options struct {
	Size               int
	RescoreWindow      int
	PhraseSlop         int
	QueryWeight        float64
	RescoreQueryWeight float64
	LikesFactor        float64
	ClicksFactor       float64
}

// OptionsFromConfig maps the query configuration onto Options with the
// given page size.
func OptionsFromConfig(cfg config.QueryConfig, size int) Options {
	return Options{
		Size:               size,
		RescoreWindow:      cfg.RescoreWindow,
		PhraseSlop:         cfg.PhraseSlop,
		QueryWeight:        cfg.QueryWeight,
		RescoreQueryWeight: cfg.RescoreQueryWeight,
		LikesFactor:        cfg.LikesFactor,
		ClicksFactor:       cfg.ClicksFactor,
	}
}

// DefaultOptions returns the production tuning with a page of ten.
func DefaultOptions() Options {
	return Options{
		Size:               10,
		RescoreWindow:      50,
		PhraseSlop:         3,
		QueryWeight:        0.7,
		RescoreQueryWeight: 1.8,
		LikesFactor:        1,
		ClicksFactor:       0.5,
	}
}

// Compose wraps expanded in a function_score that adds
// log1p(likes) and log1p(0.5*popup_clicks) to the match score (sum/sum), then
// rescores the top window with a sloppy phrase match on raw.
func Compose(expanded query.Query, raw string, opts Options) *query.Request {
	req := &query.Request{
		Query: &query.FunctionScore{
			Query: expanded,
			Functions: []query.FieldValueFactor{
				{Field: schema.FieldLikes, Factor: opts.LikesFactor, Modifier: query.ModifierLog1p, Missing: 0},
				{Field: schema.FieldPopupClicks, Factor: opts.ClicksFactor, Modifier: query.ModifierLog1p, Missing: 0},
			},
			ScoreMode: query.ModeSum,
			BoostMode: query.ModeSum,
		},
		Size: opts.Size,
	}
	if opts.RescoreWindow > 0 && raw != "" {
		req.Rescore = &query.Rescore{
			WindowSize: opts.RescoreWindow,
			Query: &query.MultiMatch{
				Query:  raw,
				Fields: expander.SearchFields(),
				Type:   query.TypePhrase,
				Slop:   opts.PhraseSlop,
			},
			QueryWeight:        opts.QueryWeight,
			RescoreQueryWeight: opts.RescoreQueryWeight,
		}
	}
	return req
}

// Plain builds the fallback request: a single fuzzy multi_match on raw
// without synonym expansion, popularity scoring, or rescoring.
func Plain(raw string, size int) *query.Request {
	return &query.Request{
		Query: &query.MultiMatch{
			Query:     raw,
			Fields:    expander.SearchFields(),
			Type:      query.TypeBestFields,
			Fuzziness: query.FuzzinessAuto,
			Operator:  query.OperatorOr,
		},
		Size: size,
	}
}

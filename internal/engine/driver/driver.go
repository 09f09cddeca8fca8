// Package driver opens the search engine named in the configuration.
package driver

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/engine/elastic"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/engine/memory"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/config"
)

const (
	Elasticsearch = "elasticsearch"
	Memory        = "memory"
)

// Open returns the configured engine with every call bounded by
// cfg.RequestTimeout.
func Open(cfg config.SearchConfig) (engine.Engine, error) {
	var eng engine.Engine
	switch cfg.Driver {
	case Elasticsearch:
		c, err := elastic.New(cfg)
		if err != nil {
			return nil, err
		}
		eng = c
	case Memory:
		eng = memory.New(memory.Options{})
	default:
		return nil, fmt.Errorf("unknown search driver %q", cfg.Driver)
	}
	return engine.Bounded(eng, cfg.RequestTimeout), nil
}

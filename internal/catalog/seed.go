package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeRecipes reads a JSON array of recipe records.
func DecodeRecipes(r io.Reader) ([]Recipe, error) {
	var recipes []Recipe
	if err := json.NewDecoder(r).Decode(&recipes); err != nil {
		return nil, fmt.Errorf("decoding recipes: %w", err)
	}
	for i := range recipes {
		if err := ValidateID("recipe", recipes[i].ID); err != nil {
			return nil, fmt.Errorf("recipe #%d: %w", i, err)
		}
	}
	return recipes, nil
}

// Seed upserts every recipe read from r and returns how many were written.
// Counter values in the file only apply to recipes that did not exist yet.
func (s *Store) Seed(ctx context.Context, r io.Reader) (int, error) {
	recipes, err := DecodeRecipes(r)
	if err != nil {
		return 0, err
	}
	for i := range recipes {
		if err := s.Upsert(ctx, &recipes[i]); err != nil {
			return i, err
		}
	}
	s.logger.Info("recipes seeded", "count", len(recipes))
	return len(recipes), nil
}

package catalog

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
)

func TestDecodeRecipes(t *testing.T) {
	in := `[{"id":"r1","titulo":"Pollo al ajo","ingredientes":[{"nombre":"Pollo"}],
		"pasos":[{"descripcion":"Dorar."}],"calorias":450,"porciones":4,
		"tiempo_preparacion":"1 hora","likes":3}]`
	recipes, err := DecodeRecipes(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(recipes) != 1 {
		t.Fatalf("len = %d, want 1", len(recipes))
	}
	r := recipes[0]
	if r.Title != "Pollo al ajo" || r.Ingredients[0].Name != "Pollo" || r.Steps[0].Description != "Dorar." {
		t.Errorf("recipe = %+v", r)
	}
	if r.Calories != 450 || r.Servings != 4 || r.PrepTime != "1 hora" || r.Likes != 3 {
		t.Errorf("scalars = %+v", r)
	}
}

func TestDecodeRecipesRejectsBadInput(t *testing.T) {
	if _, err := DecodeRecipes(strings.NewReader(`{"id":"r1"}`)); err == nil {
		t.Error("expected error for a non-array document")
	}
	_, err := DecodeRecipes(strings.NewReader(`[{"id":"ok"},{"id":""}]`))
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

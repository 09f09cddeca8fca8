// Package catalog is the authoritative recipe store. It owns recipe records,
// their popularity counters, and per-user like and view history in
// PostgreSQL; the search index only holds a derived projection.
package catalog

// Ingredient is one entry of a recipe's ingredient list.
type Ingredient struct {
	Name string `json:"nombre"`
}

// Step is one preparation step.
type Step struct {
	Description string `json:"descripcion"`
}

// Recipe is a source-store recipe record.
type Recipe struct {
	ID          string       `json:"id"`
	Title       string       `json:"titulo"`
	Ingredients []Ingredient `json:"ingredientes"`
	Steps       []Step       `json:"pasos"`
	Calories    int          `json:"calorias"`
	Servings    int          `json:"porciones"`
	PrepTime    string       `json:"tiempo_preparacion"`
	Views       int64        `json:"views"`
	PopupClicks int64        `json:"popup_clicks"`
	Likes       int64        `json:"likes"`
}

// IngredientNames returns the raw ingredient names in order.
func (r *Recipe) IngredientNames() []string {
	out := make([]string, 0, len(r.Ingredients))
	for _, i := range r.Ingredients {
		out = append(out, i.Name)
	}
	return out
}

// StepDescriptions returns the raw step descriptions in order.
func (r *Recipe) StepDescriptions() []string {
	out := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		out = append(out, s.Description)
	}
	return out
}

// LikeResult reports the like counter after a like or unlike call and
// whether the call changed anything.
type LikeResult struct {
	Likes   int64
	Changed bool
}

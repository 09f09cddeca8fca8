package schema

// RecipeDocument is the projection of a source recipe written to the index.
// Text fields hold normalized text; Display keeps the raw strings for
// response mapping and is never analyzed.
type RecipeDocument struct {
	ID          string  `json:"-"`
	Title       string  `json:"titulo"`
	Ingredients string  `json:"ingredientes_texto"`
	Description string  `json:"descripcion"`
	Steps       string  `json:"pasos"`
	Content     string  `json:"contenido_total"`
	Calories    int     `json:"calorias"`
	Servings    int     `json:"porciones"`
	PrepMinutes int     `json:"tiempo_preparacion_min"`
	Likes       int64   `json:"likes"`
	PopupClicks int64   `json:"popup_clicks"`
	Display     Display `json:"display"`
}

// Display carries the unnormalized recipe text returned to clients.
type Display struct {
	Title       string   `json:"titulo"`
	Ingredients []string `json:"ingredientes"`
	Description string   `json:"descripcion"`
	Steps       []string `json:"pasos"`
}

// Text returns the value of a text field by name.
func (d *RecipeDocument) Text(field string) string {
	switch field {
	case FieldTitle:
		return d.Title
	case FieldIngredients:
		return d.Ingredients
	case FieldDescription:
		return d.Description
	case FieldSteps:
		return d.Steps
	case FieldContent:
		return d.Content
	}
	return ""
}

// Number returns the value of a numeric field by name. The boolean is false
// for unknown fields.
func (d *RecipeDocument) Number(field string) (float64, bool) {
	switch field {
	case FieldCalories:
		return float64(d.Calories), true
	case FieldServings:
		return float64(d.Servings), true
	case FieldPrepTime:
		return float64(d.PrepMinutes), true
	case FieldLikes:
		return float64(d.Likes), true
	case FieldPopupClicks:
		return float64(d.PopupClicks), true
	}
	return 0, false
}

// SetCounter applies a partial counter update.
func (d *RecipeDocument) SetCounter(field string, value int64) bool {
	switch field {
	case FieldLikes:
		d.Likes = value
	case FieldPopupClicks:
		d.PopupClicks = value
	default:
		return false
	}
	return true
}

package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/normalizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/pkg/postgres"
)

//go:embed schema.sql
var schemaSQL string

const maxIDLength = 128

const recipeColumns = `id, titulo, ingredientes, pasos, calorias, porciones,
	tiempo_preparacion, views, popup_clicks, likes`

// Store reads and mutates recipes in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a recipe store on top of db.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "catalog"),
	}
}

// Migrate creates the recipe tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("applying catalog schema: %w", err)
	}
	return nil
}

// ValidateID rejects identifiers that cannot name a recipe or user.
func ValidateID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.Validationf("%s id is required", kind)
	}
	if len(id) > maxIDLength {
		return apperrors.Validationf("%s id exceeds %d characters", kind, maxIDLength)
	}
	if strings.ContainsAny(id, "/\x00") {
		return apperrors.Validationf("%s id contains invalid characters", kind)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipe(row rowScanner) (Recipe, error) {
	var (
		r           Recipe
		ingredients []byte
		steps       []byte
	)
	if err := row.Scan(&r.ID, &r.Title, &ingredients, &steps, &r.Calories, &r.Servings,
		&r.PrepTime, &r.Views, &r.PopupClicks, &r.Likes); err != nil {
		return Recipe{}, err
	}
	if err := json.Unmarshal(ingredients, &r.Ingredients); err != nil {
		return Recipe{}, fmt.Errorf("decoding ingredientes of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(steps, &r.Steps); err != nil {
		return Recipe{}, fmt.Errorf("decoding pasos of %s: %w", r.ID, err)
	}
	return r, nil
}

// Upsert inserts or replaces a recipe's content. Counters are left untouched
// on conflict.
func (s *Store) Upsert(ctx context.Context, r *Recipe) error {
	if err := ValidateID("recipe", r.ID); err != nil {
		return err
	}
	ingredients, err := json.Marshal(nonNilIngredients(r.Ingredients))
	if err != nil {
		return fmt.Errorf("encoding ingredientes: %w", err)
	}
	steps, err := json.Marshal(nonNilSteps(r.Steps))
	if err != nil {
		return fmt.Errorf("encoding pasos: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx, `
		INSERT INTO recipes (id, titulo, ingredientes, pasos, calorias, porciones, tiempo_preparacion, views, popup_clicks, likes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			titulo = EXCLUDED.titulo,
			ingredientes = EXCLUDED.ingredientes,
			pasos = EXCLUDED.pasos,
			calorias = EXCLUDED.calorias,
			porciones = EXCLUDED.porciones,
			tiempo_preparacion = EXCLUDED.tiempo_preparacion`,
		r.ID, r.Title, ingredients, steps, r.Calories, r.Servings, r.PrepTime,
		r.Views, r.PopupClicks, r.Likes,
	)
	if err != nil {
		return fmt.Errorf("upserting recipe %s: %w", r.ID, err)
	}
	return nil
}

// Stream walks every recipe in id order through a server-side cursor inside
// one read-only transaction, fetching batchSize rows at a time. fn is called
// once per batch; an error from fn stops the scan.
func (s *Store) Stream(ctx context.Context, batchSize int, fn func([]Recipe) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	opts := &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}
	return s.db.InTxWith(ctx, opts, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DECLARE recipe_export NO SCROLL CURSOR FOR SELECT `+recipeColumns+` FROM recipes ORDER BY id`); err != nil {
			return fmt.Errorf("declaring recipe cursor: %w", err)
		}
		fetch := fmt.Sprintf("FETCH %d FROM recipe_export", batchSize)
		for {
			batch, err := fetchBatch(ctx, tx, fetch, batchSize)
			if err != nil {
				return err
			}
			if len(batch) == 0 {
				break
			}
			if err := fn(batch); err != nil {
				return err
			}
			if len(batch) < batchSize {
				break
			}
		}
		if _, err := tx.ExecContext(ctx, `CLOSE recipe_export`); err != nil {
			return fmt.Errorf("closing recipe cursor: %w", err)
		}
		return nil
	})
}

func fetchBatch(ctx context.Context, tx *sql.Tx, fetch string, size int) ([]Recipe, error) {
	rows, err := tx.QueryContext(ctx, fetch)
	if err != nil {
		return nil, fmt.Errorf("fetching recipes: %w", err)
	}
	defer rows.Close()
	batch := make([]Recipe, 0, size)
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning recipe row: %w", err)
		}
		batch = append(batch, r)
	}
	return batch, rows.Err()
}

// IngredientVocabulary returns the sorted, de-duplicated set of normalized
// ingredient names present in the corpus.
func (s *Store) IngredientVocabulary(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT DISTINCT elem->>'nombre'
		FROM recipes, jsonb_array_elements(ingredientes) AS elem
		WHERE jsonb_typeof(ingredientes) = 'array'`)
	if err != nil {
		return nil, fmt.Errorf("querying ingredient vocabulary: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning ingredient: %w", err)
		}
		if n := normalizer.Normalize(name.String); n != "" {
			seen[n] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ingredients: %w", err)
	}
	vocab := make([]string, 0, len(seen))
	for n := range seen {
		vocab = append(vocab, n)
	}
	sort.Strings(vocab)
	return vocab, nil
}

// Like records that userID likes recipeID. A repeated like by the same user
// is a no-op and reports Changed=false.
func (s *Store) Like(ctx context.Context, recipeID, userID string) (LikeResult, error) {
	return s.toggleLike(ctx, recipeID, userID, true)
}

// Unlike removes userID's like. Unliking a recipe the user never liked is a
// no-op.
func (s *Store) Unlike(ctx context.Context, recipeID, userID string) (LikeResult, error) {
	return s.toggleLike(ctx, recipeID, userID, false)
}

func (s *Store) toggleLike(ctx context.Context, recipeID, userID string, like bool) (LikeResult, error) {
	if err := ValidateID("recipe", recipeID); err != nil {
		return LikeResult{}, err
	}
	if err := ValidateID("user", userID); err != nil {
		return LikeResult{}, err
	}
	var res LikeResult
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		// Row lock serializes concurrent toggles of one recipe.
		if err := tx.QueryRowContext(ctx,
			`SELECT likes FROM recipes WHERE id = $1 FOR UPDATE`, recipeID,
		).Scan(&res.Likes); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.Newf(apperrors.ErrRecipeNotFound, http.StatusNotFound, "recipe %s", recipeID)
			}
			return fmt.Errorf("locking recipe %s: %w", recipeID, err)
		}

		var (
			result sql.Result
			err    error
			update string
		)
		if like {
			result, err = tx.ExecContext(ctx,
				`INSERT INTO recipe_likes (recipe_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				recipeID, userID)
			update = `UPDATE recipes SET likes = likes + 1 WHERE id = $1 RETURNING likes`
		} else {
			result, err = tx.ExecContext(ctx,
				`DELETE FROM recipe_likes WHERE recipe_id = $1 AND user_id = $2`,
				recipeID, userID)
			update = `UPDATE recipes SET likes = GREATEST(likes - 1, 0) WHERE id = $1 RETURNING likes`
		}
		if err != nil {
			return fmt.Errorf("updating like set of %s: %w", recipeID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("reading affected rows: %w", err)
		}
		if affected == 0 {
			return nil
		}
		if err := tx.QueryRowContext(ctx, update, recipeID).Scan(&res.Likes); err != nil {
			return fmt.Errorf("updating like counter of %s: %w", recipeID, err)
		}
		res.Changed = true
		return nil
	})
	if err != nil {
		return LikeResult{}, err
	}
	s.logger.Debug("like toggled",
		"recipe_id", recipeID,
		"like", like,
		"changed", res.Changed,
		"likes", res.Likes,
	)
	return res, nil
}

// RecordView increments both the view and popup-click counters and appends
// the view to the user's history. It returns the new popup-click count.
func (s *Store) RecordView(ctx context.Context, recipeID, userID string) (int64, error) {
	if err := ValidateID("recipe", recipeID); err != nil {
		return 0, err
	}
	if err := ValidateID("user", userID); err != nil {
		return 0, err
	}
	var clicks int64
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`UPDATE recipes SET views = views + 1, popup_clicks = popup_clicks + 1
			 WHERE id = $1 RETURNING popup_clicks`, recipeID,
		).Scan(&clicks)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Newf(apperrors.ErrRecipeNotFound, http.StatusNotFound, "recipe %s", recipeID)
		}
		if err != nil {
			return fmt.Errorf("incrementing views of %s: %w", recipeID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recipe_views (recipe_id, user_id) VALUES ($1, $2)`, recipeID, userID,
		); err != nil {
			return fmt.Errorf("recording view history: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return clicks, nil
}

// ViewHistory returns up to limit distinct recipes userID has viewed, most
// recent first.
func (s *Store) ViewHistory(ctx context.Context, userID string, limit int) ([]string, error) {
	if err := ValidateID("user", userID); err != nil {
		return nil, err
	}
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT recipe_id FROM recipe_views
		WHERE user_id = $1
		GROUP BY recipe_id
		ORDER BY MAX(viewed_at) DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying view history: %w", err)
	}
	defer rows.Close()
	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning view history: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nonNilIngredients(in []Ingredient) []Ingredient {
	if in == nil {
		return []Ingredient{}
	}
	return in
}

func nonNilSteps(in []Step) []Step {
	if in == nil {
		return []Step{}
	}
	return in
}

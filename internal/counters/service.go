package counters

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/catalog"
)

// Store is the source-of-truth side of the counters.
type Store interface {
	Like(ctx context.Context, recipeID, userID string) (catalog.LikeResult, error)
	Unlike(ctx context.Context, recipeID, userID string) (catalog.LikeResult, error)
	RecordView(ctx context.Context, recipeID, userID string) (int64, error)
	ViewHistory(ctx context.Context, userID string, limit int) ([]string, error)
}

// Bounds for ViewHistory's limit.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Service applies user interactions to the store and then hands the new
// counter values to the Syncer.
type Service struct {
	store  Store
	syncer Syncer
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(store Store, syncer Syncer) *Service {
	return &Service{
		store:  store,
		syncer: syncer,
		logger: slog.Default().With("component", "counters"),
	}
}

// RecordLike marks the recipe liked by userID. Repeating it is a no-op.
func (s *Service) RecordLike(ctx context.Context, recipeID, userID string) (catalog.LikeResult, error) {
	if err := validate(recipeID, userID); err != nil {
		return catalog.LikeResult{}, err
	}
	res, err := s.store.Like(ctx, recipeID, userID)
	if err != nil {
		return res, err
	}
	if res.Changed {
		s.syncer.OnLikeChanged(ctx, recipeID, res.Likes)
	}
	return res, nil
}

// RecordUnlike removes userID's like. Unliking a recipe the user never liked
// is a no-op.
func (s *Service) RecordUnlike(ctx context.Context, recipeID, userID string) (catalog.LikeResult, error) {
	if err := validate(recipeID, userID); err != nil {
		return catalog.LikeResult{}, err
	}
	res, err := s.store.Unlike(ctx, recipeID, userID)
	if err != nil {
		return res, err
	}
	if res.Changed {
		s.syncer.OnLikeChanged(ctx, recipeID, res.Likes)
	}
	return res, nil
}

// RecordView counts a popup view and returns the recipe's new click count.
func (s *Service) RecordView(ctx context.Context, recipeID, userID string) (int64, error) {
	if err := validate(recipeID, userID); err != nil {
		return 0, err
	}
	clicks, err := s.store.RecordView(ctx, recipeID, userID)
	if err != nil {
		return 0, err
	}
	s.syncer.OnViewChanged(ctx, recipeID, clicks)
	s.logger.Debug("view recorded", "recipe_id", recipeID, "popup_clicks", clicks)
	return clicks, nil
}

// ViewHistory lists the recipes userID viewed, most recent first. A
// non-positive limit means DefaultHistoryLimit; larger ones are capped.
func (s *Service) ViewHistory(ctx context.Context, userID string, limit int) ([]string, error) {
	if err := catalog.ValidateID("user", userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.store.ViewHistory(ctx, userID, min(limit, MaxHistoryLimit))
}

func validate(recipeID, userID string) error {
	if err := catalog.ValidateID("recipe", recipeID); err != nil {
		return err
	}
	return catalog.ValidateID("user", userID)
}

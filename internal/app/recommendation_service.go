package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"listwise/internal/affinity"
	"listwise/internal/factor"
	"listwise/internal/platform/metrics"
	"listwise/internal/ranking"
	"listwise/internal/repository"
	"listwise/internal/stem"
)

// RecommendationOptions is the model and selection policy of the service.
type RecommendationOptions struct {
	Params factor.Params
	Init   factor.Init
	// MinUsers is the fewest users a community suggestion is computed from.
	MinUsers int

	HistoryThreshold   float64
	CommunityThreshold float64
	MaxResults         int
	// MinHistoryLists is the fewest lists a history suggestion is computed from.
	MinHistoryLists int64
}

type RecommendationService struct {
	records  *repository.AffinityRepository
	stems    *repository.StemRepository
	lists    *ListService
	cache    PredictionCache
	selector *ranking.Selector
	opts     RecommendationOptions
	log      *zap.Logger
}

func NewRecommendationService(
	records *repository.AffinityRepository,
	stems *repository.StemRepository,
	lists *ListService,
	cache PredictionCache,
	normalizer stem.Normalizer,
	opts RecommendationOptions,
	log *zap.Logger,
) *RecommendationService {
	return &RecommendationService{
		records:  records,
		stems:    stems,
		lists:    lists,
		cache:    cache,
		selector: ranking.NewSelector(normalizer),
		opts:     opts,
		log:      log.Named("recommendations"),
	}
}

// PastRecommendations ranks the user's own positive scores for the category.
func (s *RecommendationService) PastRecommendations(ctx context.Context, userID, category string) ([]ranking.Suggestion, error) {
	if !validUserID(userID) || category == "" {
		return nil, ErrInvalidInput
	}
	record, err := s.records.Load(ctx, userID, category)
	if err != nil {
		return nil, err
	}
	return ranking.Rank(record.Scores(), ranking.Positive), nil
}

// CollaborativeRecommendations ranks every item of the category by its predicted
// score for the user. A user with no record in the category gets ErrNoHistory.
func (s *RecommendationService) CollaborativeRecommendations(ctx context.Context, userID, category string) ([]ranking.Suggestion, error) {
	if !validUserID(userID) || category == "" {
		return nil, ErrInvalidInput
	}
	pred, err := s.Predictions(ctx, category)
	if err != nil {
		return nil, err
	}
	row, ok := pred.Row(userID)
	if !ok {
		return nil, ErrNoHistory
	}
	return ranking.Rank(row, nil), nil
}

// Select filters candidates by exclusion and threshold.
func (s *RecommendationService) Select(candidates []ranking.Suggestion, exclude []string, threshold float64) ([]ranking.Suggestion, error) {
	return s.selector.Select(candidates, exclude, threshold)
}

// Predictions returns the reconstruction for a category, served from the cache
// while no write has touched the category since it was stored. A prediction is
// cached only against the version read before computing it.
func (s *RecommendationService) Predictions(ctx context.Context, category string) (*factor.Prediction, error) {
	if s.cache == nil {
		return s.compute(ctx, category)
	}

	version, err := s.cache.Version(ctx, category)
	if err != nil {
		s.log.Warn("read prediction version failed", zap.String("category", category), zap.Error(err))
		metrics.PredictionCacheMissesTotal.Inc()
		return s.compute(ctx, category)
	}
	pred, ok, err := s.cache.GetPrediction(ctx, category)
	if err != nil {
		s.log.Warn("read prediction cache failed", zap.String("category", category), zap.Error(err))
	}
	if ok {
		metrics.PredictionCacheHitsTotal.Inc()
		return pred, nil
	}
	metrics.PredictionCacheMissesTotal.Inc()

	pred, err = s.compute(ctx, category)
	if err != nil {
		return nil, err
	}
	s.store(ctx, category, pred, version)
	return pred, nil
}

// Warm recomputes the prediction of a category and stores it.
func (s *RecommendationService) Warm(ctx context.Context, category string) error {
	var version int64
	if s.cache != nil {
		v, err := s.cache.Version(ctx, category)
		if err != nil {
			return err
		}
		version = v
	}
	pred, err := s.compute(ctx, category)
	if errors.Is(err, factor.ErrEmptyInput) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}
	s.store(ctx, category, pred, version)
	return nil
}

func (s *RecommendationService) store(ctx context.Context, category string, pred *factor.Prediction, version int64) {
	stored, err := s.cache.SetPrediction(ctx, category, pred, version)
	if err != nil {
		s.log.Warn("write prediction cache failed", zap.String("category", category), zap.Error(err))
		return
	}
	if !stored {
		s.log.Debug("prediction outdated by a concurrent write, not cached", zap.String("category", category))
	}
}

// SuggestFromHistory suggests items from the user's own history for a list,
// once the user has kept enough lists of that kind.
func (s *RecommendationService) SuggestFromHistory(ctx context.Context, userID, listName string) ([]ranking.Suggestion, error) {
	category := s.lists.Category(listName)
	if !validUserID(userID) || category == "" {
		return nil, ErrInvalidInput
	}
	record, err := s.records.Load(ctx, userID, category)
	if err != nil {
		return nil, err
	}
	if record.Lists < s.opts.MinHistoryLists {
		return nil, ErrInsufficientHistory
	}

	candidates := ranking.Rank(record.Scores(), ranking.Positive)
	selected, err := s.Select(candidates, nil, s.opts.HistoryThreshold)
	if err != nil {
		metrics.EmptySelectionsTotal.WithLabelValues("history").Inc()
		return nil, err
	}
	return s.present(ctx, userID, selected)
}

// SuggestForList suggests items other users keep on similar lists, leaving out
// what is already on the user's active list.
func (s *RecommendationService) SuggestForList(ctx context.Context, userID, listName string) ([]ranking.Suggestion, error) {
	category := s.lists.Category(listName)
	if !validUserID(userID) || category == "" {
		return nil, ErrInvalidInput
	}
	pred, err := s.Predictions(ctx, category)
	if errors.Is(err, factor.ErrEmptyInput) {
		return nil, ErrInsufficientUsers
	}
	if err != nil {
		return nil, err
	}
	if len(pred.Users) < s.opts.MinUsers {
		return nil, ErrInsufficientUsers
	}
	row, ok := pred.Row(userID)
	if !ok {
		return nil, ErrNoHistory
	}

	current, err := s.lists.ActiveItems(ctx, userID, category)
	if err != nil {
		return nil, err
	}
	selected, err := s.Select(ranking.Rank(row, nil), current, s.opts.CommunityThreshold)
	if err != nil {
		metrics.EmptySelectionsTotal.WithLabelValues("community").Inc()
		return nil, err
	}
	return s.present(ctx, userID, selected)
}

func (s *RecommendationService) compute(ctx context.Context, category string) (*factor.Prediction, error) {
	records, err := s.records.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	m, err := factor.Build(profiles(records), itemUniverse(records))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pred, err := m.Predict(s.opts.Params, s.opts.Init)
	metrics.FactorizationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	s.log.Debug("prediction computed",
		zap.String("category", category),
		zap.Int("users", len(m.Users)),
		zap.Int("items", len(m.Items)),
		zap.Duration("took", time.Since(start)))
	return pred, nil
}

// present trims to the result limit and attaches display names.
func (s *RecommendationService) present(ctx context.Context, userID string, selected []ranking.Suggestion) ([]ranking.Suggestion, error) {
	selected = ranking.Top(selected, s.opts.MaxResults)
	keys := make([]string, len(selected))
	for i, sg := range selected {
		keys[i] = sg.Stem
	}
	names, err := s.stems.Lookup(ctx, userID, keys)
	if err != nil {
		return nil, err
	}
	for i := range selected {
		selected[i].Name = selected[i].Stem
		if name, ok := names[selected[i].Stem]; ok {
			selected[i].Name = name
		}
	}
	return selected, nil
}

func profiles(records []*affinity.Record) []factor.Profile {
	out := make([]factor.Profile, 0, len(records))
	for _, r := range records {
		out = append(out, factor.Profile{UserID: r.UserID, Scores: r.Scores()})
	}
	return out
}

// itemUniverse is every stem any user has in the category, sorted.
func itemUniverse(records []*affinity.Record) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for s := range r.Entries {
			seen[s] = struct{}{}
		}
	}
	items := make([]string, 0, len(seen))
	for s := range seen {
		items = append(items, s)
	}
	sort.Strings(items)
	return items
}

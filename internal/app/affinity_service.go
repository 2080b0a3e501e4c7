package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"listwise/internal/affinity"
	"listwise/internal/factor"
	"listwise/internal/model"
	"listwise/internal/platform/metrics"
	"listwise/internal/repository"
	"listwise/internal/stem"
)

type EventPublisher interface {
	Publish(ctx context.Context, event model.AffinityEvent) error
}

type PredictionCache interface {
	GetPrediction(ctx context.Context, category string) (*factor.Prediction, bool, error)
	// SetPrediction stores pred only if the category is still at version.
	SetPrediction(ctx context.Context, category string, pred *factor.Prediction, version int64) (bool, error)
	Invalidate(ctx context.Context, category string) error
	Version(ctx context.Context, category string) (int64, error)
}

// AffinityService is the only writer of affinity records.
type AffinityService struct {
	records    *repository.AffinityRepository
	stems      *repository.StemRepository
	normalizer stem.Normalizer
	publisher  EventPublisher
	cache      PredictionCache
	log        *zap.Logger
}

type RecordInput struct {
	UserID   string
	Category string
	Items    []string
	Kind     affinity.EventKind
}

type DecrementInput struct {
	UserID   string
	Category string
	Items    []string
	// RetractCounts also lowers the raw counts of the named items.
	RetractCounts bool
}

func NewAffinityService(
	records *repository.AffinityRepository,
	stems *repository.StemRepository,
	normalizer stem.Normalizer,
	publisher EventPublisher,
	cache PredictionCache,
	log *zap.Logger,
) *AffinityService {
	return &AffinityService{
		records:    records,
		stems:      stems,
		normalizer: normalizer,
		publisher:  publisher,
		cache:      cache,
		log:        log.Named("affinity"),
	}
}

// Record applies one list event to the user's record for the category.
func (s *AffinityService) Record(ctx context.Context, input RecordInput) (*affinity.Record, error) {
	if !validUserID(input.UserID) || input.Category == "" || !input.Kind.Valid() {
		return nil, ErrInvalidInput
	}
	keys, surfaces := s.normalize(input.Items)
	if len(keys) == 0 {
		return nil, ErrInvalidInput
	}

	if err := s.stems.Remember(ctx, input.UserID, surfaces); err != nil {
		return nil, err
	}
	record, err := s.records.Load(ctx, input.UserID, input.Category)
	if err != nil {
		return nil, err
	}
	record.Apply(input.Kind, keys)
	if err := s.records.Save(ctx, record); err != nil {
		return nil, err
	}

	metrics.ListEventsTotal.WithLabelValues(string(input.Kind)).Inc()
	s.log.Debug("list event applied",
		zap.String("user_id", input.UserID),
		zap.String("category", input.Category),
		zap.String("kind", string(input.Kind)),
		zap.Int("items", len(keys)),
		zap.Int64("lists", record.Lists))
	s.afterWrite(ctx, input.UserID, input.Category, string(input.Kind))
	return record, nil
}

// Decrement retracts the influence of the named items.
func (s *AffinityService) Decrement(ctx context.Context, input DecrementInput) (*affinity.Record, error) {
	if !validUserID(input.UserID) || input.Category == "" {
		return nil, ErrInvalidInput
	}
	keys := stem.NormalizeAll(s.normalizer, input.Items)
	if len(keys) == 0 {
		return nil, ErrInvalidInput
	}

	record, err := s.records.Load(ctx, input.UserID, input.Category)
	if err != nil {
		return nil, err
	}
	record.Decrement(keys)
	if input.RetractCounts {
		record.RetractCounts(keys)
	}
	if err := s.records.Save(ctx, record); err != nil {
		return nil, err
	}

	metrics.ListEventsTotal.WithLabelValues("decrement").Inc()
	s.afterWrite(ctx, input.UserID, input.Category, "decrement")
	return record, nil
}

// Scores returns the user's decayed scores for a category.
func (s *AffinityService) Scores(ctx context.Context, userID, category string) (map[string]float64, error) {
	if !validUserID(userID) || category == "" {
		return nil, ErrInvalidInput
	}
	record, err := s.records.Load(ctx, userID, category)
	if err != nil {
		return nil, err
	}
	return record.Scores(), nil
}

// Forget drops everything aggregated for the user.
func (s *AffinityService) Forget(ctx context.Context, userID string) error {
	if !validUserID(userID) {
		return ErrInvalidInput
	}
	categories, err := s.records.Categories(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.records.DeleteByUserID(ctx, userID); err != nil {
		return err
	}
	if err := s.stems.DeleteByUserID(ctx, userID); err != nil {
		return err
	}
	for _, c := range categories {
		s.afterWrite(ctx, userID, c, "reset")
	}
	return nil
}

func (s *AffinityService) normalize(items []string) ([]string, map[string]string) {
	keys := make([]string, 0, len(items))
	surfaces := make(map[string]string, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := s.normalizer.Normalize(item)
		if key == "" {
			continue
		}
		keys = append(keys, key)
		surfaces[key] = item
	}
	return keys, surfaces
}

// afterWrite never fails the request: the record is already stored.
func (s *AffinityService) afterWrite(ctx context.Context, userID, category, kind string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, category); err != nil {
			s.log.Warn("invalidate prediction cache failed", zap.String("category", category), zap.Error(err))
		}
	}
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, model.AffinityEvent{
		UserID:   userID,
		Category: category,
		Kind:     kind,
	})
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("failed").Inc()
		s.log.Warn("publish affinity event failed", zap.String("category", category), zap.Error(err))
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues("ok").Inc()
}

package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"listwise/internal/factor"
	"listwise/internal/model"
	"listwise/internal/platform/database"
	"listwise/internal/repository"
	"listwise/internal/stem"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []model.AffinityEvent
}

func (p *fakePublisher) Publish(_ context.Context, event model.AffinityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

type fakeCache struct {
	predictions map[string]*factor.Prediction
	versions    map[string]int64
	sets        int
	// beforeSet runs inside SetPrediction ahead of the version check.
	beforeSet func()
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		predictions: map[string]*factor.Prediction{},
		versions:    map[string]int64{},
	}
}

func (c *fakeCache) GetPrediction(_ context.Context, category string) (*factor.Prediction, bool, error) {
	p, ok := c.predictions[category]
	return p, ok, nil
}

func (c *fakeCache) SetPrediction(_ context.Context, category string, pred *factor.Prediction, version int64) (bool, error) {
	if c.beforeSet != nil {
		hook := c.beforeSet
		c.beforeSet = nil
		hook()
	}
	if c.versions[category] != version {
		return false, nil
	}
	c.sets++
	c.predictions[category] = pred
	return true, nil
}

func (c *fakeCache) Invalidate(_ context.Context, category string) error {
	delete(c.predictions, category)
	c.versions[category]++
	return nil
}

func (c *fakeCache) Version(_ context.Context, category string) (int64, error) {
	return c.versions[category], nil
}

type harness struct {
	normalizer stem.Normalizer
	records    *repository.AffinityRepository
	lists      *repository.ListRepository
	stems      *repository.StemRepository
	publisher  *fakePublisher
	cache      *fakeCache

	affinity        *AffinityService
	listSvc         *ListService
	recommendations *RecommendationService
}

func testOptions() RecommendationOptions {
	return RecommendationOptions{
		Params:             factor.Params{Rank: 2, LearningRate: 0.05, Regularization: 0.01, Epochs: 2000},
		Init:               factor.Init{Seed: 1, Min: 0, Max: 1},
		MinUsers:           4,
		HistoryThreshold:   0.49,
		CommunityThreshold: 0.4,
		MaxResults:         3,
		MinHistoryLists:    3,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "app.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	log := zaptest.NewLogger(t)
	h := &harness{
		normalizer: stem.Snowball{},
		records:    repository.NewAffinityRepository(db),
		lists:      repository.NewListRepository(db),
		publisher:  &fakePublisher{},
		cache:      newFakeCache(),
	}
	h.stems = repository.NewStemRepository(db)
	h.affinity = NewAffinityService(h.records, h.stems, h.normalizer, h.publisher, h.cache, log)
	h.listSvc = NewListService(h.lists, h.affinity, h.normalizer, "UTC", log)
	h.listSvc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	h.recommendations = NewRecommendationService(h.records, h.stems, h.listSvc, h.cache, h.normalizer, testOptions(), log)
	return h
}

func (h *harness) key(s string) string {
	return h.normalizer.Normalize(s)
}

package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listwise/internal/affinity"
	"listwise/internal/factor"
	"listwise/internal/ranking"
)

func (h *harness) seed(t *testing.T, userID, category string, lists int64, scores map[string]float64) {
	t.Helper()
	record := affinity.NewRecord(userID, category)
	record.Lists = lists
	for item, score := range scores {
		record.Entries[h.key(item)] = &affinity.Entry{Count: 1, Score: score, Baseline: score, Anchored: true}
	}
	require.NoError(t, h.records.Save(context.Background(), record))
}

func stems(s []ranking.Suggestion) []string {
	out := make([]string, len(s))
	for i, sg := range s {
		out[i] = sg.Stem
	}
	return out
}

func TestPastRecommendationsThenSelect(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seed(t, "u1", "groceri", 4, map[string]float64{
		"apple": 1.36, "ice cream": 1.0, "pineapple": 0.6, "chocolate": 0.24, "banana": 0.36, "kale": -0.4,
	})

	candidates, err := h.recommendations.PastRecommendations(ctx, "u1", "groceri")
	require.NoError(t, err)
	assert.Equal(t, []string{h.key("apple"), h.key("ice cream"), h.key("pineapple"), h.key("banana"), h.key("chocolate")}, stems(candidates))

	selected, err := h.recommendations.Select(candidates, nil, 0.4)
	require.NoError(t, err)
	assert.Equal(t, []string{h.key("apple"), h.key("ice cream"), h.key("pineapple")}, stems(selected))

	_, err = h.recommendations.Select(candidates, []string{"apples", "ice cream", "pineapple"}, 0.4)
	assert.ErrorIs(t, err, ranking.ErrNoQualifying)
}

func TestSuggestFromHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.listSvc.CreateList(ctx, ListInput{UserID: "u1", Name: "Grocery", Items: []string{"Apples", "milk"}})
	require.NoError(t, err)
	_, err = h.recommendations.SuggestFromHistory(ctx, "u1", "Grocery")
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = h.listSvc.CreateList(ctx, ListInput{UserID: "u1", Name: "Grocery", Items: []string{"apples", "bread"}})
	require.NoError(t, err)
	_, err = h.listSvc.CreateList(ctx, ListInput{UserID: "u1", Name: "Grocery", Items: []string{"apples"}})
	require.NoError(t, err)

	got, err := h.recommendations.SuggestFromHistory(ctx, "u1", "grocery")
	require.NoError(t, err)
	// apple 1.0, bread 0.6 and milk 0.36 after three lists; milk is under 0.49
	require.Len(t, got, 2)
	assert.Equal(t, h.key("apple"), got[0].Stem)
	assert.Equal(t, "apples", got[0].Name)
	assert.Equal(t, h.key("bread"), got[1].Stem)
	assert.Equal(t, "bread", got[1].Name)
}

func TestSuggestFromHistoryNothingQualifies(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seed(t, "u1", "groceri", 5, map[string]float64{"milk": 0.2})

	_, err := h.recommendations.SuggestFromHistory(ctx, "u1", "Grocery")
	assert.ErrorIs(t, err, ranking.ErrNoQualifying)
}

func seedCommunity(t *testing.T, h *harness, category string) {
	h.seed(t, "a1", category, 3, map[string]float64{"apple": 1, "banana": 1})
	h.seed(t, "a2", category, 3, map[string]float64{"apple": 1, "banana": 0.6})
	h.seed(t, "a3", category, 3, map[string]float64{"apple": 0.6, "banana": 1})
	h.seed(t, "b1", category, 3, map[string]float64{"carrot": 1, "donut": 1})
	h.seed(t, "b2", category, 3, map[string]float64{"carrot": 1, "donut": 0.6})
	h.seed(t, "target", category, 1, map[string]float64{"apple": 1})
}

func TestCollaborativeRecommendations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedCommunity(t, h, "groceri")

	got, err := h.recommendations.CollaborativeRecommendations(ctx, "target", "groceri")
	require.NoError(t, err)
	require.Len(t, got, 4)
	rank := map[string]int{}
	for i, sg := range got {
		rank[sg.Stem] = i
	}
	assert.Less(t, rank[h.key("banana")], rank[h.key("carrot")])
	assert.Less(t, rank[h.key("banana")], rank[h.key("donut")])

	_, err = h.recommendations.CollaborativeRecommendations(ctx, "stranger", "groceri")
	assert.ErrorIs(t, err, ErrNoHistory)

	_, err = h.recommendations.CollaborativeRecommendations(ctx, "target", "hardwar")
	assert.ErrorIs(t, err, factor.ErrEmptyInput)
}

func TestSuggestForListExcludesCurrentItems(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	category := h.listSvc.Category("Grocery")
	seedCommunity(t, h, category)

	_, err := h.listSvc.CreateList(ctx, ListInput{UserID: "target", Name: "Grocery"})
	require.NoError(t, err)
	_, _, err = h.listSvc.AppendToList(ctx, ListInput{UserID: "target", Name: "Grocery", Items: []string{"apple"}})
	require.NoError(t, err)

	h.recommendations.opts.CommunityThreshold = -10
	got, err := h.recommendations.SuggestForList(ctx, "target", "Grocery")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.NotContains(t, stems(got), h.key("apple"))
	assert.Equal(t, h.key("banana"), got[0].Stem)
}

func TestSuggestForListNeedsEnoughUsers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seed(t, "u1", "groceri", 2, map[string]float64{"apple": 1})
	h.seed(t, "u2", "groceri", 2, map[string]float64{"banana": 1})

	_, err := h.recommendations.SuggestForList(ctx, "u1", "Grocery")
	assert.ErrorIs(t, err, ErrInsufficientUsers)

	_, err = h.recommendations.SuggestForList(ctx, "u1", "Hardware")
	assert.ErrorIs(t, err, ErrInsufficientUsers)
}

func TestPredictionsUseCacheUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seed(t, "u1", "groceri", 2, map[string]float64{"apple": 1})
	h.seed(t, "u2", "groceri", 2, map[string]float64{"apple": 0.6, "banana": 1})

	first, err := h.recommendations.Predictions(ctx, "groceri")
	require.NoError(t, err)
	assert.Equal(t, 1, h.cache.sets)

	second, err := h.recommendations.Predictions(ctx, "groceri")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, h.cache.sets)

	_, err = h.affinity.Decrement(ctx, DecrementInput{UserID: "u1", Category: "groceri", Items: []string{"apple"}})
	require.NoError(t, err)

	third, err := h.recommendations.Predictions(ctx, "groceri")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, h.cache.sets)

	require.NoError(t, h.recommendations.Warm(ctx, "groceri"))
	assert.Equal(t, 3, h.cache.sets)
	require.NoError(t, h.recommendations.Warm(ctx, "empty"))
}

func TestPredictionsDropSnapshotOutdatedByConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		h.seed(t, u, "groceri", 2, map[string]float64{"apple": 1, "banana": 0.6})
	}

	// the write lands after the factorization read its records but before the store
	h.cache.beforeSet = func() {
		_, err := h.affinity.Record(ctx, RecordInput{UserID: "u5", Category: "groceri", Items: []string{"kale"}, Kind: affinity.EventNewList})
		require.NoError(t, err)
	}
	stale, err := h.recommendations.Predictions(ctx, "groceri")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, stale.Users)
	assert.Equal(t, 0, h.cache.sets)
	assert.Empty(t, h.cache.predictions)

	fresh, err := h.recommendations.Predictions(ctx, "groceri")
	require.NoError(t, err)
	assert.Contains(t, fresh.Users, "u5")
	assert.Equal(t, 1, h.cache.sets)

	cached, err := h.recommendations.Predictions(ctx, "groceri")
	require.NoError(t, err)
	assert.Same(t, fresh, cached)
}

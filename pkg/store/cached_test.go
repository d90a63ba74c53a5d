package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/jordanlanch/feedbackhub/pkg/cache"
	"github.com/jordanlanch/feedbackhub/pkg/logger"
	"github.com/jordanlanch/feedbackhub/pkg/metrics"
	"github.com/jordanlanch/feedbackhub/pkg/models"
)

// countingDefinitions records how often each read reaches the backing store.
type countingDefinitions struct {
	Definitions
	calls map[string]int
	fail  error
}

func (c *countingDefinitions) GetFlag(ctx context.Context, projectID, key string) (*models.Flag, error) {
	c.calls["GetFlag"]++
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Definitions.GetFlag(ctx, projectID, key)
}

func (c *countingDefinitions) GetFlags(ctx context.Context, projectID string, keys []string) ([]models.Flag, error) {
	c.calls["GetFlags"]++
	return c.Definitions.GetFlags(ctx, projectID, keys)
}

func (c *countingDefinitions) ListRunningExperiments(ctx context.Context, projectID string) ([]models.Experiment, error) {
	c.calls["ListRunningExperiments"]++
	return c.Definitions.ListRunningExperiments(ctx, projectID)
}

func (c *countingDefinitions) ListVariants(ctx context.Context, ids []string) ([]models.Variant, error) {
	c.calls["ListVariants"]++
	return c.Definitions.ListVariants(ctx, ids)
}

func newCachedTestStore(t *testing.T) (*CachedStore, *countingDefinitions, *GormStore, *miniredis.Miniredis, *metrics.Metrics) {
	t.Helper()
	backing, _ := newTestStore(t)
	counting := &countingDefinitions{Definitions: backing, calls: map[string]int{}}

	mr := miniredis.RunT(t)
	client := &cache.Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = client.Close() })

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return NewCachedStore(counting, client, 5*time.Second, logger.Nop(), m), counting, backing, mr, m
}

func TestCachedStore_GetFlag(t *testing.T) {
	cached, counting, backing, mr, m := newCachedTestStore(t)
	ctx := context.Background()

	require.NoError(t, backing.CreateFlag(ctx, &models.Flag{
		ProjectID:      "p1",
		Key:            "new-ui",
		IsEnabled:      true,
		DefaultValue:   datatypes.JSON(`{"color":"blue"}`),
		TargetingRules: datatypes.JSON(`[{"attribute":"plan","operator":"equals","value":"pro"}]`),
	}))

	first, err := cached.GetFlag(ctx, "p1", "new-ui")
	require.NoError(t, err)
	second, err := cached.GetFlag(ctx, "p1", "new-ui")
	require.NoError(t, err)

	assert.Equal(t, 1, counting.calls["GetFlag"])
	assert.Equal(t, first.ID, second.ID)
	assert.JSONEq(t, `{"color":"blue"}`, string(second.ServedValue()))
	assert.JSONEq(t, string(first.TargetingRules), string(second.TargetingRules))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("flag")))

	t.Run("Success - Expired entries reload", func(t *testing.T) {
		mr.FastForward(6 * time.Second)
		_, err := cached.GetFlag(ctx, "p1", "new-ui")
		require.NoError(t, err)
		assert.Equal(t, 2, counting.calls["GetFlag"])
	})

	t.Run("Failure - Not found is not cached", func(t *testing.T) {
		_, err := cached.GetFlag(ctx, "p1", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = cached.GetFlag(ctx, "p1", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, mr.Exists(flagCacheKey("p1", "missing")))
	})

	t.Run("Success - Redis down falls back to store", func(t *testing.T) {
		mr.Close()
		flag, err := cached.GetFlag(ctx, "p1", "new-ui")
		require.NoError(t, err)
		assert.Equal(t, first.ID, flag.ID)
	})
}

func TestCachedStore_GetFlags(t *testing.T) {
	cached, counting, backing, _, _ := newCachedTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, backing.CreateFlag(ctx, &models.Flag{ProjectID: "p1", Key: key}))
	}

	_, err := cached.GetFlag(ctx, "p1", "a")
	require.NoError(t, err)

	flags, err := cached.GetFlags(ctx, "p1", []string{"a", "b", "c", "zzz"})
	require.NoError(t, err)
	require.Len(t, flags, 3)
	assert.Equal(t, 1, counting.calls["GetFlags"])

	flags, err = cached.GetFlags(ctx, "p1", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, flags, 3)
	assert.Equal(t, 1, counting.calls["GetFlags"], "all keys served from cache")
}

func TestCachedStore_GetFlags_SharedKeyAcrossProjects(t *testing.T) {
	cached, _, backing, _, _ := newCachedTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, backing.CreateFlag(ctx, &models.Flag{ProjectID: "old", Key: "x", CreatedAt: created}))
	require.NoError(t, backing.CreateFlag(ctx, &models.Flag{ProjectID: "new", Key: "x", CreatedAt: created.Add(time.Hour)}))

	flags, err := cached.GetFlags(ctx, "", []string{"x"})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "old", flags[0].ProjectID)

	// served from the entry GetFlags just wrote
	single, err := cached.GetFlag(ctx, "", "x")
	require.NoError(t, err)
	assert.Equal(t, "old", single.ProjectID)
}

func TestCachedStore_ExperimentDefinitions(t *testing.T) {
	cached, counting, backing, _, _ := newCachedTestStore(t)
	ctx := context.Background()

	exp := seedExperiment(t, backing, "p1", "checkout", models.StatusRunning)

	for i := 0; i < 3; i++ {
		exps, err := cached.ListRunningExperiments(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, exps, 1)

		variants, err := cached.ListVariants(ctx, []string{exp.ID, "no-variants"})
		require.NoError(t, err)
		require.Len(t, variants, 2)
		assert.Equal(t, "control", variants[0].Key)
	}
	assert.Equal(t, 1, counting.calls["ListRunningExperiments"])
	assert.Equal(t, 1, counting.calls["ListVariants"])

	goals, err := cached.ListGoals(ctx, []string{exp.ID})
	require.NoError(t, err)
	assert.Len(t, goals, 1)

	require.NoError(t, cached.Invalidate(ctx))
	_, err = cached.ListRunningExperiments(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, counting.calls["ListRunningExperiments"])
}

func TestCachedStore_InvalidateExperiment(t *testing.T) {
	cached, counting, backing, mr, _ := newCachedTestStore(t)
	ctx := context.Background()

	require.NoError(t, backing.CreateFlag(ctx, &models.Flag{ProjectID: "p1", Key: "new-ui"}))
	exp := seedExperiment(t, backing, "p1", "checkout", models.StatusRunning)
	other := seedExperiment(t, backing, "p1", "pricing", models.StatusRunning)

	_, err := cached.GetFlag(ctx, "p1", "new-ui")
	require.NoError(t, err)
	_, err = cached.ListRunningExperiments(ctx, "p1")
	require.NoError(t, err)
	_, err = cached.ListVariants(ctx, []string{exp.ID, other.ID})
	require.NoError(t, err)
	_, err = cached.ListGoals(ctx, []string{exp.ID})
	require.NoError(t, err)

	require.NoError(t, cached.InvalidateExperiment(ctx, "p1", exp.ID))

	assert.False(t, mr.Exists(experimentsCacheKey("p1")))
	assert.False(t, mr.Exists(variantsCacheKey(exp.ID)))
	assert.False(t, mr.Exists(goalsCacheKey(exp.ID)))
	assert.True(t, mr.Exists(variantsCacheKey(other.ID)), "other experiments keep their entries")
	assert.True(t, mr.Exists(flagCacheKey("p1", "new-ui")), "flags are untouched")

	_, err = cached.ListRunningExperiments(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, counting.calls["ListRunningExperiments"])
	_, err = cached.GetFlag(ctx, "p1", "new-ui")
	require.NoError(t, err)
	assert.Equal(t, 1, counting.calls["GetFlag"])
}

func TestCachedStore_PropagatesStoreErrors(t *testing.T) {
	cached, counting, _, _, _ := newCachedTestStore(t)
	counting.fail = errors.New("connection reset")

	_, err := cached.GetFlag(context.Background(), "p1", "new-ui")
	assert.EqualError(t, err, "connection reset")
}

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jordanlanch/feedbackhub/pkg/cache"
	"github.com/jordanlanch/feedbackhub/pkg/logger"
	"github.com/jordanlanch/feedbackhub/pkg/metrics"
	"github.com/jordanlanch/feedbackhub/pkg/models"
)

const definitionKeyPrefix = "flagdefs:"

// CachedStore is a read-through Redis cache in front of flag and experiment
// definitions. Assignments never pass through it. Redis failures degrade to
// the underlying store.
type CachedStore struct {
	next    Definitions
	cache   *cache.Client
	ttl     time.Duration
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewCachedStore wraps next with a cache whose entries live for ttl.
func NewCachedStore(next Definitions, c *cache.Client, ttl time.Duration, log logger.Logger, m *metrics.Metrics) *CachedStore {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedStore{
		next:    next,
		cache:   c,
		ttl:     ttl,
		log:     log.With("component", "definition_cache"),
		metrics: m,
	}
}

func flagCacheKey(projectID, key string) string {
	return definitionKeyPrefix + "flag:" + projectID + ":" + key
}

func experimentsCacheKey(projectID string) string {
	return definitionKeyPrefix + "experiments:" + projectID
}

func variantsCacheKey(experimentID string) string {
	return definitionKeyPrefix + "variants:" + experimentID
}

func goalsCacheKey(experimentID string) string {
	return definitionKeyPrefix + "goals:" + experimentID
}

// GetFlag reads through the cache. Missing flags are not cached.
func (c *CachedStore) GetFlag(ctx context.Context, projectID, key string) (*models.Flag, error) {
	cacheKey := flagCacheKey(projectID, key)

	var flag models.Flag
	if c.lookup(ctx, "flag", cacheKey, &flag) {
		return &flag, nil
	}

	found, err := c.next.GetFlag(ctx, projectID, key)
	if err != nil {
		return nil, err
	}
	c.store(ctx, map[string]any{cacheKey: found})
	return found, nil
}

// GetFlags serves cached keys from one pipeline and loads the rest in one query.
func (c *CachedStore) GetFlags(ctx context.Context, projectID string, keys []string) ([]models.Flag, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cacheKeys := make([]string, len(keys))
	for i, k := range keys {
		cacheKeys[i] = flagCacheKey(projectID, k)
	}

	var flags []models.Flag
	missing := c.lookupMulti(ctx, "flag", cacheKeys, func(i int, raw string) bool {
		var f models.Flag
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			return false
		}
		flags = append(flags, f)
		return true
	})
	if len(missing) == 0 {
		return flags, nil
	}

	missingKeys := make([]string, len(missing))
	for i, idx := range missing {
		missingKeys[i] = keys[idx]
	}
	loaded, err := c.next.GetFlags(ctx, projectID, missingKeys)
	if err != nil {
		return nil, err
	}

	pairs := make(map[string]any, len(loaded))
	for i := range loaded {
		pairs[flagCacheKey(projectID, loaded[i].Key)] = &loaded[i]
	}
	c.store(ctx, pairs)

	return append(flags, loaded...), nil
}

// ListRunningExperiments reads through the cache. Empty results are cached too.
func (c *CachedStore) ListRunningExperiments(ctx context.Context, projectID string) ([]models.Experiment, error) {
	cacheKey := experimentsCacheKey(projectID)

	var exps []models.Experiment
	if c.lookup(ctx, "experiments", cacheKey, &exps) {
		return exps, nil
	}

	exps, err := c.next.ListRunningExperiments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, map[string]any{cacheKey: exps})
	return exps, nil
}

// ListVariants caches variants per experiment.
func (c *CachedStore) ListVariants(ctx context.Context, experimentIDs []string) ([]models.Variant, error) {
	return listPerExperiment(ctx, c, "variants", experimentIDs, variantsCacheKey,
		c.next.ListVariants,
		func(v models.Variant) string { return v.ExperimentID })
}

// ListGoals caches goals per experiment.
func (c *CachedStore) ListGoals(ctx context.Context, experimentIDs []string) ([]models.Goal, error) {
	return listPerExperiment(ctx, c, "goals", experimentIDs, goalsCacheKey,
		c.next.ListGoals,
		func(g models.Goal) string { return g.ExperimentID })
}

// InvalidateExperiment drops the entries a status change of experimentID can
// make stale: the running list of its project and its own variants and goals.
func (c *CachedStore) InvalidateExperiment(ctx context.Context, projectID, experimentID string) error {
	keys := []string{experimentsCacheKey(projectID), variantsCacheKey(experimentID), goalsCacheKey(experimentID)}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		return err
	}
	c.log.Debug("experiment definitions invalidated", "project_id", projectID, "experiment_id", experimentID)
	return nil
}

// Invalidate drops every cached definition.
func (c *CachedStore) Invalidate(ctx context.Context) error {
	deleted, err := c.cache.DeletePattern(ctx, definitionKeyPrefix+"*")
	if err != nil {
		return err
	}
	c.log.Info("definition cache invalidated", "keys", deleted)
	return nil
}

// listPerExperiment stores one cache entry per experiment id so overlapping
// experiment sets share entries.
func listPerExperiment[T any](
	ctx context.Context,
	c *CachedStore,
	cacheType string,
	experimentIDs []string,
	keyFor func(string) string,
	load func(context.Context, []string) ([]T, error),
	owner func(T) string,
) ([]T, error) {
	if len(experimentIDs) == 0 {
		return nil, nil
	}

	cacheKeys := make([]string, len(experimentIDs))
	for i, id := range experimentIDs {
		cacheKeys[i] = keyFor(id)
	}

	var out []T
	missing := c.lookupMulti(ctx, cacheType, cacheKeys, func(_ int, raw string) bool {
		var items []T
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return false
		}
		out = append(out, items...)
		return true
	})
	if len(missing) == 0 {
		return out, nil
	}

	missingIDs := make([]string, len(missing))
	for i, idx := range missing {
		missingIDs[i] = experimentIDs[idx]
	}
	loaded, err := load(ctx, missingIDs)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]T, len(missingIDs))
	for _, id := range missingIDs {
		grouped[id] = []T{}
	}
	for _, item := range loaded {
		grouped[owner(item)] = append(grouped[owner(item)], item)
	}

	pairs := make(map[string]any, len(grouped))
	for id, items := range grouped {
		pairs[keyFor(id)] = items
	}
	c.store(ctx, pairs)

	return append(out, loaded...), nil
}

// lookup decodes a single cached entry into dst and reports whether it hit.
func (c *CachedStore) lookup(ctx context.Context, cacheType, key string, dst any) bool {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if !cache.IsMiss(err) {
			c.log.Warn("cache read failed", "key", key, "error", err)
		}
		c.metrics.RecordCacheMiss(cacheType)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		c.log.Warn("cache entry undecodable", "key", key, "error", err)
		c.metrics.RecordCacheMiss(cacheType)
		return false
	}
	c.metrics.RecordCacheHit(cacheType)
	return true
}

// lookupMulti fetches keys in one pipeline, handing hits to decode. It returns
// the indexes of keys that must be loaded from the store.
func (c *CachedStore) lookupMulti(ctx context.Context, cacheType string, keys []string, decode func(int, string) bool) []int {
	values, err := c.cache.GetMulti(ctx, keys...)
	if err != nil {
		c.log.Warn("cache read failed", "keys", len(keys), "error", err)
		values = make([]string, len(keys))
	}

	var missing []int
	for i, raw := range values {
		if raw != "" && decode(i, raw) {
			c.metrics.RecordCacheHit(cacheType)
			continue
		}
		c.metrics.RecordCacheMiss(cacheType)
		missing = append(missing, i)
	}
	return missing
}

func (c *CachedStore) store(ctx context.Context, entries map[string]any) {
	pairs := make(map[string]interface{}, len(entries))
	for key, v := range entries {
		data, err := json.Marshal(v)
		if err != nil {
			c.log.Warn("cache entry not encodable", "key", key, "error", err)
			continue
		}
		pairs[key] = data
	}
	if err := c.cache.SetMulti(ctx, pairs, c.ttl); err != nil {
		c.log.Warn("cache write failed", "keys", len(pairs), "error", err)
	}
}

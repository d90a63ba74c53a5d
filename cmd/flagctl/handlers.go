package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jordanlanch/feedbackhub/pkg/abtest"
	"github.com/jordanlanch/feedbackhub/pkg/bucketing"
	"github.com/jordanlanch/feedbackhub/pkg/cache"
	"github.com/jordanlanch/feedbackhub/pkg/database"
	"github.com/jordanlanch/feedbackhub/pkg/logger"
	"github.com/jordanlanch/feedbackhub/pkg/models"
	"github.com/jordanlanch/feedbackhub/pkg/store"
	"github.com/jordanlanch/feedbackhub/pkg/testdata"
)

// openDatabase is replaced in tests
var openDatabase = func(url string) (*database.Client, error) {
	return database.NewClient(url, database.Options{})
}

// runBucket handles the bucket command.
func runBucket(cmd *cobra.Command, scope string, visitors []string, traffic bool) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if traffic {
		fmt.Fprintln(w, "VISITOR\tBUCKET\tTRAFFIC BUCKET")
	} else {
		fmt.Fprintln(w, "VISITOR\tBUCKET")
	}

	for _, v := range visitors {
		if traffic {
			fmt.Fprintf(w, "%s\t%d\t%d\n", v, bucketing.Bucket(scope, v), bucketing.TrafficBucket(scope, v))
			continue
		}
		fmt.Fprintf(w, "%s\t%d\n", v, bucketing.Bucket(scope, v))
	}
	return w.Flush()
}

// runAssign handles the assign command.
func runAssign(cmd *cobra.Command, experimentID string, visitors, specs []string, allocation int) error {
	variants, err := parseVariants(specs)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VISITOR\tBUCKET\tTRAFFIC\tVARIANT")
	for _, v := range visitors {
		bucket, traffic := bucketing.Bucket(experimentID, v), bucketing.TrafficBucket(experimentID, v)
		if !bucketing.InTraffic(experimentID, v, allocation) {
			fmt.Fprintf(w, "%s\t%d\t%d\t(excluded by allocation)\n", v, bucket, traffic)
			continue
		}
		key, _ := bucketing.AssignVariant(v, experimentID, variants)
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", v, bucket, traffic, key)
	}
	return w.Flush()
}

func parseVariants(specs []string) ([]bucketing.WeightedVariant, error) {
	variants := make([]bucketing.WeightedVariant, 0, len(specs))
	for _, spec := range specs {
		key, weight, ok := strings.Cut(spec, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variant %q, expected key=weight", spec)
		}
		n, err := strconv.Atoi(weight)
		if err != nil || n < 0 || n > 100 {
			return nil, fmt.Errorf("invalid weight in %q: must be an integer in [0,100]", spec)
		}
		variants = append(variants, bucketing.WeightedVariant{Key: key, Weight: n})
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("at least one --variant is required")
	}
	return variants, nil
}

// runMigrate handles the migrate command.
func runMigrate(cmd *cobra.Command, opts *globalOptions) error {
	db, err := openDatabase(opts.databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✅ Schema is up to date")
	return nil
}

// runSeed handles the seed command.
func runSeed(cmd *cobra.Command, opts *globalOptions, cfg testdata.ProjectConfig) error {
	db, err := openDatabase(opts.databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	res, err := testdata.SeedProject(cmd.Context(), store.NewGormStore(db.DB, nil), cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Seeded project %q: %d flags, %d experiments\n", cfg.ProjectID, len(res.Flags), len(res.Experiments))
	for _, f := range res.Flags {
		fmt.Fprintf(out, "  flag       %-40s %-8s rollout=%d%% enabled=%t\n", f.Key, f.FlagType, f.RolloutPercentage, f.IsEnabled)
	}
	for _, e := range res.Experiments {
		fmt.Fprintf(out, "  experiment %-40s id=%s traffic=%d%%\n", e.Key, e.ID, e.TrafficAllocation)
	}
	return nil
}

// experimentService opens storage and, when --redis-url is given, the cache
// whose entries must be dropped after a status change.
func experimentService(opts *globalOptions) (*abtest.Service, func(), error) {
	db, err := openDatabase(opts.databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closers := []func(){func() { _ = db.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	log := logger.New(opts.logLevel)
	gs := store.NewGormStore(db.DB, nil)
	stores := abtest.Stores{Experiments: gs, Assignments: gs, Admin: gs}

	if opts.redisURL != "" {
		redis, err := cache.NewClient(opts.redisURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, func() { _ = redis.Close() })
		stores.Cache = store.NewCachedStore(gs, redis, 0, log, nil)
	}

	return abtest.NewService(stores, 0, log, nil), closeAll, nil
}

// runTransition handles experiment start, pause, resume and complete.
func runTransition(cmd *cobra.Command, opts *globalOptions, experimentID string, to models.ExperimentStatus) error {
	svc, closeAll, err := experimentService(opts)
	if err != nil {
		return err
	}
	defer closeAll()

	exp, err := svc.Transition(cmd.Context(), experimentID, to)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Experiment %s (%s) is now %s\n", exp.Key, exp.ID, exp.Status)
	return nil
}

// runStats handles experiment stats.
func runStats(cmd *cobra.Command, opts *globalOptions, experimentID string, asJSON bool) error {
	svc, closeAll, err := experimentService(opts)
	if err != nil {
		return err
	}
	defer closeAll()

	results, err := svc.AssignmentStats(cmd.Context(), experimentID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	fmt.Fprintf(out, "%s (%s) status=%s visitors=%d\n\n", results.ExperimentName, results.ExperimentKey, results.Status, results.TotalVisitors)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tWEIGHT\tVISITORS\tSHARE")
	for _, v := range results.Variants {
		name := v.Variant
		if v.IsControl {
			name += " (control)"
		}
		fmt.Fprintf(w, "%s\t%d%%\t%d\t%.1f%%\n", name, v.Weight, v.Visitors, v.Share)
	}
	return w.Flush()
}

// runCacheFlush handles cache flush.
func runCacheFlush(cmd *cobra.Command, opts *globalOptions) error {
	if opts.redisURL == "" {
		return fmt.Errorf("--redis-url is required")
	}

	redis, err := cache.NewClient(opts.redisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redis.Close()

	// Invalidate only talks to Redis, so no database is needed behind it.
	cached := store.NewCachedStore(nil, redis, 0, logger.New(opts.logLevel), nil)
	if err := cached.Invalidate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to flush definition cache: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✅ Definition cache flushed")
	return nil
}

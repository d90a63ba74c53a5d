package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jordanlanch/feedbackhub/pkg/metrics"
	"github.com/jordanlanch/feedbackhub/pkg/models"
)

// assignmentBatchSize bounds the rows per INSERT so large SDK payloads stay
// under driver parameter limits.
const assignmentBatchSize = 200

// GormStore implements every store interface on top of gorm.
type GormStore struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

// NewGormStore creates a store. m may be nil.
func NewGormStore(db *gorm.DB, m *metrics.Metrics) *GormStore {
	return &GormStore{db: db, metrics: m}
}

func (s *GormStore) observe(operation string, start time.Time, err error) {
	s.metrics.RecordDBQuery(operation, time.Since(start), err)
}

// GetFlag returns the flag with key, scoped to projectID when it is set.
func (s *GormStore) GetFlag(ctx context.Context, projectID, key string) (flag *models.Flag, err error) {
	defer func(start time.Time) { s.observe("get_flag", start, ignoreNotFound(err)) }(time.Now())

	cond := map[string]any{"key": key}
	if projectID != "" {
		cond["project_id"] = projectID
	}

	var row models.Flag
	err = s.db.WithContext(ctx).Where(cond).Order("created_at asc, id asc").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flag %q: %w", key, err)
	}
	return &row, nil
}

// GetFlags returns at most one flag per key, picked the way GetFlag picks it.
// Unknown keys are simply absent.
func (s *GormStore) GetFlags(ctx context.Context, projectID string, keys []string) (flags []models.Flag, err error) {
	if len(keys) == 0 {
		return nil, nil
	}
	defer func(start time.Time) { s.observe("get_flags", start, err) }(time.Now())

	cond := map[string]any{"key": keys}
	if projectID != "" {
		cond["project_id"] = projectID
	}

	var rows []models.Flag
	if err = s.db.WithContext(ctx).Where(cond).Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get flags: %w", err)
	}

	// Without a project the same key can exist several times; the oldest wins.
	seen := make(map[string]bool, len(rows))
	flags = rows[:0]
	for _, row := range rows {
		if seen[row.Key] {
			continue
		}
		seen[row.Key] = true
		flags = append(flags, row)
	}
	return flags, nil
}

// CreateFlag inserts a flag definition.
func (s *GormStore) CreateFlag(ctx context.Context, flag *models.Flag) error {
	if err := s.db.WithContext(ctx).Create(flag).Error; err != nil {
		return fmt.Errorf("create flag %q: %w", flag.Key, err)
	}
	return nil
}

// ListRunningExperiments returns the running experiments of a project, oldest first.
func (s *GormStore) ListRunningExperiments(ctx context.Context, projectID string) (exps []models.Experiment, err error) {
	defer func(start time.Time) { s.observe("list_running_experiments", start, err) }(time.Now())

	err = s.db.WithContext(ctx).
		Where(map[string]any{"project_id": projectID, "status": models.StatusRunning}).
		Order("created_at asc, id asc").
		Find(&exps).Error
	if err != nil {
		return nil, fmt.Errorf("list running experiments: %w", err)
	}
	return exps, nil
}

// ListVariants returns the variants of the given experiments in bucketing order.
func (s *GormStore) ListVariants(ctx context.Context, experimentIDs []string) (variants []models.Variant, err error) {
	if len(experimentIDs) == 0 {
		return nil, nil
	}
	defer func(start time.Time) { s.observe("list_variants", start, err) }(time.Now())

	err = s.db.WithContext(ctx).
		Where("experiment_id IN ?", experimentIDs).
		Order("position asc, created_at asc, id asc").
		Find(&variants).Error
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	return variants, nil
}

// ListGoals returns the goals of the given experiments.
func (s *GormStore) ListGoals(ctx context.Context, experimentIDs []string) (goals []models.Goal, err error) {
	if len(experimentIDs) == 0 {
		return nil, nil
	}
	defer func(start time.Time) { s.observe("list_goals", start, err) }(time.Now())

	err = s.db.WithContext(ctx).
		Where("experiment_id IN ?", experimentIDs).
		Order("created_at asc, id asc").
		Find(&goals).Error
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

// GetExperiment loads an experiment with its variants and goals.
func (s *GormStore) GetExperiment(ctx context.Context, id string) (exp *models.Experiment, err error) {
	defer func(start time.Time) { s.observe("get_experiment", start, ignoreNotFound(err)) }(time.Now())

	var row models.Experiment
	err = s.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, created_at asc, id asc")
		}).
		Preload("Goals").
		Where("id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get experiment %s: %w", id, err)
	}
	return &row, nil
}

// CreateExperiment inserts an experiment together with its variants and goals.
func (s *GormStore) CreateExperiment(ctx context.Context, exp *models.Experiment) error {
	if err := s.db.WithContext(ctx).Create(exp).Error; err != nil {
		return fmt.Errorf("create experiment %q: %w", exp.Key, err)
	}
	return nil
}

// UpdateExperimentStatus moves an experiment from one status to another. The
// update only applies while the row is still in from; otherwise
// ErrStatusConflict is returned.
func (s *GormStore) UpdateExperimentStatus(ctx context.Context, id string, from, to models.ExperimentStatus, at time.Time) (err error) {
	defer func(start time.Time) { s.observe("update_experiment_status", start, err) }(time.Now())

	updates := map[string]any{"status": to, "updated_at": at}
	switch to {
	case models.StatusRunning:
		updates["started_at"] = gorm.Expr("COALESCE(started_at, ?)", at)
	case models.StatusCompleted:
		updates["ended_at"] = at
	}

	res := s.db.WithContext(ctx).
		Model(&models.Experiment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update experiment %s status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// GetAssignments returns the visitor's stored assignments for the given experiments.
func (s *GormStore) GetAssignments(ctx context.Context, visitorID string, experimentIDs []string) (rows []models.Assignment, err error) {
	if len(experimentIDs) == 0 {
		return nil, nil
	}
	defer func(start time.Time) { s.observe("get_assignments", start, err) }(time.Now())

	err = s.db.WithContext(ctx).
		Where("visitor_id = ? AND experiment_id IN ?", visitorID, experimentIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get assignments: %w", err)
	}
	return rows, nil
}

// UpsertAssignments inserts assignments in one statement per batch. A row that
// already exists for (experiment_id, visitor_id) wins: the first writer is kept.
func (s *GormStore) UpsertAssignments(ctx context.Context, rows []models.Assignment) (err error) {
	if len(rows) == 0 {
		return nil
	}
	defer func(start time.Time) { s.observe("upsert_assignments", start, err) }(time.Now())

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "experiment_id"}, {Name: "visitor_id"}},
			DoNothing: true,
		}).
		CreateInBatches(&rows, assignmentBatchSize).Error
	if err != nil {
		return fmt.Errorf("upsert assignments: %w", err)
	}
	return nil
}

// CountAssignments returns the number of assigned visitors per variant id.
func (s *GormStore) CountAssignments(ctx context.Context, experimentID string) (counts map[string]int64, err error) {
	defer func(start time.Time) { s.observe("count_assignments", start, err) }(time.Now())

	var rows []struct {
		VariantID string
		Count     int64
	}
	err = s.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Select("variant_id, COUNT(*) AS count").
		Where("experiment_id = ?", experimentID).
		Group("variant_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count assignments: %w", err)
	}

	counts = make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.VariantID] = r.Count
	}
	return counts, nil
}

// AppendEvaluation writes one evaluation audit row.
func (s *GormStore) AppendEvaluation(ctx context.Context, entry *models.EvaluationLog) (err error) {
	defer func(start time.Time) { s.observe("append_evaluation", start, err) }(time.Now())

	if err = s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append evaluation: %w", err)
	}
	return nil
}

// PruneEvaluationLogs deletes audit rows created before cutoff.
func (s *GormStore) PruneEvaluationLogs(ctx context.Context, cutoff time.Time) (deleted int64, err error) {
	defer func(start time.Time) { s.observe("prune_evaluation_logs", start, err) }(time.Now())

	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.EvaluationLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune evaluation logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

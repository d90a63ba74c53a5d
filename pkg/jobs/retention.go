package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jordanlanch/feedbackhub/pkg/metrics"
)

// LogPruner deletes evaluation log rows created before cutoff
type LogPruner interface {
	PruneEvaluationLogs(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob enforces the evaluation log retention window
type RetentionJob struct {
	pruner  LogPruner
	days    int
	metrics *metrics.Metrics
	logger  *log.Logger
	now     func() time.Time
}

// NewRetentionJob creates a retention job keeping days of evaluation logs
func NewRetentionJob(pruner LogPruner, days int, m *metrics.Metrics, logger *log.Logger) *RetentionJob {
	if logger == nil {
		logger = log.Default()
	}

	return &RetentionJob{
		pruner:  pruner,
		days:    days,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Enabled reports whether a retention window is configured
func (j *RetentionJob) Enabled() bool {
	return j.days > 0
}

// Cutoff is the oldest creation time that survives the next run
func (j *RetentionJob) Cutoff() time.Time {
	return j.now().UTC().AddDate(0, 0, -j.days)
}

// Run deletes evaluation logs older than the retention window
func (j *RetentionJob) Run(ctx context.Context) (int64, error) {
	if !j.Enabled() {
		return 0, nil
	}

	cutoff := j.Cutoff()
	deleted, err := j.pruner.PruneEvaluationLogs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune evaluation logs before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	j.metrics.RecordEvaluationLogsPruned(deleted)
	return deleted, nil
}

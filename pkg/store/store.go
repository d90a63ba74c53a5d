// Package store persists flags, experiments and visitor assignments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jordanlanch/feedbackhub/pkg/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStatusConflict is returned when an experiment is no longer in the
	// status a transition expected.
	ErrStatusConflict = errors.New("experiment status changed concurrently")
)

// FlagReader reads flag definitions.
type FlagReader interface {
	// GetFlag returns ErrNotFound when no flag has key. An empty projectID
	// matches the key in any project.
	GetFlag(ctx context.Context, projectID, key string) (*models.Flag, error)
	// GetFlags returns at most one flag per key, the same one GetFlag would.
	GetFlags(ctx context.Context, projectID string, keys []string) ([]models.Flag, error)
}

// ExperimentReader reads the experiment definitions the SDK config is built from.
type ExperimentReader interface {
	ListRunningExperiments(ctx context.Context, projectID string) ([]models.Experiment, error)
	// ListVariants returns variants in bucketing order (position, creation time, id).
	ListVariants(ctx context.Context, experimentIDs []string) ([]models.Variant, error)
	ListGoals(ctx context.Context, experimentIDs []string) ([]models.Goal, error)
}

// Definitions is everything the read-through cache can front.
type Definitions interface {
	FlagReader
	ExperimentReader
}

// AssignmentStore reads and writes sticky visitor assignments.
type AssignmentStore interface {
	GetAssignments(ctx context.Context, visitorID string, experimentIDs []string) ([]models.Assignment, error)
	// UpsertAssignments inserts rows and keeps any existing row for the same
	// (experiment_id, visitor_id) untouched.
	UpsertAssignments(ctx context.Context, rows []models.Assignment) error
}

// EvaluationLogWriter appends flag evaluation audit rows.
type EvaluationLogWriter interface {
	AppendEvaluation(ctx context.Context, entry *models.EvaluationLog) error
}

// ExperimentAdmin drives the experiment lifecycle.
type ExperimentAdmin interface {
	GetExperiment(ctx context.Context, id string) (*models.Experiment, error)
	UpdateExperimentStatus(ctx context.Context, id string, from, to models.ExperimentStatus, at time.Time) error
	CountAssignments(ctx context.Context, experimentID string) (map[string]int64, error)
	ListVariants(ctx context.Context, experimentIDs []string) ([]models.Variant, error)
}

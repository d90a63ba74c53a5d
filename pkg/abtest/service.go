package abtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jordanlanch/feedbackhub/pkg/bucketing"
	"github.com/jordanlanch/feedbackhub/pkg/logger"
	"github.com/jordanlanch/feedbackhub/pkg/metrics"
	"github.com/jordanlanch/feedbackhub/pkg/models"
	"github.com/jordanlanch/feedbackhub/pkg/store"
)

// DefaultTimeout bounds the storage work of one SDK config request.
const DefaultTimeout = 2 * time.Second

var (
	// ErrExperimentNotFound is returned when experiment doesn't exist
	ErrExperimentNotFound = errors.New("experiment not found")
	// ErrInvalidTransition is returned when the lifecycle forbids a status change
	ErrInvalidTransition = errors.New("invalid experiment status transition")
	// ErrNoVariants is returned when starting an experiment without variants
	ErrNoVariants = errors.New("experiment has no variants")
)

// Invalidator drops cached experiment definitions after a status change.
type Invalidator interface {
	InvalidateExperiment(ctx context.Context, projectID, experimentID string) error
}

// Stores groups the storage dependencies of the service. Admin and Cache are
// only needed for lifecycle operations.
type Stores struct {
	Experiments store.ExperimentReader
	Assignments store.AssignmentStore
	Admin       store.ExperimentAdmin
	Cache       Invalidator
}

// VariantResult holds assignment totals for a single variant
type VariantResult struct {
	Variant   string  `json:"variant"`
	IsControl bool    `json:"is_control"`
	Weight    int     `json:"weight"`
	Visitors  int64   `json:"visitors"`
	Share     float64 `json:"share"`
}

// ExperimentResults holds assignment totals for an experiment
type ExperimentResults struct {
	ExperimentKey  string          `json:"experiment_key"`
	ExperimentName string          `json:"experiment_name"`
	Status         string          `json:"status"`
	Variants       []VariantResult `json:"variants"`
	TotalVisitors  int64           `json:"total_visitors"`
	StartDate      *time.Time      `json:"start_date"`
	EndDate        *time.Time      `json:"end_date"`
}

// Service assigns visitors to experiment variants
type Service struct {
	stores  Stores
	log     logger.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time
}

// NewService creates a new A/B testing service
func NewService(stores Stores, timeout time.Duration, log logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		stores:  stores,
		log:     log.With("component", "abtest"),
		metrics: m,
		timeout: timeout,
		now:     time.Now,
	}
}

// decision is the variant chosen for one experiment before it is rendered.
type decision struct {
	experiment *models.Experiment
	variant    *models.Variant
	fresh      bool
}

// GetSDKConfig returns the running experiments the visitor takes part in,
// each with its sticky variant. It never fails: storage errors yield an empty
// experiment list, and a failed assignment write drops only the experiments
// whose assignment was new.
func (s *Service) GetSDKConfig(ctx context.Context, req models.SDKConfigRequest) *models.SDKConfigResponse {
	now := s.now().UTC()
	resp := &models.SDKConfigResponse{
		Experiments: []models.ExperimentConfig{},
		VisitorID:   req.VisitorID,
		Timestamp:   now,
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log := s.log.With("project_id", req.ProjectID, "visitor_id", req.VisitorID)

	running, err := s.stores.Experiments.ListRunningExperiments(ctx, req.ProjectID)
	if err != nil {
		log.Error("failed to list running experiments", "error", err)
		return resp
	}

	eligible := make([]*models.Experiment, 0, len(running))
	for i := range running {
		exp := &running[i]
		if !pageMatches(exp.PageURL, req.PageURL) {
			continue
		}
		if !bucketing.InTraffic(exp.ID, req.VisitorID, exp.TrafficAllocation) {
			continue
		}
		eligible = append(eligible, exp)
	}
	if len(eligible) == 0 {
		return resp
	}

	ids := make([]string, len(eligible))
	for i, exp := range eligible {
		ids[i] = exp.ID
	}

	var (
		variants    []models.Variant
		goals       []models.Goal
		assignments []models.Assignment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	g.Go(func() (err error) {
		variants, err = s.stores.Experiments.ListVariants(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		goals, err = s.stores.Experiments.ListGoals(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		assignments, err = s.stores.Assignments.GetAssignments(gctx, req.VisitorID, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error("failed to load experiment definitions", "experiments", len(ids), "error", err)
		return resp
	}

	variantsByExp := make(map[string][]models.Variant, len(ids))
	for _, v := range variants {
		variantsByExp[v.ExperimentID] = append(variantsByExp[v.ExperimentID], v)
	}
	goalsByExp := make(map[string][]models.Goal, len(ids))
	for _, goal := range goals {
		goalsByExp[goal.ExperimentID] = append(goalsByExp[goal.ExperimentID], goal)
	}
	stored := make(map[string]string, len(assignments))
	for _, a := range assignments {
		stored[a.ExperimentID] = a.VariantID
	}

	var userID *string
	if req.UserID != "" {
		userID = &req.UserID
	}

	decisions := make([]decision, 0, len(eligible))
	var pending []models.Assignment
	for _, exp := range eligible {
		expVariants := variantsByExp[exp.ID]
		if len(expVariants) == 0 {
			log.Debug("running experiment has no variants", "experiment_id", exp.ID)
			continue
		}

		if variantID, ok := stored[exp.ID]; ok {
			v := findVariant(expVariants, func(v *models.Variant) bool { return v.ID == variantID })
			if v == nil {
				log.Warn("stored assignment references a missing variant",
					"experiment_id", exp.ID,
					"variant_id", variantID,
				)
				continue
			}
			decisions = append(decisions, decision{experiment: exp, variant: v})
			continue
		}

		weighted := make([]bucketing.WeightedVariant, len(expVariants))
		for i, v := range expVariants {
			weighted[i] = bucketing.WeightedVariant{Key: v.Key, Weight: v.TrafficPercentage}
		}
		key, _ := bucketing.AssignVariant(req.VisitorID, exp.ID, weighted)
		v := findVariant(expVariants, func(v *models.Variant) bool { return v.Key == key })

		decisions = append(decisions, decision{experiment: exp, variant: v, fresh: true})
		pending = append(pending, models.Assignment{
			ExperimentID: exp.ID,
			VisitorID:    req.VisitorID,
			VariantID:    v.ID,
			UserID:       userID,
			AssignedAt:   now,
		})
	}

	persisted := true
	if len(pending) > 0 {
		if err := s.stores.Assignments.UpsertAssignments(ctx, pending); err != nil {
			persisted = false
			s.metrics.RecordAssignmentUpsertFailure()
			log.Error("failed to persist assignments", "assignments", len(pending), "error", err)
		}
	}

	for _, d := range decisions {
		if d.fresh && !persisted {
			continue
		}
		if d.fresh {
			s.metrics.RecordAssignment("new")
		} else {
			s.metrics.RecordAssignment("existing")
		}
		resp.Experiments = append(resp.Experiments, render(d, variantsByExp[d.experiment.ID], goalsByExp[d.experiment.ID]))
	}

	return resp
}

// Transition moves an experiment through its lifecycle and returns the updated row
func (s *Service) Transition(ctx context.Context, experimentID string, to models.ExperimentStatus) (*models.Experiment, error) {
	exp, err := s.getExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	if !exp.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, exp.Status, to)
	}
	if to == models.StatusRunning && len(exp.Variants) == 0 {
		return nil, ErrNoVariants
	}

	err = s.stores.Admin.UpdateExperimentStatus(ctx, exp.ID, exp.Status, to, s.now().UTC())
	if errors.Is(err, store.ErrStatusConflict) {
		return nil, fmt.Errorf("%w: %s changed while updating", ErrInvalidTransition, exp.Key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update experiment status: %w", err)
	}

	if s.stores.Cache != nil {
		if err := s.stores.Cache.InvalidateExperiment(ctx, exp.ProjectID, exp.ID); err != nil {
			s.log.Warn("failed to invalidate definition cache", "experiment_id", exp.ID, "error", err)
		}
	}

	s.log.Info("experiment status changed", "experiment_id", exp.ID, "from", exp.Status, "to", to)
	return s.getExperiment(ctx, exp.ID)
}

// AssignmentStats reports how many visitors each variant received
func (s *Service) AssignmentStats(ctx context.Context, experimentID string) (*ExperimentResults, error) {
	exp, err := s.getExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	counts, err := s.stores.Admin.CountAssignments(ctx, exp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}

	results := &ExperimentResults{
		ExperimentKey:  exp.Key,
		ExperimentName: exp.Name,
		Status:         string(exp.Status),
		Variants:       make([]VariantResult, 0, len(exp.Variants)),
		StartDate:      exp.StartedAt,
		EndDate:        exp.EndedAt,
	}
	for _, v := range exp.Variants {
		results.TotalVisitors += counts[v.ID]
	}
	for _, v := range exp.Variants {
		result := VariantResult{
			Variant:   v.Key,
			IsControl: v.IsControl,
			Weight:    v.TrafficPercentage,
			Visitors:  counts[v.ID],
		}
		if results.TotalVisitors > 0 {
			result.Share = float64(result.Visitors) / float64(results.TotalVisitors) * 100
		}
		results.Variants = append(results.Variants, result)
	}

	return results, nil
}

func (s *Service) getExperiment(ctx context.Context, id string) (*models.Experiment, error) {
	exp, err := s.stores.Admin.GetExperiment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrExperimentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	return exp, nil
}

// pageMatches scopes an experiment to pages whose URL contains its pattern.
// Requests without a page URL see every experiment.
func pageMatches(pattern *string, pageURL string) bool {
	if pattern == nil || *pattern == "" || pageURL == "" {
		return true
	}
	return strings.Contains(pageURL, *pattern)
}

func findVariant(variants []models.Variant, match func(*models.Variant) bool) *models.Variant {
	for i := range variants {
		if match(&variants[i]) {
			return &variants[i]
		}
	}
	return nil
}

func render(d decision, variants []models.Variant, goals []models.Goal) models.ExperimentConfig {
	cfg := models.ExperimentConfig{
		ID:                d.experiment.ID,
		Key:               d.experiment.Key,
		Name:              d.experiment.Name,
		Status:            string(d.experiment.Status),
		TrafficAllocation: d.experiment.TrafficAllocation,
		AssignedVariant:   d.variant.Key,
		Variants:          make([]models.VariantConfig, len(variants)),
		Goals:             make([]models.GoalConfig, len(goals)),
	}
	for i, v := range variants {
		cfg.Variants[i] = models.VariantConfig{
			Key:       v.Key,
			Weight:    v.TrafficPercentage,
			IsControl: v.IsControl,
			Changes:   models.JSONOrNull(v.VisualChanges),
			PageURL:   v.PageURL,
		}
	}
	for i, goal := range goals {
		cfg.Goals[i] = models.GoalConfig{
			ID:       goal.ID,
			Name:     goal.Name,
			Type:     goal.Type,
			Selector: goal.Selector,
			URL:      goal.URLPattern,
		}
	}
	return cfg
}

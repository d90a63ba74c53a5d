// Package flags evaluates feature flags for a visitor.
package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/feedbackhub/pkg/audit"
	"github.com/jordanlanch/feedbackhub/pkg/bucketing"
	"github.com/jordanlanch/feedbackhub/pkg/logger"
	"github.com/jordanlanch/feedbackhub/pkg/metrics"
	"github.com/jordanlanch/feedbackhub/pkg/models"
	"github.com/jordanlanch/feedbackhub/pkg/store"
	"github.com/jordanlanch/feedbackhub/pkg/targeting"
)

// DefaultTimeout bounds the storage reads of one evaluation.
const DefaultTimeout = 2 * time.Second

var nullValue = json.RawMessage("null")

// Recorder receives evaluations to audit. Record must not block.
type Recorder interface {
	Record(entry audit.LogEntry)
}

// Service evaluates flags against stored definitions
type Service struct {
	flags    store.FlagReader
	recorder Recorder
	log      logger.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
	now      func() time.Time
}

// NewService creates a flag evaluation service. recorder, log and m may be nil;
// a non-positive timeout selects DefaultTimeout.
func NewService(flags store.FlagReader, recorder Recorder, timeout time.Duration, log logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		flags:    flags,
		recorder: recorder,
		log:      log.With("component", "flags"),
		metrics:  m,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Evaluate resolves a single flag. Checks run in a fixed order and the first
// failing one decides the reason. Only storage failures return an error; an
// unknown key is the flag_not_found outcome.
func (s *Service) Evaluate(ctx context.Context, req models.FlagEvaluationRequest) (*models.FlagEvaluationResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	flag, err := s.flags.GetFlag(ctx, req.ProjectID, req.FlagKey)
	if errors.Is(err, store.ErrNotFound) {
		s.metrics.RecordFlagEvaluation(models.ReasonFlagNotFound)
		return &models.FlagEvaluationResponse{Value: nullValue, Reason: models.ReasonFlagNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load flag %q: %w", req.FlagKey, err)
	}

	reason := s.decide(flag, req.VisitorID, req.Attributes, true)
	s.metrics.RecordFlagEvaluation(reason)

	resp := &models.FlagEvaluationResponse{
		Enabled: reason == models.ReasonEnabled,
		Value:   flag.ServedValue(),
		Reason:  reason,
	}
	if !resp.Enabled {
		return resp, nil
	}

	resp.FlagType = flag.FlagType
	if s.recorder != nil {
		s.recorder.Record(audit.LogEntry{
			FlagID:     flag.ID,
			ProjectID:  flag.ProjectID,
			VisitorID:  req.VisitorID,
			UserID:     req.UserID,
			Value:      resp.Value,
			Reason:     reason,
			Attributes: req.Attributes,
		})
	}
	return resp, nil
}

// EvaluateBatch resolves several flags in one read. It skips the schedule
// window and writes no audit rows. Keys that are unknown, or all keys when
// storage fails, come back disabled with a null value.
func (s *Service) EvaluateBatch(ctx context.Context, req models.BatchFlagEvaluationRequest) *models.BatchFlagEvaluationResponse {
	resp := &models.BatchFlagEvaluationResponse{Flags: make(map[string]models.FlagState, len(req.FlagKeys))}
	for _, key := range req.FlagKeys {
		resp.Flags[key] = models.FlagState{Value: nullValue}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	flags, err := s.flags.GetFlags(ctx, req.ProjectID, req.FlagKeys)
	if err != nil {
		s.log.Error("batch flag evaluation degraded to defaults",
			"project_id", req.ProjectID,
			"flags", len(req.FlagKeys),
			"error", err,
		)
		return resp
	}

	evaluated := make(map[string]bool, len(flags))
	for i := range flags {
		flag := &flags[i]
		if _, requested := resp.Flags[flag.Key]; !requested || evaluated[flag.Key] {
			continue
		}
		evaluated[flag.Key] = true
		reason := s.decide(flag, req.VisitorID, req.Attributes, false)
		s.metrics.RecordFlagEvaluation(reason)
		resp.Flags[flag.Key] = models.FlagState{
			Enabled: reason == models.ReasonEnabled,
			Value:   flag.ServedValue(),
		}
	}
	return resp
}

func (s *Service) decide(flag *models.Flag, visitorID string, attributes map[string]any, checkSchedule bool) string {
	if !flag.IsEnabled {
		return models.ReasonFlagDisabled
	}

	if checkSchedule {
		now := s.now()
		if flag.ScheduledStart != nil && now.Before(*flag.ScheduledStart) {
			return models.ReasonNotStarted
		}
		if flag.ScheduledEnd != nil && now.After(*flag.ScheduledEnd) {
			return models.ReasonEnded
		}
	}

	rules, err := targeting.ParseRules(flag.TargetingRules)
	if err != nil {
		s.log.Warn("malformed targeting rules", "flag_id", flag.ID, "flag_key", flag.Key, "error", err)
		return models.ReasonTargetingMismatch
	}
	if !targeting.Matches(rules, attributes) {
		return models.ReasonTargetingMismatch
	}

	if !bucketing.InRollout(flag.Key, visitorID, flag.RolloutPercentage) {
		return models.ReasonNotInRollout
	}

	return models.ReasonEnabled
}

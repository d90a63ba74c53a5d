// Package audit records flag evaluations without blocking the caller.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/jordanlanch/feedbackhub/pkg/logger"
	"github.com/jordanlanch/feedbackhub/pkg/metrics"
	"github.com/jordanlanch/feedbackhub/pkg/models"
	"github.com/jordanlanch/feedbackhub/pkg/store"
)

const writeTimeout = 5 * time.Second

// Service handles evaluation audit logging
type Service struct {
	writer  store.EvaluationLogWriter
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewService creates a new audit service. m may be nil.
func NewService(writer store.EvaluationLogWriter, log logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		writer:  writer,
		log:     log.With("component", "audit"),
		metrics: m,
		now:     time.Now,
	}
}

// LogEntry represents one evaluation to record
type LogEntry struct {
	FlagID     string
	ProjectID  string
	VisitorID  string
	UserID     string
	Value      json.RawMessage
	Reason     string
	Attributes map[string]any
}

// Log writes an evaluation audit row synchronously
func (s *Service) Log(ctx context.Context, entry LogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	attrs, err := json.Marshal(entry.Attributes)
	if err != nil {
		return fmt.Errorf("encode evaluation context: %w", err)
	}

	row := &models.EvaluationLog{
		FlagID:    entry.FlagID,
		ProjectID: entry.ProjectID,
		VisitorID: entry.VisitorID,
		Value:     datatypes.JSON(models.JSONOrNull(entry.Value)),
		Reason:    entry.Reason,
		Context:   datatypes.JSON(attrs),
		CreatedAt: s.now().UTC(),
	}
	if entry.UserID != "" {
		userID := entry.UserID
		row.UserID = &userID
	}

	return s.writer.AppendEvaluation(ctx, row)
}

// Record writes entry in the background. Failures are logged and counted,
// never returned to the caller.
func (s *Service) Record(entry LogEntry) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Log(context.Background(), entry); err != nil {
			s.metrics.RecordEvaluationLogFailure()
			s.log.Error("failed to record flag evaluation",
				"flag_id", entry.FlagID,
				"visitor_id", entry.VisitorID,
				"error", err,
			)
		}
	}()
}

// Wait blocks until background writes started by Record have finished
func (s *Service) Wait() {
	s.wg.Wait()
}

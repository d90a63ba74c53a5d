package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionSchedule runs the retention job daily at 3 AM
const RetentionSchedule = "0 3 * * *"

// CronManager manages scheduled jobs
type CronManager struct {
	cron      *cron.Cron
	retention *RetentionJob
	logger    *log.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(retention *RetentionJob, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}

	return &CronManager{
		cron:      cron.New(),
		retention: retention,
		logger:    logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	if cm.retention == nil || !cm.retention.Enabled() {
		cm.logger.Println("⚠️  Evaluation log retention disabled")
		return nil
	}

	if _, err := cm.cron.AddFunc(RetentionSchedule, cm.runRetention); err != nil {
		return err
	}

	cm.logger.Println("✅ Cron jobs configured successfully")
	cm.logger.Printf("  - Daily at 3 AM: Prune evaluation logs older than %d days", cm.retention.days)

	return nil
}

func (cm *CronManager) runRetention() {
	cm.logger.Println("🕐 Running evaluation log retention job...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	deleted, err := cm.retention.Run(ctx)
	if err != nil {
		cm.logger.Printf("❌ Retention job failed: %v", err)
		return
	}

	cm.logger.Printf("✅ Retention job completed: %d evaluation logs removed", deleted)
}

// Entries returns the number of scheduled jobs
func (cm *CronManager) Entries() int {
	return len(cm.cron.Entries())
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the cron scheduler and waits for running jobs
func (cm *CronManager) Stop() {
	cm.logger.Println("Stopping cron scheduler...")
	<-cm.cron.Stop().Done()
}

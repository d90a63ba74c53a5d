package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExperimentStatus is the lifecycle state of an experiment.
type ExperimentStatus string

// Experiment lifecycle: draft -> running -> (paused <-> running) -> completed.
const (
	StatusDraft     ExperimentStatus = "draft"
	StatusRunning   ExperimentStatus = "running"
	StatusPaused    ExperimentStatus = "paused"
	StatusCompleted ExperimentStatus = "completed"
)

var statusTransitions = map[ExperimentStatus][]ExperimentStatus{
	StatusDraft:   {StatusRunning},
	StatusRunning: {StatusPaused, StatusCompleted},
	StatusPaused:  {StatusRunning, StatusCompleted},
}

// CanTransition reports whether an experiment may move from s to next.
func (s ExperimentStatus) CanTransition(next ExperimentStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Experiment is an A/B/n test bound to a project.
type Experiment struct {
	ID                string           `gorm:"primaryKey;size:36" json:"id"`
	ProjectID         string           `gorm:"size:64;not null;index" json:"project_id"`
	Key               string           `gorm:"size:128;not null" json:"key"`
	Name              string           `gorm:"size:255;not null" json:"name"`
	Description       string           `gorm:"size:1024" json:"description"`
	Status            ExperimentStatus `gorm:"size:16;not null;default:draft;index" json:"status"`
	TrafficAllocation int              `gorm:"not null" json:"traffic_allocation"`
	PageURL           *string          `gorm:"size:1024" json:"page_url,omitempty"`
	StartedAt         *time.Time       `json:"started_at,omitempty"`
	EndedAt           *time.Time       `json:"ended_at,omitempty"`
	Variants          []Variant        `gorm:"foreignKey:ExperimentID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
	Goals             []Goal           `gorm:"foreignKey:ExperimentID;constraint:OnDelete:CASCADE" json:"goals,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// TableName overrides the gorm default.
func (Experiment) TableName() string { return "experiments" }

// BeforeCreate assigns a UUID when none is set.
func (e *Experiment) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// Variant is one arm of an experiment. Position fixes the order used for
// bucketing; reordering variants reassigns a share of new visitors.
type Variant struct {
	ID                string         `gorm:"primaryKey;size:36" json:"id"`
	ExperimentID      string         `gorm:"size:36;not null;uniqueIndex:idx_experiment_variants_key" json:"experiment_id"`
	Key               string         `gorm:"size:128;not null;uniqueIndex:idx_experiment_variants_key" json:"key"`
	Name              string         `gorm:"size:255" json:"name"`
	TrafficPercentage int            `gorm:"not null;default:0" json:"traffic_percentage"`
	IsControl         bool           `gorm:"not null;default:false" json:"is_control"`
	VisualChanges     datatypes.JSON `json:"visual_changes"`
	PageURL           *string        `gorm:"size:1024" json:"page_url,omitempty"`
	Position          int            `gorm:"not null;default:0" json:"position"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// TableName overrides the gorm default.
func (Variant) TableName() string { return "experiment_variants" }

// BeforeCreate assigns a UUID when none is set.
func (v *Variant) BeforeCreate(*gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// Goal declares a success metric. The evaluation engine only returns goals.
type Goal struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	ExperimentID string    `gorm:"size:36;not null;index" json:"experiment_id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Type         string    `gorm:"size:32;not null" json:"type"`
	Selector     *string   `gorm:"size:1024" json:"selector,omitempty"`
	URLPattern   *string   `gorm:"size:1024" json:"url_pattern,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName overrides the gorm default.
func (Goal) TableName() string { return "experiment_goals" }

// BeforeCreate assigns a UUID when none is set.
func (g *Goal) BeforeCreate(*gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// Assignment binds a visitor to a variant for the life of an experiment.
// (experiment_id, visitor_id) is unique.
type Assignment struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	ExperimentID string    `gorm:"size:36;not null;uniqueIndex:idx_experiment_assignments_visitor" json:"experiment_id"`
	VisitorID    string    `gorm:"size:255;not null;uniqueIndex:idx_experiment_assignments_visitor" json:"visitor_id"`
	VariantID    string    `gorm:"size:36;not null;index" json:"variant_id"`
	UserID       *string   `gorm:"size:255" json:"user_id,omitempty"`
	AssignedAt   time.Time `gorm:"not null" json:"assigned_at"`
}

// TableName overrides the gorm default.
func (Assignment) TableName() string { return "experiment_assignments" }

// BeforeCreate assigns a UUID when none is set.
func (a *Assignment) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// All returns every model managed by AutoMigrate, parents first.
func All() []any {
	return []any{
		&Flag{},
		&EvaluationLog{},
		&Experiment{},
		&Variant{},
		&Goal{},
		&Assignment{},
	}
}

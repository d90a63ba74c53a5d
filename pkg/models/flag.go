package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Flag is a feature toggle owned by a project.
type Flag struct {
	ID                string         `gorm:"primaryKey;size:36" json:"id"`
	ProjectID         string         `gorm:"size:64;not null;uniqueIndex:idx_feature_flags_project_key" json:"project_id"`
	Key               string         `gorm:"size:128;not null;uniqueIndex:idx_feature_flags_project_key" json:"key"`
	Name              string         `gorm:"size:255" json:"name"`
	Description       string         `gorm:"size:1024" json:"description"`
	FlagType          string         `gorm:"size:32;not null;default:boolean" json:"flag_type"`
	IsEnabled         bool           `gorm:"not null;default:false" json:"is_enabled"`
	DefaultValue      datatypes.JSON `json:"default_value"`
	RolloutPercentage int            `gorm:"not null" json:"rollout_percentage"`
	TargetingRules    datatypes.JSON `json:"targeting_rules"`
	ScheduledStart    *time.Time     `json:"scheduled_start,omitempty"`
	ScheduledEnd      *time.Time     `json:"scheduled_end,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// TableName overrides the gorm default.
func (Flag) TableName() string { return "feature_flags" }

// BeforeCreate assigns a UUID when none is set.
func (f *Flag) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// ServedValue returns the default value as served to clients. Empty or invalid JSON
// is served as null.
func (f *Flag) ServedValue() json.RawMessage {
	return JSONOrNull(f.DefaultValue)
}

// EvaluationLog is an append-only audit row of a single flag evaluation.
type EvaluationLog struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	FlagID    string         `gorm:"size:36;not null;index" json:"flag_id"`
	ProjectID string         `gorm:"size:64;index" json:"project_id"`
	VisitorID string         `gorm:"size:255;not null" json:"visitor_id"`
	UserID    *string        `gorm:"size:255" json:"user_id,omitempty"`
	Value     datatypes.JSON `json:"value"`
	Reason    string         `gorm:"size:32;not null" json:"reason"`
	Context   datatypes.JSON `json:"context"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

// TableName overrides the gorm default.
func (EvaluationLog) TableName() string { return "flag_evaluations" }

// BeforeCreate assigns a UUID when none is set.
func (e *EvaluationLog) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// JSONOrNull returns raw when it is valid JSON and the literal null otherwise.
func JSONOrNull(raw []byte) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return json.RawMessage("null")
	}
	return json.RawMessage(raw)
}

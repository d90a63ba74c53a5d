package models

import (
	"encoding/json"
	"time"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Reason codes returned by flag evaluation.
const (
	ReasonFlagNotFound      = "flag_not_found"
	ReasonFlagDisabled      = "flag_disabled"
	ReasonNotStarted        = "not_started"
	ReasonEnded             = "ended"
	ReasonTargetingMismatch = "targeting_mismatch"
	ReasonNotInRollout      = "not_in_rollout"
	ReasonEnabled           = "enabled"
)

// FlagEvaluationRequest is the body of a single flag evaluation.
type FlagEvaluationRequest struct {
	ProjectID  string         `json:"projectId,omitempty"`
	FlagKey    string         `json:"flagKey" validate:"required"`
	VisitorID  string         `json:"visitorId" validate:"required"`
	UserID     string         `json:"userId,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// FlagEvaluationResponse is the verdict for a single flag.
type FlagEvaluationResponse struct {
	Enabled  bool            `json:"enabled"`
	Value    json.RawMessage `json:"value"`
	Reason   string          `json:"reason"`
	FlagType string          `json:"flagType,omitempty"`
}

// BatchFlagEvaluationRequest is the body of a multi-flag evaluation.
type BatchFlagEvaluationRequest struct {
	ProjectID  string         `json:"projectId,omitempty"`
	FlagKeys   []string       `json:"flagKeys" validate:"required,min=1"`
	VisitorID  string         `json:"visitorId" validate:"required"`
	UserID     string         `json:"userId,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// FlagState is the per-key entry of a batch evaluation.
type FlagState struct {
	Enabled bool            `json:"enabled"`
	Value   json.RawMessage `json:"value"`
}

// BatchFlagEvaluationResponse maps flag keys to their state.
type BatchFlagEvaluationResponse struct {
	Flags map[string]FlagState `json:"flags"`
}

// SDKConfigRequest carries the query parameters of the SDK config endpoint.
type SDKConfigRequest struct {
	ProjectID string `query:"projectId" validate:"required"`
	VisitorID string `query:"visitorId" validate:"required"`
	PageURL   string `query:"pageUrl"`
	UserID    string `query:"userId"`
}

// SDKConfigResponse lists the experiments a visitor participates in.
type SDKConfigResponse struct {
	Experiments []ExperimentConfig `json:"experiments"`
	VisitorID   string             `json:"visitorId"`
	Timestamp   time.Time          `json:"timestamp"`
}

// ExperimentConfig is one experiment as delivered to the client SDK.
type ExperimentConfig struct {
	ID                string          `json:"id"`
	Key               string          `json:"key"`
	Name              string          `json:"name"`
	Status            string          `json:"status"`
	TrafficAllocation int             `json:"trafficAllocation"`
	AssignedVariant   string          `json:"assignedVariant"`
	Variants          []VariantConfig `json:"variants"`
	Goals             []GoalConfig    `json:"goals"`
}

// VariantConfig carries what the client needs to apply a variant.
type VariantConfig struct {
	Key       string          `json:"key"`
	Weight    int             `json:"weight"`
	IsControl bool            `json:"isControl"`
	Changes   json.RawMessage `json:"changes"`
	PageURL   *string         `json:"pageUrl,omitempty"`
}

// GoalConfig describes a goal the client should track.
type GoalConfig struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Selector *string `json:"selector,omitempty"`
	URL      *string `json:"url,omitempty"`
}

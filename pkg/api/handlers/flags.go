package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/feedbackhub/pkg/api/errors"
	"github.com/jordanlanch/feedbackhub/pkg/models"
)

// FlagEvaluator is the part of flags.Service the handler needs
type FlagEvaluator interface {
	Evaluate(ctx context.Context, req models.FlagEvaluationRequest) (*models.FlagEvaluationResponse, error)
	EvaluateBatch(ctx context.Context, req models.BatchFlagEvaluationRequest) *models.BatchFlagEvaluationResponse
}

// FlagHandler handles flag evaluation requests
type FlagHandler struct {
	flags     FlagEvaluator
	validator *validator.Validate
}

// NewFlagHandler creates a new flag handler
func NewFlagHandler(flags FlagEvaluator) *FlagHandler {
	return &FlagHandler{
		flags:     flags,
		validator: newValidator(),
	}
}

// Evaluate godoc
// @Summary Evaluate a feature flag
// @Description Evaluates one flag for a visitor. Unknown flags are reported with reason flag_not_found, not as an error.
// @Tags Flags
// @Accept json
// @Produce json
// @Param request body models.FlagEvaluationRequest true "Flag evaluation request"
// @Success 200 {object} models.FlagEvaluationResponse
// @Failure 400 {object} models.ErrorResponse "Missing flagKey or visitorId"
// @Failure 500 {object} models.ErrorResponse "Flag storage unavailable"
// @Router /flags/evaluate [post]
func (h *FlagHandler) Evaluate(c echo.Context) error {
	var req models.FlagEvaluationRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	resp, err := h.flags.Evaluate(c.Request().Context(), req)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// EvaluateBatch godoc
// @Summary Evaluate several feature flags
// @Description Evaluates up to 100 flags for a visitor in one call. Schedule windows are not applied and no audit rows are written. Unknown keys and storage failures yield disabled flags with a null value.
// @Tags Flags
// @Accept json
// @Produce json
// @Param request body models.BatchFlagEvaluationRequest true "Batch evaluation request"
// @Success 200 {object} models.BatchFlagEvaluationResponse
// @Failure 400 {object} models.ErrorResponse "Missing flagKeys or visitorId"
// @Router /flags/evaluate [put]
func (h *FlagHandler) EvaluateBatch(c echo.Context) error {
	var req models.BatchFlagEvaluationRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	return c.JSON(http.StatusOK, h.flags.EvaluateBatch(c.Request().Context(), req))
}

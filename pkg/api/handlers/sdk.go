package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/feedbackhub/pkg/api/errors"
	"github.com/jordanlanch/feedbackhub/pkg/models"
)

// ConfigProvider is the part of abtest.Service the SDK handler needs
type ConfigProvider interface {
	GetSDKConfig(ctx context.Context, req models.SDKConfigRequest) *models.SDKConfigResponse
}

// SDKHandler serves the client SDK bootstrap payload
type SDKHandler struct {
	experiments ConfigProvider
	validator   *validator.Validate
}

// NewSDKHandler creates a new SDK handler
func NewSDKHandler(experiments ConfigProvider) *SDKHandler {
	return &SDKHandler{
		experiments: experiments,
		validator:   newValidator(),
	}
}

// GetConfig godoc
// @Summary Get experiment config for a visitor
// @Description Returns every running experiment the visitor is allocated to, with the sticky variant and goals. Storage problems produce an empty list, never an error.
// @Tags SDK
// @Produce json
// @Param projectId query string true "Project ID"
// @Param visitorId query string true "Visitor ID"
// @Param pageUrl query string false "Current page URL, scopes page-bound experiments"
// @Param userId query string false "Authenticated user ID stored with new assignments"
// @Success 200 {object} models.SDKConfigResponse
// @Failure 400 {object} models.ErrorResponse "Missing projectId or visitorId"
// @Router /sdk/config [get]
func (h *SDKHandler) GetConfig(c echo.Context) error {
	var req models.SDKConfigRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	return c.JSON(http.StatusOK, h.experiments.GetSDKConfig(c.Request().Context(), req))
}

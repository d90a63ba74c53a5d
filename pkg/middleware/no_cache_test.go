package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestNoCache_SetsHeaders(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/sdk/config", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := NoCache()(func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	err := handler(c)
	assert.NoError(t, err)

	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.Equal(t, "0", rec.Header().Get("Expires"))
}

func TestNoCache_HeadersOnErrorResponse(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/sdk/config", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := NoCache()(func(c echo.Context) error {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "validation_error"})
	})

	assert.NoError(t, handler(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
}

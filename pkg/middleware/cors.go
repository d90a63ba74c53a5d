package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4/middleware"
)

// SDKAllowedMethods are the methods served to browser SDKs.
var SDKAllowedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodOptions,
}

// SDKCORSConfig returns the CORS configuration for the public evaluation and
// SDK routes. Any origin may call them; no credentials are shared.
func SDKCORSConfig() middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     SDKAllowedMethods,
		AllowCredentials: false,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
		},
		MaxAge: 86400,
	}
}

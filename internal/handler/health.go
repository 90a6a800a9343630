package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is a simple health-check endpoint used by load balancers and
// monitoring systems to verify that the service is running.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Root answers the bare domain so visitors and uptime checks do not get a 404.
func Root(c echo.Context) error {
	return c.String(http.StatusOK, "Alta Montaña API is running.")
}

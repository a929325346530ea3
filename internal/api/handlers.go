package api

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/playground/internal/metrics"
	"evalgo.org/playground/internal/playground"
)

// actionFunc is a playground operation driven by a raw JSON request body.
type actionFunc func(ctx context.Context, body []byte) (playground.Response, error)

// action adapts a body-driven playground operation to an Echo handler.
// Validation happens inside the operation so unknown fields are caught
// before any binding.
func (s *Server) action(fn actionFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return BadRequestError("Invalid request body", err.Error())
		}
		resp, err := fn(c.Request().Context(), body)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// healthCheck reports whether the container engine is reachable.
// @Summary Health check
// @Description Report whether the container engine is reachable
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{} "Healthy"
// @Failure 503 {object} map[string]interface{} "Container engine unreachable"
// @Router /health [get]
func (s *Server) healthCheck(c echo.Context) error {
	if err := s.connector.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   "container engine unreachable",
			"details": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"service":  "envoy-playground",
		"sessions": s.publisher.Count(),
	})
}

// getMetadata returns the limits clients validate against.
// @Summary Playground metadata
// @Tags System
// @Produce json
// @Success 200 {object} playground.Metadata
// @Router /metadata [get]
func (s *Server) getMetadata(c echo.Context) error {
	return c.JSON(http.StatusOK, s.playground.Metadata())
}

func (s *Server) getMetrics(c echo.Context) error {
	metrics.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}

// dumpResources returns the current playground state for client bootstrap.
// @Summary Current networks, proxies and services
// @Tags Playground
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} APIError "Unauthorized"
// @Failure 502 {object} APIError "Container engine failure"
// @Router /resources [get]
func (s *Server) dumpResources(c echo.Context) error {
	snap, err := s.playground.DumpResources(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

// clear removes every playground-owned container and network.
// @Summary Clear the playground
// @Description Remove every playground container and network
// @Tags Playground
// @Produce json
// @Security BearerAuth
// @Success 200 {object} playground.Response
// @Failure 403 {object} APIError "Forbidden - operator role required"
// @Failure 502 {object} APIError "Container engine failure"
// @Router /clear [post]
func (s *Server) clear(c echo.Context) error {
	resp, err := s.playground.Clear(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lakehouse-dev/scheduler/internal/auth"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
	"github.com/lakehouse-dev/scheduler/internal/service"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleServiceError maps service errors to HTTP status codes.
func handleServiceError(c *gin.Context, err error) {
	var notFoundErr *service.NotFoundError
	if errors.As(err, &notFoundErr) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: notFoundErr.Error()})
		return
	}
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
		return
	}
	var unauthorizedErr *service.UnauthorizedError
	if errors.As(err, &unauthorizedErr) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: unauthorizedErr.Message})
		return
	}
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: validationErr.Message})
		return
	}
	var conflictErr *service.ConflictError
	if errors.As(err, &conflictErr) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: conflictErr.Message})
		return
	}
	slog.Error("unhandled service error", "error", err, "path", c.FullPath())
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
}

// getActor resolves the caller or writes a 401 and returns false.
func getActor(c *gin.Context) (rbac.Actor, bool) {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return rbac.Actor{}, false
	}
	return actor, true
}

// parseID reads a numeric path parameter or writes a 400 and returns false.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("Invalid %s", name)})
		return 0, false
	}
	return uint(id), true
}

// dateRangeQuery reads two required YYYY-MM-DD query parameters.
func dateRangeQuery(c *gin.Context, fromKey, toKey string) (models.Date, models.Date, bool) {
	from, err := models.ParseDate(c.Query(fromKey))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("%s: %v", fromKey, err)})
		return models.Date{}, models.Date{}, false
	}
	to, err := models.ParseDate(c.Query(toKey))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("%s: %v", toKey, err)})
		return models.Date{}, models.Date{}, false
	}
	return from, to, true
}

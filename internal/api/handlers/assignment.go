package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
	"github.com/lakehouse-dev/scheduler/internal/service"
)

type AssignmentHandler struct {
	assignments *service.AssignmentService
	duties      *service.DutyService
}

func NewAssignmentHandler(assignments *service.AssignmentService, duties *service.DutyService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments, duties: duties}
}

// ListAssignments godoc
// @Summary List assignments
// @Tags assignments
// @Security BearerAuth
// @Produce json
// @Param status query string false "Only this status"
// @Param from query string false "Assigned on or after (YYYY-MM-DD), requires to"
// @Param to query string false "Assigned on or before (YYYY-MM-DD), requires from"
// @Success 200 {array} models.DutyAssignment
// @Failure 400 {object} ErrorResponse
// @Router /duties/assignments [get]
func (h *AssignmentHandler) ListAssignments(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		list []models.DutyAssignment
		err  error
	)
	switch {
	case c.Query("status") != "":
		list, err = h.assignments.ListByStatus(ctx, models.AssignmentStatus(c.Query("status")))
	case c.Query("from") != "" || c.Query("to") != "":
		from, to, ok := dateRangeQuery(c, "from", "to")
		if !ok {
			return
		}
		list, err = h.assignments.ListBetween(ctx, from, to)
	default:
		list, err = h.assignments.List(ctx)
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListMyAssignments godoc
// @Summary List the caller's assignments
// @Tags assignments
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.DutyAssignment
// @Router /duties/assignments/my [get]
func (h *AssignmentHandler) ListMyAssignments(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	list, err := h.assignments.ListByUser(c.Request.Context(), actor.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListOverdueAssignments godoc
// @Summary List overdue assignments, oldest first
// @Tags assignments
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.DutyAssignment
// @Router /duties/assignments/overdue [get]
func (h *AssignmentHandler) ListOverdueAssignments(c *gin.Context) {
	list, err := h.duties.ListOverdueAssignments(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetAssignment godoc
// @Summary Get an assignment
// @Tags assignments
// @Security BearerAuth
// @Produce json
// @Param id path int true "Assignment ID"
// @Success 200 {object} models.DutyAssignment
// @Failure 404 {object} ErrorResponse
// @Router /duties/assignments/{id} [get]
func (h *AssignmentHandler) GetAssignment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	a, err := h.assignments.Get(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// CompleteAssignment godoc
// @Summary Mark an assignment completed (assignee or admin)
// @Tags assignments
// @Security BearerAuth
// @Produce json
// @Param id path int true "Assignment ID"
// @Success 200 {object} models.DutyAssignment
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /duties/assignments/{id}/complete [put]
func (h *AssignmentHandler) CompleteAssignment(c *gin.Context) {
	h.transition(c, h.assignments.Complete)
}

// StartAssignment godoc
// @Summary Mark an assignment in progress (assignee or admin)
// @Tags assignments
// @Security BearerAuth
// @Produce json
// @Param id path int true "Assignment ID"
// @Success 200 {object} models.DutyAssignment
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /duties/assignments/{id}/start [put]
func (h *AssignmentHandler) StartAssignment(c *gin.Context) {
	h.transition(c, h.assignments.Start)
}

// CancelAssignment godoc
// @Summary Cancel an assignment (assignee or admin)
// @Tags assignments
// @Security BearerAuth
// @Produce json
// @Param id path int true "Assignment ID"
// @Success 200 {object} models.DutyAssignment
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /duties/assignments/{id}/cancel [put]
func (h *AssignmentHandler) CancelAssignment(c *gin.Context) {
	h.transition(c, h.assignments.Cancel)
}

type transitionFunc func(ctx context.Context, actor rbac.Actor, id uint) (*models.DutyAssignment, error)

func (h *AssignmentHandler) transition(c *gin.Context, fn transitionFunc) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	a, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/service"
)

type DutyHandler struct {
	duties      *service.DutyService
	assignments *service.AssignmentService
}

func NewDutyHandler(duties *service.DutyService, assignments *service.AssignmentService) *DutyHandler {
	return &DutyHandler{duties: duties, assignments: assignments}
}

// CreateDutyRequest is the body of POST /duties.
type CreateDutyRequest struct {
	Name           string          `json:"name" binding:"required"`
	Description    string          `json:"description"`
	EstimatedHours int             `json:"estimated_hours"`
	Priority       models.Priority `json:"priority"`
}

// UpdateDutyRequest is the body of PUT /duties/:id. Omitted fields are kept.
type UpdateDutyRequest struct {
	Name           *string          `json:"name"`
	Description    *string          `json:"description"`
	EstimatedHours *int             `json:"estimated_hours"`
	Priority       *models.Priority `json:"priority"`
	IsActive       *bool            `json:"is_active"`
}

// AssignDutyRequest is the body of POST /duties/:id/assign. UserID defaults
// to the caller.
type AssignDutyRequest struct {
	UserID       uint        `json:"user_id"`
	AssignedDate models.Date `json:"assigned_date"`
	Notes        string      `json:"notes"`
}

// ListDuties godoc
// @Summary List active duties, highest priority first
// @Tags duties
// @Security BearerAuth
// @Produce json
// @Param priority query string false "Only this priority"
// @Success 200 {array} models.Duty
// @Router /duties [get]
func (h *DutyHandler) ListDuties(c *gin.Context) {
	var (
		duties []models.Duty
		err    error
	)
	if p := c.Query("priority"); p != "" {
		priority, perr := models.ParsePriority(p)
		if perr != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: perr.Error()})
			return
		}
		duties, err = h.duties.ListByPriority(c.Request.Context(), priority)
	} else {
		duties, err = h.duties.ListActive(c.Request.Context())
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, duties)
}

// SearchDuties godoc
// @Summary Search active duties by name or description
// @Tags duties
// @Security BearerAuth
// @Produce json
// @Param q query string true "Search term"
// @Success 200 {array} models.Duty
// @Router /duties/search [get]
func (h *DutyHandler) SearchDuties(c *gin.Context) {
	duties, err := h.duties.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, duties)
}

// FilterDuties godoc
// @Summary Filter duties by priority and active flag
// @Tags duties
// @Security BearerAuth
// @Produce json
// @Param priority query string true "Priority"
// @Param active query bool false "Active flag (default true)"
// @Success 200 {array} models.Duty
// @Failure 400 {object} ErrorResponse
// @Router /duties/filter [get]
func (h *DutyHandler) FilterDuties(c *gin.Context) {
	priority, err := models.ParsePriority(c.Query("priority"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	active := true
	if raw := c.Query("active"); raw != "" {
		active, err = strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "active must be true or false"})
			return
		}
	}

	duties, err := h.duties.FilterByPriorityAndStatus(c.Request.Context(), priority, active)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, duties)
}

// ListOverdueDuties godoc
// @Summary List duties that have at least one overdue assignment
// @Tags duties
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Duty
// @Router /duties/overdue [get]
func (h *DutyHandler) ListOverdueDuties(c *gin.Context) {
	duties, err := h.duties.ListOverdueDuties(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, duties)
}

// DutyStats godoc
// @Summary List active duties with their assignment counts
// @Tags duties
// @Security BearerAuth
// @Produce json
// @Success 200 {array} service.DutyWithCount
// @Router /duties/stats [get]
func (h *DutyHandler) DutyStats(c *gin.Context) {
	stats, err := h.duties.ListWithAssignmentCount(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetDuty godoc
// @Summary Get a duty
// @Tags duties
// @Security BearerAuth
// @Produce json
// @Param id path int true "Duty ID"
// @Success 200 {object} models.Duty
// @Failure 404 {object} ErrorResponse
// @Router /duties/{id} [get]
func (h *DutyHandler) GetDuty(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	duty, err := h.duties.Get(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, duty)
}

// CreateDuty godoc
// @Summary Add a duty to the catalog (admin)
// @Tags duties
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param duty body CreateDutyRequest true "Duty"
// @Success 201 {object} models.Duty
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /duties [post]
func (h *DutyHandler) CreateDuty(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}

	var req CreateDutyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	duty, err := h.duties.Create(c.Request.Context(), actor, service.CreateDutyRequest{
		Name:           req.Name,
		Description:    req.Description,
		EstimatedHours: req.EstimatedHours,
		Priority:       req.Priority,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, duty)
}

// UpdateDuty godoc
// @Summary Update a duty (admin)
// @Tags duties
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Duty ID"
// @Param duty body UpdateDutyRequest true "Changes"
// @Success 200 {object} models.Duty
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /duties/{id} [put]
func (h *DutyHandler) UpdateDuty(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateDutyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	duty, err := h.duties.Update(c.Request.Context(), actor, id, service.UpdateDutyRequest{
		Name:           req.Name,
		Description:    req.Description,
		EstimatedHours: req.EstimatedHours,
		Priority:       req.Priority,
		IsActive:       req.IsActive,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, duty)
}

// DeactivateDuty godoc
// @Summary Deactivate a duty (admin)
// @Tags duties
// @Security BearerAuth
// @Param id path int true "Duty ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /duties/{id} [delete]
func (h *DutyHandler) DeactivateDuty(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.duties.Deactivate(c.Request.Context(), actor, id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AssignDuty godoc
// @Summary Assign a duty to a user
// @Tags duties
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Duty ID"
// @Param assignment body AssignDutyRequest true "Assignment"
// @Success 201 {object} models.DutyAssignment
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /duties/{id}/assign [post]
func (h *DutyHandler) AssignDuty(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	dutyID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req AssignDutyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if req.UserID == 0 {
		req.UserID = actor.ID
	}

	assignment, err := h.assignments.Assign(c.Request.Context(), actor, service.AssignDutyRequest{
		DutyID:       dutyID,
		UserID:       req.UserID,
		AssignedDate: req.AssignedDate,
		Notes:        req.Notes,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, assignment)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/service"
)

type ReservationHandler struct {
	svc *service.ReservationService
}

func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{svc: svc}
}

// CreateReservationRequest is the body of POST /reservations.
type CreateReservationRequest struct {
	StartDate models.Date `json:"start_date"`
	EndDate   models.Date `json:"end_date"`
	Notes     string      `json:"notes"`
}

// ListReservations godoc
// @Summary List current and future reservations
// @Tags reservations
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Reservation
// @Router /reservations [get]
func (h *ReservationHandler) ListReservations(c *gin.Context) {
	reservations, err := h.svc.ListCurrentAndFuture(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}

// ListMyReservations godoc
// @Summary List the caller's reservations
// @Tags reservations
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Reservation
// @Router /reservations/my [get]
func (h *ReservationHandler) ListMyReservations(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	reservations, err := h.svc.ListByUser(c.Request.Context(), actor.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}

// ListReservationsBetween godoc
// @Summary List reservations lying entirely inside a window
// @Tags reservations
// @Security BearerAuth
// @Produce json
// @Param from query string true "First day (YYYY-MM-DD)"
// @Param to query string true "Last day (YYYY-MM-DD)"
// @Success 200 {array} models.Reservation
// @Failure 400 {object} ErrorResponse
// @Router /reservations/between [get]
func (h *ReservationHandler) ListReservationsBetween(c *gin.Context) {
	from, to, ok := dateRangeQuery(c, "from", "to")
	if !ok {
		return
	}
	reservations, err := h.svc.ListBetween(c.Request.Context(), from, to)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}

// CheckAvailability godoc
// @Summary Check whether a date range is free
// @Tags reservations
// @Security BearerAuth
// @Produce json
// @Param start query string true "First day (YYYY-MM-DD)"
// @Param end query string true "Last day (YYYY-MM-DD)"
// @Success 200 {object} service.Availability
// @Failure 400 {object} ErrorResponse
// @Router /reservations/availability [get]
func (h *ReservationHandler) CheckAvailability(c *gin.Context) {
	start, end, ok := dateRangeQuery(c, "start", "end")
	if !ok {
		return
	}
	availability, err := h.svc.CheckAvailability(c.Request.Context(), start, end)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, availability)
}

// GetReservation godoc
// @Summary Get a reservation
// @Tags reservations
// @Security BearerAuth
// @Produce json
// @Param id path int true "Reservation ID"
// @Success 200 {object} models.Reservation
// @Failure 404 {object} ErrorResponse
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	reservation, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// CreateReservation godoc
// @Summary Book the resource for an inclusive date range
// @Tags reservations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param reservation body CreateReservationRequest true "Dates"
// @Success 201 {object} models.Reservation
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /reservations [post]
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}

	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	reservation, err := h.svc.Create(c.Request.Context(), actor, service.CreateReservationRequest{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Notes:     req.Notes,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reservation)
}

// DeleteReservation godoc
// @Summary Delete a reservation (owner or admin)
// @Tags reservations
// @Security BearerAuth
// @Param id path int true "Reservation ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /reservations/{id} [delete]
func (h *ReservationHandler) DeleteReservation(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), actor, id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lakehouse-dev/scheduler/internal/audit"
	"gorm.io/gorm"
)

// ListAuditLogs godoc
// @Summary List recent audit log entries (admin)
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Maximum entries (default 100)"
// @Success 200 {array} models.AuditLog
// @Failure 400 {object} ErrorResponse
// @Router /admin/audit-logs [get]
func ListAuditLogs(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
				return
			}
			limit = n
		}

		logs, err := audit.List(db.WithContext(c.Request.Context()), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch audit logs"})
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}

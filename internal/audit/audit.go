package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lakehouse-dev/scheduler/internal/models"
	"gorm.io/gorm"
)

// Audit actions
const (
	ActionSignup             = "signup"
	ActionLogin              = "login"
	ActionLoginFailed        = "login_failed"
	ActionUpdateUser         = "update_user"
	ActionChangeRole         = "change_role"
	ActionDeleteUser         = "delete_user"
	ActionCreateReservation  = "create_reservation"
	ActionDeleteReservation  = "delete_reservation"
	ActionCreateDuty         = "create_duty"
	ActionUpdateDuty         = "update_duty"
	ActionDeactivateDuty     = "deactivate_duty"
	ActionAssignDuty         = "assign_duty"
	ActionStartAssignment    = "start_assignment"
	ActionCompleteAssignment = "complete_assignment"
	ActionCancelAssignment   = "cancel_assignment"
)

// Resource prefixes
const (
	ResourceUser        = "user"
	ResourceReservation = "reservation"
	ResourceDuty        = "duty"
	ResourceAssignment  = "assignment"
)

// Resource formats a resource reference such as "reservation:12".
func Resource(kind string, id uint) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

// LogAction records an audit log entry. Pass the transaction of the mutation
// so the entry commits or rolls back with it.
func LogAction(db *gorm.DB, userID uint, action, resource string, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	log := models.AuditLog{
		UserID:      userID,
		Action:      action,
		Resource:    resource,
		DetailsJSON: string(detailsJSON),
		Timestamp:   time.Now(),
	}

	return db.Create(&log).Error
}

// List returns the most recent entries, newest first.
func List(db *gorm.DB, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var logs []models.AuditLog
	if err := db.Order("timestamp DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

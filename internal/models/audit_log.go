package models

import (
	"time"
)

// AuditLog represents a record of user actions
type AuditLog struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UserID      uint      `gorm:"index" json:"user_id"`
	Action      string    `gorm:"not null" json:"action"`        // e.g., "create_reservation", "complete_assignment"
	Resource    string    `gorm:"not null" json:"resource"`      // e.g., "reservation:12", "user:4"
	DetailsJSON string    `gorm:"type:text" json:"details_json"` // Additional context in JSON
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// Priority ranks duties. The total order is URGENT > HIGH > MEDIUM > LOW.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// ParsePriority accepts a priority name in any case.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if p.Rank() == 0 {
		return "", fmt.Errorf("invalid priority %q", s)
	}
	return p, nil
}

// Rank maps a priority onto 1..4; unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}
	return 0
}

// PriorityRankSQL is an ORDER BY expression yielding Priority.Rank for the
// duties.priority column.
const PriorityRankSQL = "CASE duties.priority WHEN 'URGENT' THEN 4 WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 WHEN 'LOW' THEN 1 ELSE 0 END"

// Duty is a catalog entry describing a recurring task. Duties are never
// deleted, only deactivated.
type Duty struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	Name           string    `gorm:"not null" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	EstimatedHours int       `json:"estimated_hours"`
	Priority       Priority  `gorm:"type:varchar(16);not null;default:'MEDIUM';index" json:"priority"`
	IsActive       bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Assignments []DutyAssignment `gorm:"foreignKey:DutyID" json:"-"`
}

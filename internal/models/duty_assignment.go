package models

import "time"

// AssignmentStatus represents the lifecycle state of a duty assignment
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "ASSIGNED"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentCompleted  AssignmentStatus = "COMPLETED"
	AssignmentCancelled  AssignmentStatus = "CANCELLED"
)

// ParseAssignmentStatus validates a status name.
func ParseAssignmentStatus(s string) (AssignmentStatus, bool) {
	switch st := AssignmentStatus(s); st {
	case AssignmentAssigned, AssignmentInProgress, AssignmentCompleted, AssignmentCancelled:
		return st, true
	}
	return "", false
}

// Terminal reports whether no further transition leaves s.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentCompleted || s == AssignmentCancelled
}

// CanTransitionTo reports whether the lifecycle allows s -> next.
// COMPLETED -> COMPLETED is allowed and treated as a re-write.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	switch s {
	case AssignmentAssigned:
		return next == AssignmentInProgress || next == AssignmentCompleted || next == AssignmentCancelled
	case AssignmentInProgress:
		return next == AssignmentCompleted || next == AssignmentCancelled
	case AssignmentCompleted:
		return next == AssignmentCompleted
	}
	return false
}

// DutyAssignment is one occurrence of a duty handed to a user.
// CompletedDate is set if and only if Status is COMPLETED.
type DutyAssignment struct {
	ID            uint             `gorm:"primarykey" json:"id"`
	AssignedDate  Date             `gorm:"not null;index" json:"assigned_date"`
	CompletedDate *Date            `json:"completed_date,omitempty"`
	Status        AssignmentStatus `gorm:"type:varchar(16);not null;default:'ASSIGNED';index" json:"status"`
	Notes         string           `gorm:"type:text" json:"notes,omitempty"`
	UserID        uint             `gorm:"not null;index" json:"user_id"`
	User          User             `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	DutyID        uint             `gorm:"not null;index" json:"duty_id"`
	Duty          Duty             `gorm:"foreignKey:DutyID" json:"duty,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// IsOverdue reports whether the assignment is still ASSIGNED on an active duty
// more than overdueAfterDays after its assigned date, as seen on today.
func (a *DutyAssignment) IsOverdue(duty *Duty, today Date, overdueAfterDays int) bool {
	if duty == nil || !duty.IsActive || a.Status != AssignmentAssigned {
		return false
	}
	return a.AssignedDate.Before(today.AddDays(-overdueAfterDays))
}

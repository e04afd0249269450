package service

import "github.com/lakehouse-dev/scheduler/internal/models"

// CreateReservationRequest holds parameters for booking the resource.
type CreateReservationRequest struct {
	StartDate models.Date
	EndDate   models.Date
	Notes     string
}

// Availability is the outcome of a read-only overlap check.
type Availability struct {
	Available bool                 `json:"available"`
	Conflicts []models.Reservation `json:"conflicts"`
}

// CreateDutyRequest holds parameters for a new catalog entry.
type CreateDutyRequest struct {
	Name           string
	Description    string
	EstimatedHours int
	Priority       models.Priority
}

// UpdateDutyRequest holds optional duty changes; nil fields are left alone.
type UpdateDutyRequest struct {
	Name           *string
	Description    *string
	EstimatedHours *int
	Priority       *models.Priority
	IsActive       *bool
}

// AssignDutyRequest holds parameters for assigning a duty to a user.
type AssignDutyRequest struct {
	DutyID       uint
	UserID       uint
	AssignedDate models.Date
	Notes        string
}

// DutyWithCount is a catalog entry with the number of its assignments.
type DutyWithCount struct {
	models.Duty
	AssignmentCount int64 `json:"assignment_count"`
}

// SignupRequest holds parameters for registering a user.
type SignupRequest struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
}

// UpdateUserRequest holds optional profile changes; nil fields are left alone.
type UpdateUserRequest struct {
	Email       *string
	DisplayName *string
	Password    *string
}

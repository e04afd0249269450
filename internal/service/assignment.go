package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lakehouse-dev/scheduler/internal/audit"
	"github.com/lakehouse-dev/scheduler/internal/events"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
	"gorm.io/gorm"
)

// AssignmentService drives the duty assignment lifecycle
// ASSIGNED -> IN_PROGRESS -> COMPLETED, with CANCELLED reachable from any
// non-terminal state.
type AssignmentService struct {
	base
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(db *gorm.DB, opts ...Option) *AssignmentService {
	return &AssignmentService{base: newBase(db, opts)}
}

// Assign creates a new ASSIGNED occurrence of an active duty for a user.
func (s *AssignmentService) Assign(ctx context.Context, actor rbac.Actor, req AssignDutyRequest) (*models.DutyAssignment, error) {
	if req.AssignedDate.IsZero() {
		return nil, &ValidationError{Message: "assigned_date is required"}
	}

	var a models.DutyAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var duty models.Duty
		if err := tx.Where("id = ? AND is_active = ?", req.DutyID, true).First(&duty).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("duty", req.DutyID)
			}
			return err
		}

		var user models.User
		if err := tx.First(&user, req.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user", req.UserID)
			}
			return err
		}

		a = models.DutyAssignment{
			AssignedDate: req.AssignedDate,
			Status:       models.AssignmentAssigned,
			Notes:        req.Notes,
			UserID:       user.ID,
			DutyID:       duty.ID,
		}
		if err := tx.Create(&a).Error; err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}
		a.User = user
		a.Duty = duty

		return audit.LogAction(tx, actor.ID, audit.ActionAssignDuty, audit.Resource(audit.ResourceAssignment, a.ID), map[string]interface{}{
			"duty_id":       duty.ID,
			"user_id":       user.ID,
			"assigned_date": a.AssignedDate.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAssignmentTransition(string(models.AssignmentAssigned))
	slog.Info("Duty assigned", "assignment_id", a.ID, "duty_id", a.DutyID, "user_id", a.UserID, "assigned_date", a.AssignedDate)
	s.publish(ctx, events.New(events.AssignmentCreated, audit.Resource(audit.ResourceAssignment, a.ID), actor.ID, map[string]any{
		"duty_id":       a.DutyID,
		"user_id":       a.UserID,
		"assigned_date": a.AssignedDate.String(),
	}))
	return &a, nil
}

// Complete marks an assignment COMPLETED with today's date. Completing an
// already completed assignment rewrites the completion date.
func (s *AssignmentService) Complete(ctx context.Context, actor rbac.Actor, id uint) (*models.DutyAssignment, error) {
	return s.transition(ctx, actor, id, models.AssignmentCompleted, audit.ActionCompleteAssignment, events.AssignmentCompleted)
}

// Start moves an ASSIGNED assignment to IN_PROGRESS.
func (s *AssignmentService) Start(ctx context.Context, actor rbac.Actor, id uint) (*models.DutyAssignment, error) {
	return s.transition(ctx, actor, id, models.AssignmentInProgress, audit.ActionStartAssignment, events.AssignmentStarted)
}

// Cancel moves a non-terminal assignment to CANCELLED.
func (s *AssignmentService) Cancel(ctx context.Context, actor rbac.Actor, id uint) (*models.DutyAssignment, error) {
	return s.transition(ctx, actor, id, models.AssignmentCancelled, audit.ActionCancelAssignment, events.AssignmentCancelled)
}

func (s *AssignmentService) transition(ctx context.Context, actor rbac.Actor, id uint, next models.AssignmentStatus, action string, evType events.Type) (*models.DutyAssignment, error) {
	var a models.DutyAssignment
	var previous models.AssignmentStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&a, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("assignment", id)
			}
			return err
		}

		if !rbac.CanMutate(actor, a.UserID) {
			return &UnauthorizedError{Message: fmt.Sprintf("not authorized to modify assignment %d", id)}
		}

		previous = a.Status
		if !previous.CanTransitionTo(next) {
			return &ValidationError{Message: fmt.Sprintf("assignment %d cannot move from %s to %s", id, previous, next)}
		}

		updates := map[string]interface{}{"status": next, "completed_date": nil}
		if next == models.AssignmentCompleted {
			updates["completed_date"] = s.today()
		}
		// Status and completed_date change in one statement so a reader never
		// sees one without the other. The status guard rejects a transition
		// that raced with another one committed after our read.
		res := tx.Model(&models.DutyAssignment{}).
			Where("id = ? AND status = ?", id, previous).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update assignment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Message: fmt.Sprintf("assignment %d changed concurrently, retry", id)}
		}

		if err := tx.Preload("Duty").Preload("User").First(&a, id).Error; err != nil {
			return err
		}

		return audit.LogAction(tx, actor.ID, action, audit.Resource(audit.ResourceAssignment, id), map[string]interface{}{
			"from": previous,
			"to":   next,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAssignmentTransition(string(next))
	slog.Info("Assignment status changed", "assignment_id", id, "from", previous, "to", next, "actor_id", actor.ID)
	data := map[string]any{"from": string(previous), "to": string(next), "user_id": a.UserID}
	if a.CompletedDate != nil {
		data["completed_date"] = a.CompletedDate.String()
	}
	s.publish(ctx, events.New(evType, audit.Resource(audit.ResourceAssignment, id), actor.ID, data))
	return &a, nil
}

// Get returns a single assignment with its duty and user.
func (s *AssignmentService) Get(ctx context.Context, id uint) (*models.DutyAssignment, error) {
	var a models.DutyAssignment
	err := s.read(ctx, func(tx *gorm.DB) error {
		return tx.Preload("Duty").Preload("User").First(&a, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("assignment", id)
		}
		return nil, err
	}
	return &a, nil
}

func (s *AssignmentService) find(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]models.DutyAssignment, error) {
	var list []models.DutyAssignment
	err := s.read(ctx, func(tx *gorm.DB) error {
		return tx.
			Preload("Duty").
			Preload("User").
			Scopes(scope).
			Order("assigned_date DESC, id DESC").
			Find(&list).Error
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// List returns every assignment, newest assigned date first.
func (s *AssignmentService) List(ctx context.Context) ([]models.DutyAssignment, error) {
	return s.find(ctx, func(db *gorm.DB) *gorm.DB { return db })
}

// ListByUser returns the assignments handed to userID.
func (s *AssignmentService) ListByUser(ctx context.Context, userID uint) ([]models.DutyAssignment, error) {
	return s.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	})
}

// ListByStatus returns the assignments currently in status.
func (s *AssignmentService) ListByStatus(ctx context.Context, status models.AssignmentStatus) ([]models.DutyAssignment, error) {
	if _, ok := models.ParseAssignmentStatus(string(status)); !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid status %q", status)}
	}
	return s.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", status)
	})
}

// ListBetween returns assignments whose assigned date lies in [from, to].
func (s *AssignmentService) ListBetween(ctx context.Context, from, to models.Date) ([]models.DutyAssignment, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return s.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("assigned_date >= ? AND assigned_date <= ?", from, to)
	})
}

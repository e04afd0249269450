package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lakehouse-dev/scheduler/internal/audit"
	"github.com/lakehouse-dev/scheduler/internal/events"
	"github.com/lakehouse-dev/scheduler/internal/metrics"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
	"gorm.io/gorm"
)

// ReservationService books the shared resource and guards the no-overlap
// invariant.
type ReservationService struct {
	base

	// mu serializes check-then-insert against the reservations table.
	mu sync.Mutex
}

// NewReservationService creates a new ReservationService.
func NewReservationService(db *gorm.DB, opts ...Option) *ReservationService {
	return &ReservationService{base: newBase(db, opts)}
}

func validateRange(start, end models.Date) error {
	if start.IsZero() || end.IsZero() {
		return &ValidationError{Message: "start_date and end_date are required"}
	}
	if end.Before(start) {
		return &ValidationError{Message: fmt.Sprintf("end_date %s is before start_date %s", end, start)}
	}
	return nil
}

// overlapping returns every reservation intersecting [start, end]; touching
// endpoints count as overlap.
func overlapping(tx *gorm.DB, start, end models.Date) ([]models.Reservation, error) {
	var found []models.Reservation
	err := tx.
		Where("start_date <= ? AND end_date >= ?", end, start).
		Order("start_date ASC, id ASC").
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("query overlapping reservations: %w", err)
	}
	return found, nil
}

func conflictMessage(conflicts []models.Reservation) string {
	parts := make([]string, len(conflicts))
	for i, r := range conflicts {
		parts[i] = fmt.Sprintf("#%d (%s to %s)", r.ID, r.StartDate, r.EndDate)
	}
	return "dates conflict with existing reservation " + strings.Join(parts, ", ")
}

// Create books [req.StartDate, req.EndDate] for the actor. The whole request
// is rejected with a ConflictError if any existing reservation overlaps it.
func (s *ReservationService) Create(ctx context.Context, actor rbac.Actor, req CreateReservationRequest) (*models.Reservation, error) {
	if err := validateRange(req.StartDate, req.EndDate); err != nil {
		s.metrics.RecordReservation(metrics.OutcomeInvalid)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res models.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, actor.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user", actor.ID)
			}
			return err
		}

		conflicts, err := overlapping(tx, req.StartDate, req.EndDate)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &ConflictError{Message: conflictMessage(conflicts)}
		}

		res = models.Reservation{
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Notes:     req.Notes,
			Status:    models.ReservationActive,
			UserID:    user.ID,
		}
		if err := tx.Create(&res).Error; err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
		res.User = user

		return audit.LogAction(tx, actor.ID, audit.ActionCreateReservation, audit.Resource(audit.ResourceReservation, res.ID), map[string]interface{}{
			"start_date": res.StartDate.String(),
			"end_date":   res.EndDate.String(),
		})
	})
	if err != nil {
		var conflictErr *ConflictError
		if errors.As(err, &conflictErr) {
			s.metrics.RecordReservation(metrics.OutcomeConflict)
			slog.Info("Reservation rejected", "user_id", actor.ID, "start_date", req.StartDate, "end_date", req.EndDate, "reason", conflictErr.Message)
		}
		return nil, err
	}

	s.metrics.RecordReservation(metrics.OutcomeCreated)
	slog.Info("Reservation created", "reservation_id", res.ID, "user_id", actor.ID, "start_date", res.StartDate, "end_date", res.EndDate)
	s.publish(ctx, events.New(events.ReservationCreated, audit.Resource(audit.ResourceReservation, res.ID), actor.ID, map[string]any{
		"start_date": res.StartDate.String(),
		"end_date":   res.EndDate.String(),
		"user_id":    res.UserID,
	}))
	return &res, nil
}

// CheckAvailability reports the reservations that would block [start, end]
// without booking anything.
func (s *ReservationService) CheckAvailability(ctx context.Context, start, end models.Date) (*Availability, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	conflicts, err := overlapping(s.db.WithContext(ctx), start, end)
	if err != nil {
		return nil, err
	}
	return &Availability{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// Get returns a single reservation by ID.
func (s *ReservationService) Get(ctx context.Context, id uint) (*models.Reservation, error) {
	var res models.Reservation
	err := s.read(ctx, func(tx *gorm.DB) error {
		return tx.Preload("User").First(&res, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("reservation", id)
		}
		return nil, err
	}
	return &res, nil
}

// ListCurrentAndFuture returns reservations ending today or later, ordered
// by start date.
func (s *ReservationService) ListCurrentAndFuture(ctx context.Context) ([]models.Reservation, error) {
	var list []models.Reservation
	today := s.today()
	err := s.read(ctx, func(tx *gorm.DB) error {
		return tx.
			Preload("User").
			Where("end_date >= ?", today).
			Order("start_date ASC, id ASC").
			Find(&list).Error
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListByUser returns every reservation held by userID, ordered by start date.
func (s *ReservationService) ListByUser(ctx context.Context, userID uint) ([]models.Reservation, error) {
	var list []models.Reservation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_date ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListBetween returns reservations lying entirely inside [from, to].
func (s *ReservationService) ListBetween(ctx context.Context, from, to models.Date) ([]models.Reservation, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	var list []models.Reservation
	err := s.read(ctx, func(tx *gorm.DB) error {
		return tx.
			Preload("User").
			Where("start_date >= ? AND end_date <= ?", from, to).
			Order("start_date ASC, id ASC").
			Find(&list).Error
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Delete removes a reservation. Only its owner or an administrator may do so.
func (s *ReservationService) Delete(ctx context.Context, actor rbac.Actor, id uint) error {
	var res models.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&res, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("reservation", id)
			}
			return err
		}

		if !rbac.CanMutate(actor, res.UserID) {
			return &UnauthorizedError{Message: fmt.Sprintf("not authorized to delete reservation %d", id)}
		}

		if err := tx.Delete(&res).Error; err != nil {
			return fmt.Errorf("delete reservation: %w", err)
		}

		return audit.LogAction(tx, actor.ID, audit.ActionDeleteReservation, audit.Resource(audit.ResourceReservation, res.ID), map[string]interface{}{
			"owner_id":   res.UserID,
			"start_date": res.StartDate.String(),
			"end_date":   res.EndDate.String(),
		})
	})
	if err != nil {
		return err
	}

	slog.Info("Reservation deleted", "reservation_id", id, "actor_id", actor.ID, "owner_id", res.UserID)
	s.publish(ctx, events.New(events.ReservationDeleted, audit.Resource(audit.ResourceReservation, id), actor.ID, map[string]any{
		"owner_id": res.UserID,
	}))
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lakehouse-dev/scheduler/internal/audit"
	"github.com/lakehouse-dev/scheduler/internal/events"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
	"gorm.io/gorm"
)

// DutyService manages the duty catalog and answers its read queries.
type DutyService struct {
	base
}

// NewDutyService creates a new DutyService.
func NewDutyService(db *gorm.DB, opts ...Option) *DutyService {
	return &DutyService{base: newBase(db, opts)}
}

const byRankDesc = models.PriorityRankSQL + " DESC"

func activeDuties(db *gorm.DB) *gorm.DB {
	return db.Where("duties.is_active = ?", true)
}

// ListActive returns active duties ordered by priority, highest first, then
// newest first.
func (s *DutyService) ListActive(ctx context.Context) ([]models.Duty, error) {
	var duties []models.Duty
	err := s.db.WithContext(ctx).
		Scopes(activeDuties).
		Order(byRankDesc).
		Order("duties.created_at DESC, duties.id DESC").
		Find(&duties).Error
	if err != nil {
		return nil, err
	}
	return duties, nil
}

// FilterByPriorityAndStatus returns duties with exactly the given priority and
// active flag, newest first.
func (s *DutyService) FilterByPriorityAndStatus(ctx context.Context, priority models.Priority, active bool) ([]models.Duty, error) {
	if priority.Rank() == 0 {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid priority %q", priority)}
	}
	var duties []models.Duty
	err := s.db.WithContext(ctx).
		Where("priority = ? AND is_active = ?", priority, active).
		Order("created_at DESC, id DESC").
		Find(&duties).Error
	if err != nil {
		return nil, err
	}
	return duties, nil
}

// ListByPriority returns active duties of one priority, newest first.
func (s *DutyService) ListByPriority(ctx context.Context, priority models.Priority) ([]models.Duty, error) {
	return s.FilterByPriorityAndStatus(ctx, priority, true)
}

// escapeLike makes term safe for a LIKE pattern using '\' as escape.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

// Search returns active duties whose name or description contains term,
// case-insensitively, ordered by priority then name.
func (s *DutyService) Search(ctx context.Context, term string) ([]models.Duty, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(term))) + "%"
	var duties []models.Duty
	err := s.db.WithContext(ctx).
		Scopes(activeDuties).
		Where(`(LOWER(duties.name) LIKE ? ESCAPE '\' OR LOWER(duties.description) LIKE ? ESCAPE '\')`, pattern, pattern).
		Order(byRankDesc).
		Order("duties.name ASC, duties.id ASC").
		Find(&duties).Error
	if err != nil {
		return nil, err
	}
	return duties, nil
}

// ListOverdueAssignments returns ASSIGNED assignments of active duties whose
// assigned date is more than the overdue window before today, oldest first.
func (s *DutyService) ListOverdueAssignments(ctx context.Context) ([]models.DutyAssignment, error) {
	today := s.today()
	cutoff := today.AddDays(-s.overdueAfterDays)

	var candidates []models.DutyAssignment
	err := s.read(ctx, func(tx *gorm.DB) error {
		return tx.
			Preload("Duty").
			Preload("User").
			Joins("JOIN duties ON duties.id = duty_assignments.duty_id").
			Where("duties.is_active = ? AND duty_assignments.status = ? AND duty_assignments.assigned_date < ?",
				true, models.AssignmentAssigned, cutoff).
			Order("duty_assignments.assigned_date ASC, duty_assignments.id ASC").
			Find(&candidates).Error
	})
	if err != nil {
		return nil, err
	}

	overdue := candidates[:0]
	for i := range candidates {
		if candidates[i].IsOverdue(&candidates[i].Duty, today, s.overdueAfterDays) {
			overdue = append(overdue, candidates[i])
		}
	}
	s.metrics.RecordOverdueQuery(len(overdue))
	return overdue, nil
}

// ListOverdueDuties returns each duty with at least one overdue assignment,
// once, in the order of its oldest overdue assignment.
func (s *DutyService) ListOverdueDuties(ctx context.Context) ([]models.Duty, error) {
	overdue, err := s.ListOverdueAssignments(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]bool, len(overdue))
	duties := make([]models.Duty, 0, len(overdue))
	for _, a := range overdue {
		if seen[a.DutyID] {
			continue
		}
		seen[a.DutyID] = true
		duties = append(duties, a.Duty)
	}
	return duties, nil
}

// ListWithAssignmentCount returns active duties, in ListActive order, with
// the number of assignments ever made for each.
func (s *DutyService) ListWithAssignmentCount(ctx context.Context) ([]DutyWithCount, error) {
	var duties []models.Duty
	var rows []struct {
		DutyID uint
		Total  int64
	}
	err := s.read(ctx, func(tx *gorm.DB) error {
		err := tx.
			Scopes(activeDuties).
			Order(byRankDesc).
			Order("duties.created_at DESC, duties.id DESC").
			Find(&duties).Error
		if err != nil {
			return err
		}
		err = tx.
			Model(&models.DutyAssignment{}).
			Select("duty_id, COUNT(*) AS total").
			Group("duty_id").
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("count assignments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.DutyID] = r.Total
	}
	result := make([]DutyWithCount, len(duties))
	for i, d := range duties {
		result[i] = DutyWithCount{Duty: d, AssignmentCount: counts[d.ID]}
	}
	return result, nil
}

// Get returns a single duty, active or not.
func (s *DutyService) Get(ctx context.Context, id uint) (*models.Duty, error) {
	var duty models.Duty
	if err := s.db.WithContext(ctx).First(&duty, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("duty", id)
		}
		return nil, err
	}
	return &duty, nil
}

func validateDuty(name string, hours int, priority models.Priority) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Message: "duty name is required"}
	}
	if hours < 0 {
		return &ValidationError{Message: "estimated_hours must not be negative"}
	}
	if priority.Rank() == 0 {
		return &ValidationError{Message: fmt.Sprintf("invalid priority %q", priority)}
	}
	return nil
}

func requireAdmin(actor rbac.Actor, what string) error {
	if !actor.IsAdmin() {
		return &UnauthorizedError{Message: "only administrators may " + what}
	}
	return nil
}

// Create adds a catalog entry. Administrators only.
func (s *DutyService) Create(ctx context.Context, actor rbac.Actor, req CreateDutyRequest) (*models.Duty, error) {
	if err := requireAdmin(actor, "create duties"); err != nil {
		return nil, err
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if err := validateDuty(req.Name, req.EstimatedHours, req.Priority); err != nil {
		return nil, err
	}

	duty := models.Duty{
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		EstimatedHours: req.EstimatedHours,
		Priority:       req.Priority,
		IsActive:       true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&duty).Error; err != nil {
			return fmt.Errorf("create duty: %w", err)
		}
		return audit.LogAction(tx, actor.ID, audit.ActionCreateDuty, audit.Resource(audit.ResourceDuty, duty.ID), map[string]interface{}{
			"name":     duty.Name,
			"priority": duty.Priority,
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Duty created", "duty_id", duty.ID, "name", duty.Name, "priority", duty.Priority)
	s.publish(ctx, events.New(events.DutyCreated, audit.Resource(audit.ResourceDuty, duty.ID), actor.ID, map[string]any{
		"name":     duty.Name,
		"priority": string(duty.Priority),
	}))
	return &duty, nil
}

// Update applies the non-nil fields of req. Administrators only.
func (s *DutyService) Update(ctx context.Context, actor rbac.Actor, id uint, req UpdateDutyRequest) (*models.Duty, error) {
	if err := requireAdmin(actor, "update duties"); err != nil {
		return nil, err
	}

	var duty models.Duty
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&duty, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("duty", id)
			}
			return err
		}

		if req.Name != nil {
			duty.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			duty.Description = *req.Description
		}
		if req.EstimatedHours != nil {
			duty.EstimatedHours = *req.EstimatedHours
		}
		if req.Priority != nil {
			duty.Priority = *req.Priority
		}
		if req.IsActive != nil {
			duty.IsActive = *req.IsActive
		}
		if err := validateDuty(duty.Name, duty.EstimatedHours, duty.Priority); err != nil {
			return err
		}

		// Select all so a false IsActive is written.
		if err := tx.Select("*").Omit("created_at").Save(&duty).Error; err != nil {
			return fmt.Errorf("update duty: %w", err)
		}
		return audit.LogAction(tx, actor.ID, audit.ActionUpdateDuty, audit.Resource(audit.ResourceDuty, id), map[string]interface{}{
			"name":      duty.Name,
			"priority":  duty.Priority,
			"is_active": duty.IsActive,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.DutyUpdated, audit.Resource(audit.ResourceDuty, id), actor.ID, map[string]any{
		"is_active": duty.IsActive,
	}))
	return &duty, nil
}

// Deactivate hides a duty from the catalog. Existing assignments are kept.
// Administrators only.
func (s *DutyService) Deactivate(ctx context.Context, actor rbac.Actor, id uint) error {
	if err := requireAdmin(actor, "deactivate duties"); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var duty models.Duty
		if err := tx.First(&duty, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("duty", id)
			}
			return err
		}
		if err := tx.Model(&duty).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivate duty: %w", err)
		}
		return audit.LogAction(tx, actor.ID, audit.ActionDeactivateDuty, audit.Resource(audit.ResourceDuty, id), nil)
	})
	if err != nil {
		return err
	}

	slog.Info("Duty deactivated", "duty_id", id, "actor_id", actor.ID)
	s.publish(ctx, events.New(events.DutyDeactivated, audit.Resource(audit.ResourceDuty, id), actor.ID, nil))
	return nil
}

// Import creates every duty in reqs that is not already in the catalog under
// the same name. It returns how many were created.
func (s *DutyService) Import(ctx context.Context, actor rbac.Actor, reqs []CreateDutyRequest) (int, error) {
	if err := requireAdmin(actor, "import duties"); err != nil {
		return 0, err
	}

	created := 0
	for _, req := range reqs {
		var existing int64
		if err := s.db.WithContext(ctx).Model(&models.Duty{}).Where("name = ?", strings.TrimSpace(req.Name)).Count(&existing).Error; err != nil {
			return created, err
		}
		if existing > 0 {
			slog.Debug("Skipping existing duty", "name", req.Name)
			continue
		}
		if _, err := s.Create(ctx, actor, req); err != nil {
			return created, fmt.Errorf("import duty %q: %w", req.Name, err)
		}
		created++
	}
	return created, nil
}

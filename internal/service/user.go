package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lakehouse-dev/scheduler/internal/audit"
	"github.com/lakehouse-dev/scheduler/internal/auth"
	"github.com/lakehouse-dev/scheduler/internal/events"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
	"gorm.io/gorm"
)

const minPasswordLength = 8

// UserService handles registration and user administration.
type UserService struct {
	base
}

// NewUserService creates a new UserService.
func NewUserService(db *gorm.DB, opts ...Option) *UserService {
	return &UserService{base: newBase(db, opts)}
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return &ValidationError{Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}
	return nil
}

func validateEmail(email string) error {
	if !strings.Contains(email, "@") {
		return &ValidationError{Message: fmt.Sprintf("invalid email %q", email)}
	}
	return nil
}

// uniqueness returns a ConflictError when username or email is held by a
// user other than exceptID.
func uniqueness(tx *gorm.DB, username, email string, exceptID uint) error {
	var count int64
	if username != "" {
		if err := tx.Model(&models.User{}).Where("username = ? AND id <> ?", username, exceptID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &ConflictError{Message: fmt.Sprintf("username %q is already taken", username)}
		}
	}
	if email != "" {
		if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, exceptID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &ConflictError{Message: fmt.Sprintf("email %q is already in use", email)}
		}
	}
	return nil
}

// Signup registers a new USER.
func (s *UserService) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" {
		return nil, &ValidationError{Message: "username is required"}
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     username,
		Email:        email,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if user.DisplayName == "" {
		user.DisplayName = username
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := uniqueness(tx, username, email, 0); err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return audit.LogAction(tx, user.ID, audit.ActionSignup, audit.Resource(audit.ResourceUser, user.ID), map[string]interface{}{
			"username": user.Username,
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("User signed up", "user_id", user.ID, "username", user.Username)
	return &user, nil
}

// EnsureAdmin creates an ADMIN with the given credentials unless a user with
// that username exists already. It reports whether a user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	if email == "" {
		email = username + "@localhost"
	}
	user, err := s.Signup(ctx, SignupRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return false, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("role", models.RoleAdmin).Error; err != nil {
		return false, fmt.Errorf("grant admin role: %w", err)
	}

	slog.Info("Created admin user", "username", username)
	return true, nil
}

// Get returns a user. Members may only look themselves up.
func (s *UserService) Get(ctx context.Context, actor rbac.Actor, id uint) (*models.User, error) {
	if !rbac.CanMutate(actor, id) {
		return nil, &UnauthorizedError{Message: fmt.Sprintf("not authorized to view user %d", id)}
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user", id)
		}
		return nil, err
	}
	return &user, nil
}

// List returns every user ordered by username. Administrators only.
func (s *UserService) List(ctx context.Context, actor rbac.Actor) ([]models.User, error) {
	if err := requireAdmin(actor, "list users"); err != nil {
		return nil, err
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListByRole returns users holding role. Administrators only.
func (s *UserService) ListByRole(ctx context.Context, actor rbac.Actor, role models.Role) ([]models.User, error) {
	if err := requireAdmin(actor, "list users"); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid role %q", role)}
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("role = ?", role).Order("username ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Search matches term against username and display name, case-insensitively.
// Administrators only.
func (s *UserService) Search(ctx context.Context, actor rbac.Actor, term string) ([]models.User, error) {
	if err := requireAdmin(actor, "search users"); err != nil {
		return nil, err
	}
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(term))) + "%"
	var users []models.User
	err := s.db.WithContext(ctx).
		Where(`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(display_name) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("username ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Update changes a user's profile. Users may edit themselves; administrators
// may edit anyone.
func (s *UserService) Update(ctx context.Context, actor rbac.Actor, id uint, req UpdateUserRequest) (*models.User, error) {
	if !rbac.CanMutate(actor, id) {
		return nil, &UnauthorizedError{Message: fmt.Sprintf("not authorized to update user %d", id)}
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user", id)
			}
			return err
		}

		changed := []string{}
		if req.Email != nil {
			email := strings.TrimSpace(*req.Email)
			if err := validateEmail(email); err != nil {
				return err
			}
			if err := uniqueness(tx, "", email, id); err != nil {
				return err
			}
			user.Email = email
			changed = append(changed, "email")
		}
		if req.DisplayName != nil {
			user.DisplayName = strings.TrimSpace(*req.DisplayName)
			changed = append(changed, "display_name")
		}
		if req.Password != nil {
			if err := validatePassword(*req.Password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				return err
			}
			user.PasswordHash = hash
			changed = append(changed, "password")
		}

		if err := tx.Save(&user).Error; err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		return audit.LogAction(tx, actor.ID, audit.ActionUpdateUser, audit.Resource(audit.ResourceUser, id), map[string]interface{}{
			"fields": changed,
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetRole changes a user's role. Administrators only; an administrator may
// not demote themselves.
func (s *UserService) SetRole(ctx context.Context, actor rbac.Actor, id uint, role models.Role) (*models.User, error) {
	if err := requireAdmin(actor, "change roles"); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid role %q", role)}
	}
	if actor.ID == id && role != models.RoleAdmin {
		return nil, &ValidationError{Message: "administrators cannot demote themselves"}
	}

	var user models.User
	var previous models.Role
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user", id)
			}
			return err
		}
		previous = user.Role
		if err := tx.Model(&user).Update("role", role).Error; err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		return audit.LogAction(tx, actor.ID, audit.ActionChangeRole, audit.Resource(audit.ResourceUser, id), map[string]interface{}{
			"from": previous,
			"to":   role,
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("User role changed", "user_id", id, "from", previous, "to", role, "actor_id", actor.ID)
	s.publish(ctx, events.New(events.UserRoleChanged, audit.Resource(audit.ResourceUser, id), actor.ID, map[string]any{
		"from": string(previous),
		"to":   string(role),
	}))
	return &user, nil
}

// Delete removes a user together with their reservations and assignments.
// Administrators only.
func (s *UserService) Delete(ctx context.Context, actor rbac.Actor, id uint) error {
	if err := requireAdmin(actor, "delete users"); err != nil {
		return err
	}
	if actor.ID == id {
		return &ValidationError{Message: "administrators cannot delete themselves"}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user", id)
			}
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.DutyAssignment{}).Error; err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Reservation{}).Error; err != nil {
			return fmt.Errorf("delete reservations: %w", err)
		}
		if err := tx.Delete(&user).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return audit.LogAction(tx, actor.ID, audit.ActionDeleteUser, audit.Resource(audit.ResourceUser, id), map[string]interface{}{
			"username": user.Username,
		})
	})
	if err != nil {
		return err
	}

	slog.Info("User deleted", "user_id", id, "actor_id", actor.ID)
	s.publish(ctx, events.New(events.UserDeleted, audit.Resource(audit.ResourceUser, id), actor.ID, nil))
	return nil
}

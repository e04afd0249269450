package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/service"
	"gorm.io/gorm"
)

// CreateDefaultAdmin creates a default admin user if SCHEDULER_ADMIN_USERNAME
// and SCHEDULER_ADMIN_PASSWORD are set and no users exist in the database
func CreateDefaultAdmin(db *gorm.DB) error {
	username := os.Getenv("SCHEDULER_ADMIN_USERNAME")
	password := os.Getenv("SCHEDULER_ADMIN_PASSWORD")
	email := os.Getenv("SCHEDULER_ADMIN_EMAIL")

	if username == "" || password == "" {
		slog.Info("No SCHEDULER_ADMIN_USERNAME or SCHEDULER_ADMIN_PASSWORD set, skipping default admin creation")
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		slog.Info("Users already exist, skipping default admin creation")
		return nil
	}

	if _, err := service.NewUserService(db).EnsureAdmin(context.Background(), username, email, password); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

package db

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"gorm.io/gorm"
)

// GetOrCreateInstanceID retrieves this deployment's instance ID, generating
// and storing one on first start. It tags published events with their origin.
// This should be called during server startup after migrations.
func GetOrCreateInstanceID(db *gorm.DB) (string, error) {
	var setting models.Setting

	err := db.Where("key = ?", models.SettingInstanceID).First(&setting).Error
	if err == nil {
		slog.Info("Found existing instance ID", "instance_id", setting.Value)
		return setting.Value, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to query settings: %w", err)
	}

	setting = models.Setting{
		Key:   models.SettingInstanceID,
		Value: uuid.New().String(),
	}
	if err := db.Create(&setting).Error; err != nil {
		return "", fmt.Errorf("failed to create instance ID: %w", err)
	}

	slog.Info("Generated new instance ID", "instance_id", setting.Value)
	return setting.Value, nil
}

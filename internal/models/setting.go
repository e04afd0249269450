package models

import (
	"time"
)

// Setting stores deployment-wide values as key-value pairs
type Setting struct {
	Key       string    `gorm:"primarykey;not null" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Known setting keys
const (
	SettingInstanceID = "instance_id"
)

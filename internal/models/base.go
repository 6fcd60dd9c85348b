package models

import (
	"time"

	"gorm.io/gorm"
)

// Base is the base model for all entities. IDs are auto-increment integers
// to match the dashboard's wire contract (0 means "not yet persisted").
type Base struct {
	ID        int64          `json:"id"        gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`
}

// Audit carries the operator attribution columns shared by templates and items.
type Audit struct {
	CreatedBy int64 `json:"createdBy" gorm:"index"`
	UpdatedBy int64 `json:"updatedBy"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Store is a physical or online grocery store. Products reference it (IN_STORE).
type Store struct {
	ID             string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name           string     `gorm:"size:255;not null" json:"name"`
	Brand          string     `gorm:"size:64;not null;index" json:"brand"`
	Address        string     `gorm:"size:255" json:"address,omitempty"`
	City           string     `gorm:"size:128" json:"city,omitempty"`
	ZipCode        string     `gorm:"size:16;index" json:"zip_code,omitempty"`
	Region         string     `gorm:"size:128" json:"region,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`
	LastIngestedAt *time.Time `json:"last_ingested_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// UserStorePreference links a user to a store they shop at
type UserStorePreference struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:varchar(36);not null;uniqueIndex:idx_user_store" json:"user_id"`
	StoreID   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_store" json:"store_id"`
	Priority  int       `gorm:"not null;default:0" json:"priority"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	Store     *Store    `gorm:"foreignKey:StoreID" json:"store,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

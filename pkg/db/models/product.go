package models

import (
	"time"

	"github.com/google/uuid"
)

// Product groups purchasable variants under one catalog entry.
type Product struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title     string    `gorm:"column:title;not null"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	Variants  []Variant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

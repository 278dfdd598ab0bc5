package models

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

// Product is a store item. The discount columns are a projection of the best
// active Discount, refreshed by the pricing sync.
type Product struct {
	ID          string    `gorm:"type:varchar(128);primaryKey" json:"id"`
	StoreID     string    `gorm:"type:varchar(64);not null;index" json:"store_id"`
	Name        string    `gorm:"size:255;not null;index" json:"name"`
	Brand       string    `gorm:"size:128" json:"brand,omitempty"`
	Category    string    `gorm:"size:128;index" json:"category,omitempty"`
	Price       float64   `gorm:"not null" json:"price"`
	Unit        string    `gorm:"size:64;not null;default:'unit'" json:"unit"`
	EAN         string    `gorm:"size:32;index" json:"ean,omitempty"`
	ImageURL    string    `gorm:"size:512" json:"image_url,omitempty"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Origin      string    `gorm:"size:128" json:"origin,omitempty"`
	Nutrition   JSONMap   `gorm:"type:jsonb" json:"nutrition,omitempty"`
	LastUpdated time.Time `json:"last_updated"`

	DiscountPrice      *float64         `json:"discount_price,omitempty"`
	DiscountPercentage *float64         `json:"discount_percentage,omitempty"`
	HasActiveDiscount  bool             `gorm:"not null;default:false;index" json:"has_active_discount"`
	NameVector         *pgvector.Vector `gorm:"type:vector(64)" json:"-"`

	Store *Store `gorm:"foreignKey:StoreID" json:"store,omitempty"`
}

// EffectivePrice is the discount price when one is active, else the shelf price
func (p *Product) EffectivePrice() float64 {
	if p.HasActiveDiscount && p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}

// Discount is a time-boxed offer on a product
type Discount struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	ProductID          string    `gorm:"type:varchar(128);not null;index" json:"product_id"`
	StoreID            string    `gorm:"type:varchar(64);not null;index" json:"store_id"`
	DiscountPrice      float64   `gorm:"not null" json:"discount_price"`
	DiscountPercentage *float64  `json:"discount_percentage,omitempty"`
	ValidFrom          time.Time `gorm:"type:date;not null" json:"valid_from"`
	ValidTo            time.Time `gorm:"type:date;not null;index" json:"valid_to"`
	Description        string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// ActiveOn reports whether the discount is valid on day
func (d *Discount) ActiveOn(day time.Time) bool {
	return !day.Before(d.ValidFrom) && !day.After(d.ValidTo)
}

package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductArchived ProductStatus = "archived"
)

// Product is a catalog entry investors can allocate capital to.
// UnitPrice is minor units per piece.
type Product struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"not null" json:"name"`
	SKU       string        `gorm:"not null;uniqueIndex" json:"sku"`
	UnitPrice int64         `gorm:"not null" json:"unit_price"`
	Status    ProductStatus `gorm:"not null" json:"status"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Product) TableName() string { return "products" }

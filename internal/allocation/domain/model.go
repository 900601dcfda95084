package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ProductAllocation is capital committed to a product batch. Quantity
// tracks pieces bought; QuantityRemaining shrinks as the investor
// withdraws pieces back out. TotalInvestment is frozen at creation.
type ProductAllocation struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	InvestorID        snowflake.ID `gorm:"not null;index;uniqueIndex:ux_product_alloc_idem,priority:1" json:"investor_id"`
	ProductID         snowflake.ID `gorm:"not null;index" json:"product_id"`
	TotalInvestment   int64        `gorm:"not null" json:"total_investment"`
	UnitPrice         int64        `gorm:"not null" json:"unit_price"`
	Quantity          int64        `gorm:"not null" json:"quantity"`
	QuantityRemaining int64        `gorm:"not null" json:"quantity_remaining"`
	ProfitGenerated   int64        `gorm:"not null;default:0" json:"profit_generated"`
	CapitalReturned   int64        `gorm:"not null;default:0" json:"capital_returned"`
	IdempotencyKey    string       `gorm:"not null;uniqueIndex:ux_product_alloc_idem,priority:2" json:"idempotency_key"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ProductAllocation) TableName() string { return "product_allocations" }

// EquipmentAllocation is a share of one piece of equipment.
// InvestmentBps is the ownership snapshot frozen at allocation time:
// round(amount / purchase_price * 10000). Later revaluations of the
// equipment never change it.
type EquipmentAllocation struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	InvestorID          snowflake.ID `gorm:"not null;index;uniqueIndex:ux_equipment_alloc_idem,priority:1" json:"investor_id"`
	EquipmentID         snowflake.ID `gorm:"not null;index" json:"equipment_id"`
	AmountAllocated     int64        `gorm:"not null" json:"amount_allocated"`
	InvestmentBps       int64        `gorm:"not null" json:"investment_bps"`
	TotalProfitReceived int64        `gorm:"not null;default:0" json:"total_profit_received"`
	HasExited           bool         `gorm:"not null;default:false" json:"has_exited"`
	ExitedAt            *time.Time   `json:"exited_at,omitempty"`
	IdempotencyKey      string       `gorm:"not null;uniqueIndex:ux_equipment_alloc_idem,priority:2" json:"idempotency_key"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (EquipmentAllocation) TableName() string { return "equipment_allocations" }

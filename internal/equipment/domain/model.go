package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type EquipmentStatus string

const (
	EquipmentActive  EquipmentStatus = "active"
	EquipmentRetired EquipmentStatus = "retired"
)

// ValuationBasis picks which price an equipment-share exit pays out
// against.
type ValuationBasis string

const (
	BasisPurchasePrice ValuationBasis = "purchase_price"
	BasisCurrentValue  ValuationBasis = "current_value"
)

func (b ValuationBasis) Valid() bool {
	return b == BasisPurchasePrice || b == BasisCurrentValue
}

// Equipment is a production asset (sewing machines, cutters, pressing
// units) that investors buy shares of. InvestorPoolShareBps is the slice
// of each job's net profit that goes to the investor pool; the rest is
// company profit. Frozen per equipment so a policy change never rewrites
// history.
type Equipment struct {
	ID                   snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name                 string          `gorm:"not null" json:"name"`
	PurchasePrice        int64           `gorm:"not null" json:"purchase_price"`
	CurrentValue         int64           `gorm:"not null" json:"current_value"`
	InvestorPoolShareBps int64           `gorm:"not null" json:"investor_pool_share_bps"`
	ExitValuationBasis   ValuationBasis  `gorm:"not null" json:"exit_valuation_basis"`
	TotalRevenue         int64           `gorm:"not null;default:0" json:"total_revenue"`
	TotalProfit          int64           `gorm:"not null;default:0" json:"total_profit"`
	MaintenanceCost      int64           `gorm:"not null;default:0" json:"maintenance_cost"`
	Status               EquipmentStatus `gorm:"not null" json:"status"`
	CreatedAt            time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Equipment) TableName() string { return "equipment" }

// JobUsage records one production job run on a piece of equipment.
// NetProfit = Revenue - MaterialCost - LaborCost - MaintenanceCost.
// CompanyProfit and InvestorPoolProfit stay zero until the distribution
// engine splits the job.
type JobUsage struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	EquipmentID        snowflake.ID `gorm:"not null;index" json:"equipment_id"`
	Reference          string       `gorm:"not null;uniqueIndex" json:"reference"`
	Revenue            int64        `gorm:"not null" json:"revenue"`
	MaterialCost       int64        `gorm:"not null;default:0" json:"material_cost"`
	LaborCost          int64        `gorm:"not null;default:0" json:"labor_cost"`
	MaintenanceCost    int64        `gorm:"not null;default:0" json:"maintenance_cost"`
	NetProfit          int64        `gorm:"not null" json:"net_profit"`
	CompanyProfit      int64        `gorm:"not null;default:0" json:"company_profit"`
	InvestorPoolProfit int64        `gorm:"not null;default:0" json:"investor_pool_profit"`
	ProfitDistributed  bool         `gorm:"not null;default:false" json:"profit_distributed"`
	DistributedAt      *time.Time   `json:"distributed_at,omitempty"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (JobUsage) TableName() string { return "equipment_job_usages" }

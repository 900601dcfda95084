package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ProfitDistribution is one investor's cut of one job. Immutable.
// GrossProfit and CompanyShare repeat the job-level figures on every row
// so a single row is auditable without joins.
type ProfitDistribution struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	JobUsageID    snowflake.ID `gorm:"not null;index" json:"job_usage_id"`
	EquipmentID   snowflake.ID `gorm:"not null;index" json:"equipment_id"`
	InvestorID    snowflake.ID `gorm:"not null;index" json:"investor_id"`
	AllocationID  snowflake.ID `gorm:"not null" json:"allocation_id"`
	GrossProfit   int64        `gorm:"not null" json:"gross_profit"`
	CompanyShare  int64        `gorm:"not null" json:"company_share"`
	InvestorShare int64        `gorm:"not null" json:"investor_share"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ProfitDistribution) TableName() string { return "profit_distributions" }

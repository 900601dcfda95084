package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvestorStatus is the lifecycle state of an investor account.
type InvestorStatus string

const (
	StatusPendingVerification InvestorStatus = "pending_verification"
	StatusActive              InvestorStatus = "active"
	StatusSuspended           InvestorStatus = "suspended"
	StatusExited              InvestorStatus = "exited"
)

func (s InvestorStatus) Valid() bool {
	switch s {
	case StatusPendingVerification, StatusActive, StatusSuspended, StatusExited:
		return true
	}
	return false
}

// CanTransitionTo enforces the investor lifecycle:
// pending_verification -> active, active <-> suspended, active|suspended -> exited.
func (s InvestorStatus) CanTransitionTo(next InvestorStatus) bool {
	switch s {
	case StatusPendingVerification:
		return next == StatusActive
	case StatusActive:
		return next == StatusSuspended || next == StatusExited
	case StatusSuspended:
		return next == StatusActive || next == StatusExited
	}
	return false
}

// Investor is the registry row plus the cached balance projection.
// Amounts are minor units. CashBalance is deposit money available for
// allocation or withdrawal, ProfitBalance is distributed profit available
// for withdrawal only. The cached columns are derivable by folding the
// investor's ledger entries; the consistency job cross-checks them.
type Investor struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name           string            `gorm:"not null" json:"name"`
	Email          string            `gorm:"not null;uniqueIndex" json:"email"`
	Phone          string            `json:"phone,omitempty"`
	Status         InvestorStatus    `gorm:"not null" json:"status"`
	CashBalance    int64             `gorm:"not null;default:0" json:"cash_balance"`
	ProfitBalance  int64             `gorm:"not null;default:0" json:"profit_balance"`
	TotalInvested  int64             `gorm:"not null;default:0" json:"total_invested"`
	TotalProfit    int64             `gorm:"not null;default:0" json:"total_profit"`
	TotalWithdrawn int64             `gorm:"not null;default:0" json:"total_withdrawn"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Investor) TableName() string { return "investors" }

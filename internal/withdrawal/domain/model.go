package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// WithdrawalType selects what the investor is pulling out.
type WithdrawalType string

const (
	TypeCash WithdrawalType = "cash"
	// Distributed profit; never mixes with the cash balance.
	TypeProfit WithdrawalType = "profit"
	// Pieces bought back out of a product allocation.
	TypeProduct WithdrawalType = "product"
	// Full exit of an equipment share at the equipment's valuation
	// basis.
	TypeEquipmentShare WithdrawalType = "equipment_share"
)

func (t WithdrawalType) Valid() bool {
	switch t {
	case TypeCash, TypeProfit, TypeProduct, TypeEquipmentShare:
		return true
	}
	return false
}

type WithdrawalStatus string

const (
	StatusPending  WithdrawalStatus = "pending"
	StatusApproved WithdrawalStatus = "approved"
	StatusRejected WithdrawalStatus = "rejected"
)

// WithdrawalRequest is a two-phase exit: validated on submission,
// re-validated and settled on approval. Amount is the figure quoted at
// submission; ApprovedAmount is what actually moved, recomputed at
// decision time.
type WithdrawalRequest struct {
	ID                    snowflake.ID     `gorm:"primaryKey" json:"id"`
	InvestorID            snowflake.ID     `gorm:"not null;index;uniqueIndex:ux_withdrawal_idem,priority:1" json:"investor_id"`
	Reference             string           `gorm:"not null;uniqueIndex" json:"reference"`
	Type                  WithdrawalType   `gorm:"not null" json:"type"`
	Status                WithdrawalStatus `gorm:"not null;index" json:"status"`
	Amount                int64            `gorm:"not null" json:"amount"`
	ApprovedAmount        int64            `gorm:"not null;default:0" json:"approved_amount"`
	ProductAllocationID   snowflake.ID     `gorm:"not null;default:0" json:"product_allocation_id,omitempty"`
	EquipmentAllocationID snowflake.ID     `gorm:"not null;default:0" json:"equipment_allocation_id,omitempty"`
	Quantity              int64            `gorm:"not null;default:0" json:"quantity,omitempty"`
	IdempotencyKey        string           `gorm:"not null;uniqueIndex:ux_withdrawal_idem,priority:2" json:"idempotency_key"`
	Reason                string           `json:"reason,omitempty"`
	DecidedAt             *time.Time       `json:"decided_at,omitempty"`
	DecidedBy             string           `json:"decided_by,omitempty"`
	CreatedAt             time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (WithdrawalRequest) TableName() string { return "withdrawal_requests" }

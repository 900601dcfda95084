package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type DepositStatus string

const (
	StatusAwaitingPayment     DepositStatus = "awaiting_payment"
	StatusAwaitingReceipt     DepositStatus = "awaiting_receipt"
	StatusPendingConfirmation DepositStatus = "pending_confirmation"
	StatusConfirmed           DepositStatus = "confirmed"
	StatusCancelled           DepositStatus = "cancelled"
	StatusExpired             DepositStatus = "expired"
)

// CanTransitionTo enforces the deposit funnel. Confirmed, cancelled and
// expired are terminal.
func (s DepositStatus) CanTransitionTo(next DepositStatus) bool {
	switch s {
	case StatusAwaitingPayment:
		return next == StatusAwaitingReceipt || next == StatusCancelled || next == StatusExpired
	case StatusAwaitingReceipt:
		return next == StatusPendingConfirmation || next == StatusCancelled
	case StatusPendingConfirmation:
		return next == StatusConfirmed || next == StatusCancelled
	}
	return false
}

func (s DepositStatus) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Deposit is an inbound capital transfer. Amount is what lands on the
// investor's cash balance: gross minus transfer charges. The row is
// immutable once confirmed; the ledger entry it spawns shares its ID as
// source_id.
type Deposit struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	InvestorID     snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_deposit_idem,priority:1" json:"investor_id"`
	Reference      string        `gorm:"not null;uniqueIndex" json:"reference"`
	GrossAmount    int64         `gorm:"not null" json:"gross_amount"`
	Charges        int64         `gorm:"not null;default:0" json:"charges"`
	Amount         int64         `gorm:"not null" json:"amount"`
	PaymentMethod  string        `json:"payment_method,omitempty"`
	Status         DepositStatus `gorm:"not null;index" json:"status"`
	IdempotencyKey string        `gorm:"not null;uniqueIndex:ux_deposit_idem,priority:2" json:"idempotency_key"`
	ReceiptURL     string        `json:"receipt_url,omitempty"`
	ConfirmedAt    *time.Time    `json:"confirmed_at,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Deposit) TableName() string { return "deposits" }

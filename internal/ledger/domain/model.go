package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EntryType classifies a ledger entry. The direction of every type is
// fixed, so folding the ledger is deterministic.
type EntryType string

const (
	EntryDeposit             EntryType = "deposit"
	EntryAllocationProduct   EntryType = "allocation_product"
	EntryAllocationEquipment EntryType = "allocation_equipment"
	EntryProfitCredit        EntryType = "profit_credit"
	EntryWithdrawal          EntryType = "withdrawal"
	EntryRefund              EntryType = "refund"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryDeposit, EntryAllocationProduct, EntryAllocationEquipment,
		EntryProfitCredit, EntryWithdrawal, EntryRefund:
		return true
	}
	return false
}

// IsCredit reports whether the entry type increases its account.
func (t EntryType) IsCredit() bool {
	switch t {
	case EntryDeposit, EntryProfitCredit, EntryRefund:
		return true
	}
	return false
}

// Account selects which cached balance an entry mutates.
type Account string

const (
	AccountCash   Account = "cash"
	AccountProfit Account = "profit"
)

func (a Account) Valid() bool {
	return a == AccountCash || a == AccountProfit
}

// Entry is one append-only row of the investor ledger. BalanceAfter and
// ProfitAfter snapshot both cached balances as of this entry, so any
// prefix of the ledger is auditable without a fold.
// The unique index spans (source_type, source_id, investor_id) so one
// source event may fan out to many investors (profit distribution) while
// staying replay-safe per investor.
type Entry struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	InvestorID   snowflake.ID `gorm:"not null;index;uniqueIndex:ux_entry_source,priority:3" json:"investor_id"`
	Type         EntryType    `gorm:"not null" json:"type"`
	Account      Account      `gorm:"not null" json:"account"`
	Amount       int64        `gorm:"not null" json:"amount"`
	BalanceAfter int64        `gorm:"not null" json:"balance_after"`
	ProfitAfter  int64        `gorm:"not null" json:"profit_after"`
	SourceType   string       `gorm:"not null;uniqueIndex:ux_entry_source,priority:1" json:"source_type"`
	SourceID     snowflake.ID `gorm:"not null;uniqueIndex:ux_entry_source,priority:2" json:"source_id"`
	Note         string       `json:"note,omitempty"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Entry) TableName() string { return "investor_transactions" }

// EntryDraft is the projector input. The source pair identifies the
// business event that caused the mutation and doubles as the idempotency
// guard: replaying the same (source_type, source_id, investor_id) is a
// no-op that returns the previously written entry.
type EntryDraft struct {
	InvestorID snowflake.ID
	Type       EntryType
	Account    Account
	Amount     int64
	SourceType string
	SourceID   snowflake.ID
	Note       string
}

// Balances is the result of folding a ledger.
type Balances struct {
	Cash   int64 `json:"cash"`
	Profit int64 `json:"profit"`
}

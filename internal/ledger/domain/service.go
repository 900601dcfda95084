package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/benangcapital/benang/pkg/db/pagination"
)

var (
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidAccount      = errors.New("invalid_account")
	ErrInvalidEntryType    = errors.New("invalid_entry_type")
	ErrMissingSource       = errors.New("missing_source")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
)

type ListEntryRequest struct {
	InvestorID snowflake.ID `form:"-"`
	Type       EntryType    `form:"type"`
	Account    Account      `form:"account"`
	pagination.Pagination
}

type ListEntryResponse struct {
	Entries  []Entry             `json:"transactions"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

// Projector is the only writer of investor cached balances. Every
// balance mutation in the system funnels through Apply.
type Projector interface {
	// Apply validates the draft, locks the investor row, appends the
	// ledger entry and persists the new cached balances. It must run
	// inside the caller's transaction. Replaying a draft whose
	// (source_type, source_id, investor_id) already exists returns the
	// stored entry without touching balances.
	Apply(ctx context.Context, tx *gorm.DB, draft EntryDraft) (*Entry, error)

	ListByInvestor(ctx context.Context, req ListEntryRequest) (ListEntryResponse, error)

	// Replay folds every entry of the investor in insertion order and
	// returns the resulting balances. The consistency checker compares
	// the fold against the cached columns.
	Replay(ctx context.Context, investorID snowflake.ID) (Balances, error)
}

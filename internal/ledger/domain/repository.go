package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type EntryCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	InvestorID snowflake.ID
	Type       EntryType
	Account    Account
	Cursor     *EntryCursor
	Limit      int
}

type Repository interface {
	// InsertIdempotent appends the entry using ON CONFLICT DO NOTHING on
	// the source unique index. It reports whether a row was written;
	// false means the source was already projected.
	InsertIdempotent(ctx context.Context, tx *gorm.DB, entry *Entry) (bool, error)
	FindBySource(ctx context.Context, db *gorm.DB, sourceType string, sourceID, investorID snowflake.ID) (*Entry, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Entry, error)
	// ListAllAsc streams every entry of the investor in insertion order.
	ListAllAsc(ctx context.Context, db *gorm.DB, investorID snowflake.ID) ([]*Entry, error)
	// UpdateInvestorProjection persists the cached balance columns
	// computed by the projector.
	UpdateInvestorProjection(ctx context.Context, tx *gorm.DB, investorID snowflake.ID, p InvestorProjection) error
}

// InvestorProjection is the cached-column update emitted alongside each
// applied entry.
type InvestorProjection struct {
	CashBalance    int64
	ProfitBalance  int64
	TotalInvested  int64
	TotalProfit    int64
	TotalWithdrawn int64
}

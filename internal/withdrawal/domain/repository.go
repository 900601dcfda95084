package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	InvestorID snowflake.ID
	Status     WithdrawalStatus
	Type       WithdrawalType
	AfterID    snowflake.ID
	Limit      int
}

// Decision finalizes a request row.
type Decision struct {
	Status         WithdrawalStatus
	ApprovedAmount int64
	Reason         string
	DecidedAt      time.Time
	DecidedBy      string
}

type Repository interface {
	// Insert appends with ON CONFLICT DO NOTHING on the
	// (investor_id, idempotency_key) index and reports whether a row was
	// written.
	Insert(ctx context.Context, db *gorm.DB, request *WithdrawalRequest) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*WithdrawalRequest, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*WithdrawalRequest, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, investorID snowflake.ID, key string) (*WithdrawalRequest, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*WithdrawalRequest, error)
	Decide(ctx context.Context, tx *gorm.DB, id snowflake.ID, decision Decision) error
}

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	InvestorID snowflake.ID
	Status     DepositStatus
	AfterID    snowflake.ID
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, deposit *Deposit) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Deposit, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Deposit, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, investorID snowflake.ID, key string) (*Deposit, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Deposit, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, next DepositStatus) error
	SetReceipt(ctx context.Context, db *gorm.DB, id snowflake.ID, receiptURL string) error
	SetConfirmed(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error
	// ClaimExpirable locks (SKIP LOCKED on postgres) a batch of
	// awaiting_payment deposits created before the cutoff.
	ClaimExpirable(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]*Deposit, error)
}

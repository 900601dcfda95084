package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status  InvestorStatus
	AfterID snowflake.ID
	Limit   int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, investor *Investor) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Investor, error)
	// FindByIDForUpdate locks the investor row for the duration of the
	// caller's transaction. The locking clause is skipped on sqlite.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Investor, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Investor, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, next InvestorStatus) error
}

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ProductAllocationFilter struct {
	InvestorID snowflake.ID
	ProductID  snowflake.ID
	AfterID    snowflake.ID
	Limit      int
}

type EquipmentAllocationFilter struct {
	InvestorID  snowflake.ID
	EquipmentID snowflake.ID
	ActiveOnly  bool
	AfterID     snowflake.ID
	Limit       int
}

type Repository interface {
	// InsertProductAllocation appends with ON CONFLICT DO NOTHING on the
	// (investor_id, idempotency_key) index and reports whether a row was
	// written.
	InsertProductAllocation(ctx context.Context, tx *gorm.DB, alloc *ProductAllocation) (bool, error)
	FindProductAllocationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ProductAllocation, error)
	FindProductAllocationByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*ProductAllocation, error)
	FindProductAllocationByKey(ctx context.Context, db *gorm.DB, investorID snowflake.ID, key string) (*ProductAllocation, error)
	ListProductAllocations(ctx context.Context, db *gorm.DB, filter ProductAllocationFilter) ([]*ProductAllocation, error)
	// ReturnCapital books a partial product exit: quantity_remaining
	// shrinks, capital_returned grows.
	ReturnCapital(ctx context.Context, tx *gorm.DB, id snowflake.ID, quantity, amount int64) error

	InsertEquipmentAllocation(ctx context.Context, tx *gorm.DB, alloc *EquipmentAllocation) (bool, error)
	FindEquipmentAllocationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*EquipmentAllocation, error)
	FindEquipmentAllocationByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*EquipmentAllocation, error)
	FindEquipmentAllocationByKey(ctx context.Context, db *gorm.DB, investorID snowflake.ID, key string) (*EquipmentAllocation, error)
	ListEquipmentAllocations(ctx context.Context, db *gorm.DB, filter EquipmentAllocationFilter) ([]*EquipmentAllocation, error)
	// SumActiveAllocated totals amount_allocated over non-exited
	// allocations of one piece of equipment. Call with the equipment row
	// locked.
	SumActiveAllocated(ctx context.Context, tx *gorm.DB, equipmentID snowflake.ID) (int64, error)
	// SumActiveInvestmentBps totals investment_bps over non-exited
	// allocations of one piece of equipment. Call with the equipment row
	// locked.
	SumActiveInvestmentBps(ctx context.Context, tx *gorm.DB, equipmentID snowflake.ID) (int64, error)
	AddProfitReceived(ctx context.Context, tx *gorm.DB, id snowflake.ID, amount int64) error
	MarkExited(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error
}

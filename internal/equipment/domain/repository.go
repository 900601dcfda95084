package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status  EquipmentStatus
	AfterID snowflake.ID
	Limit   int
}

type JobUsageFilter struct {
	EquipmentID snowflake.ID
	Distributed *bool
	AfterID     snowflake.ID
	Limit       int
}

// JobTotals is written back by the distribution engine once a job has
// been split.
type JobTotals struct {
	CompanyProfit      int64
	InvestorPoolProfit int64
	DistributedAt      time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, equipment *Equipment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Equipment, error)
	// FindByIDForUpdate locks the equipment row inside the caller's
	// transaction; the locking clause is skipped on sqlite.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Equipment, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Equipment, error)
	UpdateCurrentValue(ctx context.Context, db *gorm.DB, id snowflake.ID, value int64) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status EquipmentStatus) error
	// AddJobTotals accumulates revenue/profit/maintenance onto the
	// equipment row.
	AddJobTotals(ctx context.Context, tx *gorm.DB, id snowflake.ID, revenue, profit, maintenance int64) error

	InsertJobUsage(ctx context.Context, db *gorm.DB, job *JobUsage) error
	FindJobUsageByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*JobUsage, error)
	ListJobUsages(ctx context.Context, db *gorm.DB, filter JobUsageFilter) ([]*JobUsage, error)
	// ClaimJobForDistribution flips profit_distributed FALSE -> TRUE and
	// reports whether this caller won the flip. The conditional update is
	// the idempotency guard for distribution.
	ClaimJobForDistribution(ctx context.Context, tx *gorm.DB, id snowflake.ID) (bool, error)
	// SetJobTotals writes the split amounts after a successful claim.
	SetJobTotals(ctx context.Context, tx *gorm.DB, id snowflake.ID, totals JobTotals) error
}

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	InvestorID  snowflake.ID
	EquipmentID snowflake.ID
	JobUsageID  snowflake.ID
	AfterID     snowflake.ID
	Limit       int
}

type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, dist *ProfitDistribution) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*ProfitDistribution, error)
}

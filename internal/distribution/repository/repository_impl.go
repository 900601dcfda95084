package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/benangcapital/benang/internal/distribution/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, dist *domain.ProfitDistribution) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO profit_distributions (id, job_usage_id, equipment_id, investor_id,
		   allocation_id, gross_profit, company_share, investor_share, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dist.ID,
		dist.JobUsageID,
		dist.EquipmentID,
		dist.InvestorID,
		dist.AllocationID,
		dist.GrossProfit,
		dist.CompanyShare,
		dist.InvestorShare,
		dist.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.ProfitDistribution, error) {
	var dists []*domain.ProfitDistribution
	stmt := conn.WithContext(ctx).Model(&domain.ProfitDistribution{})
	if filter.InvestorID > 0 {
		stmt = stmt.Where("investor_id = ?", filter.InvestorID)
	}
	if filter.EquipmentID > 0 {
		stmt = stmt.Where("equipment_id = ?", filter.EquipmentID)
	}
	if filter.JobUsageID > 0 {
		stmt = stmt.Where("job_usage_id = ?", filter.JobUsageID)
	}
	if filter.AfterID > 0 {
		stmt = stmt.Where("id > ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("id asc").Find(&dists).Error; err != nil {
		return nil, err
	}
	return dists, nil
}

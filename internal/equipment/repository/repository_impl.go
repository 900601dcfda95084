package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/benangcapital/benang/internal/equipment/domain"
	"github.com/benangcapital/benang/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, equipment *domain.Equipment) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO equipment (id, name, purchase_price, current_value,
		   investor_pool_share_bps, exit_valuation_basis,
		   total_revenue, total_profit, maintenance_cost, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		equipment.ID,
		equipment.Name,
		equipment.PurchasePrice,
		equipment.CurrentValue,
		equipment.InvestorPoolShareBps,
		equipment.ExitValuationBasis,
		equipment.TotalRevenue,
		equipment.TotalProfit,
		equipment.MaintenanceCost,
		equipment.Status,
		equipment.CreatedAt,
		equipment.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Equipment, error) {
	var equipment domain.Equipment
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM equipment WHERE id = ?`, id,
	).Scan(&equipment).Error
	if err != nil {
		return nil, err
	}
	if equipment.ID == 0 {
		return nil, nil
	}
	return &equipment, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Equipment, error) {
	var equipment domain.Equipment
	stmt := tx.WithContext(ctx).Model(&domain.Equipment{})
	if !db.IsSQLite(tx) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := stmt.Where("id = ?", id).Find(&equipment).Error
	if err != nil {
		return nil, err
	}
	if equipment.ID == 0 {
		return nil, nil
	}
	return &equipment, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Equipment, error) {
	var items []*domain.Equipment
	stmt := conn.WithContext(ctx).Model(&domain.Equipment{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.AfterID > 0 {
		stmt = stmt.Where("id > ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateCurrentValue(ctx context.Context, conn *gorm.DB, id snowflake.ID, value int64) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE equipment SET current_value = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		value, id,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, conn *gorm.DB, id snowflake.ID, status domain.EquipmentStatus) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE equipment SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	).Error
}

func (r *repo) AddJobTotals(ctx context.Context, tx *gorm.DB, id snowflake.ID, revenue, profit, maintenance int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE equipment
		 SET total_revenue = total_revenue + ?,
		     total_profit = total_profit + ?,
		     maintenance_cost = maintenance_cost + ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		revenue, profit, maintenance, id,
	).Error
}

func (r *repo) InsertJobUsage(ctx context.Context, conn *gorm.DB, job *domain.JobUsage) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO equipment_job_usages (id, equipment_id, reference,
		   revenue, material_cost, labor_cost, maintenance_cost, net_profit,
		   company_profit, investor_pool_profit, profit_distributed, distributed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.EquipmentID,
		job.Reference,
		job.Revenue,
		job.MaterialCost,
		job.LaborCost,
		job.MaintenanceCost,
		job.NetProfit,
		job.CompanyProfit,
		job.InvestorPoolProfit,
		job.ProfitDistributed,
		job.DistributedAt,
		job.CreatedAt,
	).Error
}

func (r *repo) FindJobUsageByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.JobUsage, error) {
	var job domain.JobUsage
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM equipment_job_usages WHERE id = ?`, id,
	).Scan(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

func (r *repo) ListJobUsages(ctx context.Context, conn *gorm.DB, filter domain.JobUsageFilter) ([]*domain.JobUsage, error) {
	var jobs []*domain.JobUsage
	stmt := conn.WithContext(ctx).Model(&domain.JobUsage{})
	if filter.EquipmentID > 0 {
		stmt = stmt.Where("equipment_id = ?", filter.EquipmentID)
	}
	if filter.Distributed != nil {
		stmt = stmt.Where("profit_distributed = ?", *filter.Distributed)
	}
	if filter.AfterID > 0 {
		stmt = stmt.Where("id > ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("id asc").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) ClaimJobForDistribution(ctx context.Context, tx *gorm.DB, id snowflake.ID) (bool, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE equipment_job_usages
		 SET profit_distributed = TRUE
		 WHERE id = ? AND profit_distributed = FALSE`,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetJobTotals(ctx context.Context, tx *gorm.DB, id snowflake.ID, totals domain.JobTotals) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE equipment_job_usages
		 SET company_profit = ?, investor_pool_profit = ?, distributed_at = ?
		 WHERE id = ?`,
		totals.CompanyProfit,
		totals.InvestorPoolProfit,
		totals.DistributedAt,
		id,
	).Error
}

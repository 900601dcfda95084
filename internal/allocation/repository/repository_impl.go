package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/benangcapital/benang/internal/allocation/domain"
	"github.com/benangcapital/benang/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertProductAllocation(ctx context.Context, tx *gorm.DB, alloc *domain.ProductAllocation) (bool, error) {
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "investor_id"},
			{Name: "idempotency_key"},
		},
		DoNothing: true,
	}).Create(alloc)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindProductAllocationByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.ProductAllocation, error) {
	var alloc domain.ProductAllocation
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM product_allocations WHERE id = ?`, id,
	).Scan(&alloc).Error
	if err != nil {
		return nil, err
	}
	if alloc.ID == 0 {
		return nil, nil
	}
	return &alloc, nil
}

func (r *repo) FindProductAllocationByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.ProductAllocation, error) {
	var alloc domain.ProductAllocation
	stmt := tx.WithContext(ctx).Model(&domain.ProductAllocation{})
	if !db.IsSQLite(tx) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := stmt.Where("id = ?", id).Find(&alloc).Error
	if err != nil {
		return nil, err
	}
	if alloc.ID == 0 {
		return nil, nil
	}
	return &alloc, nil
}

func (r *repo) FindProductAllocationByKey(ctx context.Context, conn *gorm.DB, investorID snowflake.ID, key string) (*domain.ProductAllocation, error) {
	var alloc domain.ProductAllocation
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM product_allocations WHERE investor_id = ? AND idempotency_key = ?`,
		investorID, key,
	).Scan(&alloc).Error
	if err != nil {
		return nil, err
	}
	if alloc.ID == 0 {
		return nil, nil
	}
	return &alloc, nil
}

func (r *repo) ListProductAllocations(ctx context.Context, conn *gorm.DB, filter domain.ProductAllocationFilter) ([]*domain.ProductAllocation, error) {
	var allocs []*domain.ProductAllocation
	stmt := conn.WithContext(ctx).Model(&domain.ProductAllocation{})
	if filter.InvestorID > 0 {
		stmt = stmt.Where("investor_id = ?", filter.InvestorID)
	}
	if filter.ProductID > 0 {
		stmt = stmt.Where("product_id = ?", filter.ProductID)
	}
	if filter.AfterID > 0 {
		stmt = stmt.Where("id > ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("id asc").Find(&allocs).Error; err != nil {
		return nil, err
	}
	return allocs, nil
}

func (r *repo) ReturnCapital(ctx context.Context, tx *gorm.DB, id snowflake.ID, quantity, amount int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE product_allocations
		 SET quantity_remaining = quantity_remaining - ?,
		     capital_returned = capital_returned + ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		quantity, amount, id,
	).Error
}

func (r *repo) InsertEquipmentAllocation(ctx context.Context, tx *gorm.DB, alloc *domain.EquipmentAllocation) (bool, error) {
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "investor_id"},
			{Name: "idempotency_key"},
		},
		DoNothing: true,
	}).Create(alloc)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindEquipmentAllocationByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.EquipmentAllocation, error) {
	var alloc domain.EquipmentAllocation
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM equipment_allocations WHERE id = ?`, id,
	).Scan(&alloc).Error
	if err != nil {
		return nil, err
	}
	if alloc.ID == 0 {
		return nil, nil
	}
	return &alloc, nil
}

func (r *repo) FindEquipmentAllocationByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.EquipmentAllocation, error) {
	var alloc domain.EquipmentAllocation
	stmt := tx.WithContext(ctx).Model(&domain.EquipmentAllocation{})
	if !db.IsSQLite(tx) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := stmt.Where("id = ?", id).Find(&alloc).Error
	if err != nil {
		return nil, err
	}
	if alloc.ID == 0 {
		return nil, nil
	}
	return &alloc, nil
}

func (r *repo) FindEquipmentAllocationByKey(ctx context.Context, conn *gorm.DB, investorID snowflake.ID, key string) (*domain.EquipmentAllocation, error) {
	var alloc domain.EquipmentAllocation
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM equipment_allocations WHERE investor_id = ? AND idempotency_key = ?`,
		investorID, key,
	).Scan(&alloc).Error
	if err != nil {
		return nil, err
	}
	if alloc.ID == 0 {
		return nil, nil
	}
	return &alloc, nil
}

func (r *repo) ListEquipmentAllocations(ctx context.Context, conn *gorm.DB, filter domain.EquipmentAllocationFilter) ([]*domain.EquipmentAllocation, error) {
	var allocs []*domain.EquipmentAllocation
	stmt := conn.WithContext(ctx).Model(&domain.EquipmentAllocation{})
	if filter.InvestorID > 0 {
		stmt = stmt.Where("investor_id = ?", filter.InvestorID)
	}
	if filter.EquipmentID > 0 {
		stmt = stmt.Where("equipment_id = ?", filter.EquipmentID)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("has_exited = ?", false)
	}
	if filter.AfterID > 0 {
		stmt = stmt.Where("id > ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("id asc").Find(&allocs).Error; err != nil {
		return nil, err
	}
	return allocs, nil
}

func (r *repo) SumActiveAllocated(ctx context.Context, tx *gorm.DB, equipmentID snowflake.ID) (int64, error) {
	var total int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_allocated), 0)
		 FROM equipment_allocations
		 WHERE equipment_id = ? AND has_exited = ?`,
		equipmentID, false,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) SumActiveInvestmentBps(ctx context.Context, tx *gorm.DB, equipmentID snowflake.ID) (int64, error) {
	var total int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(investment_bps), 0)
		 FROM equipment_allocations
		 WHERE equipment_id = ? AND has_exited = ?`,
		equipmentID, false,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) AddProfitReceived(ctx context.Context, tx *gorm.DB, id snowflake.ID, amount int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE equipment_allocations
		 SET total_profit_received = total_profit_received + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		amount, id,
	).Error
}

func (r *repo) MarkExited(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE equipment_allocations
		 SET has_exited = ?, exited_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		true, at, id,
	).Error
}

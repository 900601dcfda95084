package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/benangcapital/benang/internal/investor/domain"
	"github.com/benangcapital/benang/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, investor *domain.Investor) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO investors (id, name, email, phone, status,
		   cash_balance, profit_balance, total_invested, total_profit, total_withdrawn,
		   metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		investor.ID,
		investor.Name,
		investor.Email,
		investor.Phone,
		investor.Status,
		investor.CashBalance,
		investor.ProfitBalance,
		investor.TotalInvested,
		investor.TotalProfit,
		investor.TotalWithdrawn,
		investor.Metadata,
		investor.CreatedAt,
		investor.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Investor, error) {
	var investor domain.Investor
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM investors WHERE id = ?`, id,
	).Scan(&investor).Error
	if err != nil {
		return nil, err
	}
	if investor.ID == 0 {
		return nil, nil
	}
	return &investor, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Investor, error) {
	var investor domain.Investor
	stmt := tx.WithContext(ctx).Model(&domain.Investor{})
	if !db.IsSQLite(tx) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := stmt.Where("id = ?", id).Find(&investor).Error
	if err != nil {
		return nil, err
	}
	if investor.ID == 0 {
		return nil, nil
	}
	return &investor, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Investor, error) {
	var investors []*domain.Investor
	stmt := conn.WithContext(ctx).Model(&domain.Investor{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.AfterID > 0 {
		stmt = stmt.Where("id > ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("id asc").Find(&investors).Error; err != nil {
		return nil, err
	}
	return investors, nil
}

func (r *repo) UpdateStatus(ctx context.Context, conn *gorm.DB, id snowflake.ID, next domain.InvestorStatus) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE investors SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		next, id,
	).Error
}

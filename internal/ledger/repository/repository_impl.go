package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/benangcapital/benang/internal/ledger/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIdempotent(ctx context.Context, tx *gorm.DB, entry *domain.Entry) (bool, error) {
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "source_type"},
			{Name: "source_id"},
			{Name: "investor_id"},
		},
		DoNothing: true,
	}).Create(entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindBySource(ctx context.Context, conn *gorm.DB, sourceType string, sourceID, investorID snowflake.ID) (*domain.Entry, error) {
	var entry domain.Entry
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM investor_transactions
		 WHERE source_type = ? AND source_id = ? AND investor_id = ?`,
		sourceType, sourceID, investorID,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	stmt := conn.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("investor_id = ?", filter.InvestorID)
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.Account != "" {
		stmt = stmt.Where("account = ?", filter.Account)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID,
		)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	err := stmt.Order("created_at desc, id desc").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ListAllAsc(ctx context.Context, conn *gorm.DB, investorID snowflake.ID) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	err := conn.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("investor_id = ?", investorID).
		Order("id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) UpdateInvestorProjection(ctx context.Context, tx *gorm.DB, investorID snowflake.ID, p domain.InvestorProjection) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE investors
		 SET cash_balance = ?, profit_balance = ?,
		     total_invested = ?, total_profit = ?, total_withdrawn = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		p.CashBalance,
		p.ProfitBalance,
		p.TotalInvested,
		p.TotalProfit,
		p.TotalWithdrawn,
		investorID,
	).Error
}

package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/benangcapital/benang/internal/withdrawal/domain"
	"github.com/benangcapital/benang/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, request *domain.WithdrawalRequest) (bool, error) {
	res := conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "investor_id"},
			{Name: "idempotency_key"},
		},
		DoNothing: true,
	}).Create(request)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.WithdrawalRequest, error) {
	var request domain.WithdrawalRequest
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM withdrawal_requests WHERE id = ?`, id,
	).Scan(&request).Error
	if err != nil {
		return nil, err
	}
	if request.ID == 0 {
		return nil, nil
	}
	return &request, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.WithdrawalRequest, error) {
	var request domain.WithdrawalRequest
	stmt := tx.WithContext(ctx).Model(&domain.WithdrawalRequest{})
	if !db.IsSQLite(tx) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := stmt.Where("id = ?", id).Find(&request).Error
	if err != nil {
		return nil, err
	}
	if request.ID == 0 {
		return nil, nil
	}
	return &request, nil
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, conn *gorm.DB, investorID snowflake.ID, key string) (*domain.WithdrawalRequest, error) {
	var request domain.WithdrawalRequest
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM withdrawal_requests WHERE investor_id = ? AND idempotency_key = ?`,
		investorID, key,
	).Scan(&request).Error
	if err != nil {
		return nil, err
	}
	if request.ID == 0 {
		return nil, nil
	}
	return &request, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.WithdrawalRequest, error) {
	var requests []*domain.WithdrawalRequest
	stmt := conn.WithContext(ctx).Model(&domain.WithdrawalRequest{})
	if filter.InvestorID > 0 {
		stmt = stmt.Where("investor_id = ?", filter.InvestorID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.AfterID > 0 {
		stmt = stmt.Where("id > ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("id asc").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repo) Decide(ctx context.Context, tx *gorm.DB, id snowflake.ID, decision domain.Decision) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE withdrawal_requests
		 SET status = ?, approved_amount = ?, reason = ?,
		     decided_at = ?, decided_by = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		decision.Status,
		decision.ApprovedAmount,
		decision.Reason,
		decision.DecidedAt,
		decision.DecidedBy,
		id,
	).Error
}

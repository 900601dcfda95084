package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/benangcapital/benang/internal/deposit/domain"
	"github.com/benangcapital/benang/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, deposit *domain.Deposit) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO deposits (id, investor_id, reference, gross_amount, charges, amount,
		   payment_method, status, idempotency_key, receipt_url, confirmed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deposit.ID,
		deposit.InvestorID,
		deposit.Reference,
		deposit.GrossAmount,
		deposit.Charges,
		deposit.Amount,
		deposit.PaymentMethod,
		deposit.Status,
		deposit.IdempotencyKey,
		deposit.ReceiptURL,
		deposit.ConfirmedAt,
		deposit.CreatedAt,
		deposit.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Deposit, error) {
	var deposit domain.Deposit
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM deposits WHERE id = ?`, id,
	).Scan(&deposit).Error
	if err != nil {
		return nil, err
	}
	if deposit.ID == 0 {
		return nil, nil
	}
	return &deposit, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Deposit, error) {
	var deposit domain.Deposit
	stmt := tx.WithContext(ctx).Model(&domain.Deposit{})
	if !db.IsSQLite(tx) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := stmt.Where("id = ?", id).Find(&deposit).Error
	if err != nil {
		return nil, err
	}
	if deposit.ID == 0 {
		return nil, nil
	}
	return &deposit, nil
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, conn *gorm.DB, investorID snowflake.ID, key string) (*domain.Deposit, error) {
	var deposit domain.Deposit
	err := conn.WithContext(ctx).Raw(
		`SELECT * FROM deposits WHERE investor_id = ? AND idempotency_key = ?`,
		investorID, key,
	).Scan(&deposit).Error
	if err != nil {
		return nil, err
	}
	if deposit.ID == 0 {
		return nil, nil
	}
	return &deposit, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Deposit, error) {
	var deposits []*domain.Deposit
	stmt := conn.WithContext(ctx).Model(&domain.Deposit{})
	if filter.InvestorID > 0 {
		stmt = stmt.Where("investor_id = ?", filter.InvestorID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.AfterID > 0 {
		stmt = stmt.Where("id > ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("id asc").Find(&deposits).Error; err != nil {
		return nil, err
	}
	return deposits, nil
}

func (r *repo) UpdateStatus(ctx context.Context, conn *gorm.DB, id snowflake.ID, next domain.DepositStatus) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE deposits SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		next, id,
	).Error
}

func (r *repo) SetReceipt(ctx context.Context, conn *gorm.DB, id snowflake.ID, receiptURL string) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE deposits
		 SET receipt_url = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		receiptURL, domain.StatusPendingConfirmation, id,
	).Error
}

func (r *repo) SetConfirmed(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE deposits
		 SET status = ?, confirmed_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		domain.StatusConfirmed, at, id,
	).Error
}

func (r *repo) ClaimExpirable(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]*domain.Deposit, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT * FROM deposits
		 WHERE status = ? AND created_at < ?
		 ORDER BY created_at ASC
		 LIMIT ?`
	if !db.IsSQLite(tx) {
		query += ` FOR UPDATE SKIP LOCKED`
	}
	var deposits []*domain.Deposit
	err := tx.WithContext(ctx).Raw(query, domain.StatusAwaitingPayment, cutoff, limit).Scan(&deposits).Error
	if err != nil {
		return nil, err
	}
	return deposits, nil
}

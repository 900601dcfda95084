package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/benangcapital/benang/pkg/db/pagination"
)

var (
	ErrDepositNotFound    = errors.New("deposit_not_found")
	ErrInvalidTransition  = errors.New("invalid_transition")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidCharges     = errors.New("invalid_charges")
	ErrIdempotencyKeyMiss = errors.New("idempotency_key_required")
	ErrInvalidPageToken   = errors.New("invalid_page_token")
)

type CreateDepositRequest struct {
	InvestorID     snowflake.ID `json:"investor_id,string" binding:"required"`
	GrossAmount    int64        `json:"gross_amount" binding:"required"`
	Charges        int64        `json:"charges"`
	PaymentMethod  string       `json:"payment_method"`
	IdempotencyKey string       `json:"idempotency_key" binding:"required"`
}

type UploadReceiptRequest struct {
	ReceiptURL string `json:"receipt_url" binding:"required"`
}

type ListDepositRequest struct {
	InvestorID snowflake.ID  `form:"investor_id"`
	Status     DepositStatus `form:"status"`
	pagination.Pagination
}

type ListDepositResponse struct {
	Deposits []Deposit           `json:"deposits"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	// Create opens a deposit in awaiting_payment. Replaying the same
	// (investor, idempotency key) returns the original deposit.
	Create(ctx context.Context, req CreateDepositRequest) (*Deposit, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Deposit, error)
	List(ctx context.Context, req ListDepositRequest) (ListDepositResponse, error)

	// MarkPaid moves awaiting_payment -> awaiting_receipt.
	MarkPaid(ctx context.Context, id snowflake.ID) (*Deposit, error)
	// UploadReceipt moves awaiting_receipt -> pending_confirmation.
	UploadReceipt(ctx context.Context, id snowflake.ID, receiptURL string) (*Deposit, error)
	// Confirm flips pending_confirmation -> confirmed and credits the
	// investor's cash balance in the same transaction. Confirming an
	// already-confirmed deposit is a no-op returning the stored row.
	Confirm(ctx context.Context, id snowflake.ID) (*Deposit, error)
	Cancel(ctx context.Context, id snowflake.ID) (*Deposit, error)
	// ExpireStale expires a batch of awaiting_payment deposits created
	// before the cutoff and reports how many were flipped.
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

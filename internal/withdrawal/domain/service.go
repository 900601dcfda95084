package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/benangcapital/benang/pkg/db/pagination"
)

var (
	ErrWithdrawalNotFound = errors.New("withdrawal_not_found")
	ErrInvalidTransition  = errors.New("invalid_transition")
	// The balance that covered the request at submission no longer does.
	ErrStaleBalance         = errors.New("stale_balance")
	ErrInsufficientQuantity = errors.New("insufficient_quantity")
	ErrAllocationExited     = errors.New("allocation_exited")
	ErrInvalidType          = errors.New("invalid_withdrawal_type")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrNotAllocationOwner   = errors.New("not_allocation_owner")
	ErrIdempotencyKeyMiss   = errors.New("idempotency_key_required")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
)

type SubmitRequest struct {
	InvestorID snowflake.ID   `json:"investor_id,string" binding:"required"`
	Type       WithdrawalType `json:"type" binding:"required"`
	// Minor units; required for cash and profit withdrawals.
	Amount                int64        `json:"amount"`
	ProductAllocationID   snowflake.ID `json:"product_allocation_id,string"`
	EquipmentAllocationID snowflake.ID `json:"equipment_allocation_id,string"`
	Quantity              int64        `json:"quantity"`
	IdempotencyKey        string       `json:"idempotency_key" binding:"required"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ListWithdrawalRequest struct {
	InvestorID snowflake.ID     `form:"investor_id"`
	Status     WithdrawalStatus `form:"status"`
	Type       WithdrawalType   `form:"type"`
	pagination.Pagination
}

type ListWithdrawalResponse struct {
	Withdrawals []WithdrawalRequest `json:"withdrawals"`
	PageInfo    pagination.PageInfo `json:"page_info"`
}

type Service interface {
	// Submit validates against current state and parks the request as
	// pending. Submission checks are a courtesy; approval re-validates
	// everything.
	Submit(ctx context.Context, req SubmitRequest) (*WithdrawalRequest, error)
	// Approve settles a pending request. The ledger debit (or the
	// capital-return credit) happens here, atomically with the status
	// flip. approvedAmount lets an admin settle a cash or profit
	// request below the asked figure; zero means the requested amount.
	Approve(ctx context.Context, id snowflake.ID, approvedAmount int64, decidedBy string) (*WithdrawalRequest, error)
	Reject(ctx context.Context, id snowflake.ID, reason, decidedBy string) (*WithdrawalRequest, error)
	GetByID(ctx context.Context, id snowflake.ID) (*WithdrawalRequest, error)
	List(ctx context.Context, req ListWithdrawalRequest) (ListWithdrawalResponse, error)
}

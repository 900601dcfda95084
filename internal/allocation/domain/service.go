package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/benangcapital/benang/pkg/db/pagination"
)

var (
	ErrOverAllocation     = errors.New("over_allocation")
	ErrAllocationNotFound = errors.New("allocation_not_found")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrIdempotencyKeyMiss = errors.New("idempotency_key_required")
	ErrInvalidPageToken   = errors.New("invalid_page_token")
)

type AllocateProductRequest struct {
	InvestorID snowflake.ID `json:"investor_id,string" binding:"required"`
	ProductID  snowflake.ID `json:"product_id,string" binding:"required"`
	Quantity   int64        `json:"quantity" binding:"required"`
	// Overrides the catalog unit price when > 0 (negotiated batches).
	UnitPrice      int64  `json:"unit_price"`
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
}

type AllocateEquipmentRequest struct {
	InvestorID     snowflake.ID `json:"investor_id,string" binding:"required"`
	EquipmentID    snowflake.ID `json:"equipment_id,string" binding:"required"`
	Amount         int64        `json:"amount" binding:"required"`
	IdempotencyKey string       `json:"idempotency_key" binding:"required"`
}

type ListProductAllocationRequest struct {
	InvestorID snowflake.ID `form:"investor_id"`
	ProductID  snowflake.ID `form:"product_id"`
	pagination.Pagination
}

type ListProductAllocationResponse struct {
	Allocations []ProductAllocation `json:"allocations"`
	PageInfo    pagination.PageInfo `json:"page_info"`
}

type ListEquipmentAllocationRequest struct {
	InvestorID  snowflake.ID `form:"investor_id"`
	EquipmentID snowflake.ID `form:"equipment_id"`
	// When true, exited allocations are filtered out.
	ActiveOnly bool `form:"active_only"`
	pagination.Pagination
}

type ListEquipmentAllocationResponse struct {
	Allocations []EquipmentAllocation `json:"allocations"`
	PageInfo    pagination.PageInfo   `json:"page_info"`
}

type Service interface {
	// AllocateToProduct moves cash into a product batch. Replaying the
	// same (investor, idempotency key) returns the original allocation.
	AllocateToProduct(ctx context.Context, req AllocateProductRequest) (*ProductAllocation, error)
	// AllocateToEquipment buys a share of a piece of equipment. The sum
	// of live allocations can never exceed the purchase price.
	AllocateToEquipment(ctx context.Context, req AllocateEquipmentRequest) (*EquipmentAllocation, error)

	GetProductAllocation(ctx context.Context, id snowflake.ID) (*ProductAllocation, error)
	GetEquipmentAllocation(ctx context.Context, id snowflake.ID) (*EquipmentAllocation, error)
	ListProductAllocations(ctx context.Context, req ListProductAllocationRequest) (ListProductAllocationResponse, error)
	ListEquipmentAllocations(ctx context.Context, req ListEquipmentAllocationRequest) (ListEquipmentAllocationResponse, error)
}

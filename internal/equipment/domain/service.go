package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/benangcapital/benang/pkg/db/pagination"
)

var (
	ErrEquipmentNotFound  = errors.New("equipment_not_found")
	ErrEquipmentRetired   = errors.New("equipment_retired")
	ErrJobUsageNotFound   = errors.New("job_usage_not_found")
	ErrNameRequired       = errors.New("name_required")
	ErrInvalidPrice       = errors.New("invalid_purchase_price")
	ErrInvalidPoolShare   = errors.New("invalid_pool_share")
	ErrInvalidBasis       = errors.New("invalid_valuation_basis")
	ErrInvalidRevenue     = errors.New("invalid_revenue")
	ErrInvalidCost        = errors.New("invalid_cost")
	ErrDuplicateReference = errors.New("duplicate_reference")
	ErrInvalidPageToken   = errors.New("invalid_page_token")
)

type CreateEquipmentRequest struct {
	Name string `json:"name" binding:"required"`
	// Minor units. CurrentValue defaults to PurchasePrice.
	PurchasePrice int64 `json:"purchase_price" binding:"required"`
	CurrentValue  int64 `json:"current_value"`
	// Defaults to the configured pool share when zero.
	InvestorPoolShareBps int64          `json:"investor_pool_share_bps"`
	ExitValuationBasis   ValuationBasis `json:"exit_valuation_basis"`
}

type RecordJobUsageRequest struct {
	EquipmentID     snowflake.ID `json:"-"`
	Reference       string       `json:"reference"`
	Revenue         int64        `json:"revenue" binding:"required"`
	MaterialCost    int64        `json:"material_cost"`
	LaborCost       int64        `json:"labor_cost"`
	MaintenanceCost int64        `json:"maintenance_cost"`
}

type UpdateValueRequest struct {
	CurrentValue int64 `json:"current_value" binding:"required"`
}

type ListEquipmentRequest struct {
	Status EquipmentStatus `form:"status"`
	pagination.Pagination
}

type ListEquipmentResponse struct {
	Equipment []Equipment         `json:"equipment"`
	PageInfo  pagination.PageInfo `json:"page_info"`
}

type ListJobUsageRequest struct {
	EquipmentID snowflake.ID `form:"-"`
	Distributed *bool        `form:"distributed"`
	pagination.Pagination
}

type ListJobUsageResponse struct {
	JobUsages []JobUsage          `json:"job_usages"`
	PageInfo  pagination.PageInfo `json:"page_info"`
}

type Service interface {
	Create(ctx context.Context, req CreateEquipmentRequest) (*Equipment, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Equipment, error)
	List(ctx context.Context, req ListEquipmentRequest) (ListEquipmentResponse, error)
	UpdateCurrentValue(ctx context.Context, id snowflake.ID, value int64) (*Equipment, error)
	Retire(ctx context.Context, id snowflake.ID) (*Equipment, error)

	// RecordJobUsage books one production job against the equipment.
	// Net profit may be negative; such jobs are recorded but can never
	// be distributed.
	RecordJobUsage(ctx context.Context, req RecordJobUsageRequest) (*JobUsage, error)
	GetJobUsage(ctx context.Context, id snowflake.ID) (*JobUsage, error)
	ListJobUsages(ctx context.Context, req ListJobUsageRequest) (ListJobUsageResponse, error)
}

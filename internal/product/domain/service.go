package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/benangcapital/benang/pkg/db/pagination"
)

var (
	ErrProductNotFound  = errors.New("product_not_found")
	ErrProductArchived  = errors.New("product_archived")
	ErrSKUTaken         = errors.New("sku_already_registered")
	ErrNameRequired     = errors.New("name_required")
	ErrInvalidUnitPrice = errors.New("invalid_unit_price")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)

type CreateProductRequest struct {
	Name      string `json:"name" binding:"required"`
	SKU       string `json:"sku"`
	UnitPrice int64  `json:"unit_price" binding:"required"`
}

type ListProductRequest struct {
	Status ProductStatus `form:"status"`
	pagination.Pagination
}

type ListProductResponse struct {
	Products []Product           `json:"products"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	Create(ctx context.Context, req CreateProductRequest) (*Product, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Product, error)
	List(ctx context.Context, req ListProductRequest) (ListProductResponse, error)
	Archive(ctx context.Context, id snowflake.ID) (*Product, error)
}

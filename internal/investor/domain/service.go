package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/benangcapital/benang/pkg/db/pagination"
)

var (
	ErrInvestorNotFound  = errors.New("investor_not_found")
	ErrInvestorNotActive = errors.New("investor_not_active")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrEmailTaken        = errors.New("email_already_registered")
	ErrNameRequired      = errors.New("name_required")
	ErrEmailRequired     = errors.New("email_required")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
)

type CreateInvestorRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone"`
}

type UpdateStatusRequest struct {
	Status InvestorStatus `json:"status" binding:"required"`
}

type ListInvestorRequest struct {
	Status InvestorStatus `form:"status"`
	pagination.Pagination
}

type ListInvestorResponse struct {
	Investors []Investor          `json:"investors"`
	PageInfo  pagination.PageInfo `json:"page_info"`
}

type Service interface {
	Create(ctx context.Context, req CreateInvestorRequest) (*Investor, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Investor, error)
	List(ctx context.Context, req ListInvestorRequest) (ListInvestorResponse, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, next InvestorStatus) (*Investor, error)
}

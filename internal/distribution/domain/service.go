package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/benangcapital/benang/pkg/db/pagination"
)

var (
	ErrAlreadyDistributed  = errors.New("already_distributed")
	ErrNothingToDistribute = errors.New("nothing_to_distribute")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
)

type ListDistributionRequest struct {
	InvestorID  snowflake.ID `form:"investor_id"`
	EquipmentID snowflake.ID `form:"equipment_id"`
	JobUsageID  snowflake.ID `form:"job_usage_id"`
	pagination.Pagination
}

type ListDistributionResponse struct {
	Distributions []ProfitDistribution `json:"distributions"`
	PageInfo      pagination.PageInfo  `json:"page_info"`
}

type Service interface {
	// DistributeJobProfit splits one job's net profit between the
	// company and the equipment's live investor pool. All credits land
	// in one transaction; replaying a distributed job fails with
	// ErrAlreadyDistributed.
	DistributeJobProfit(ctx context.Context, jobUsageID snowflake.ID) ([]ProfitDistribution, error)
	List(ctx context.Context, req ListDistributionRequest) (ListDistributionResponse, error)
}
